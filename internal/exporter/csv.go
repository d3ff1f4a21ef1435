package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gbocli/internal/config"
)

// CSVWriter writes delimited output files
type CSVWriter struct {
	paths *config.Paths
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteOptions configures one delimited write
type WriteOptions struct {
	Header    []string
	Rows      [][]string
	Delimiter rune
}

// WriteDelimited writes a header and rows to a delimited UTF-8 file. The
// delimiter defaults to a comma; processed files keep the delimiter of the
// file they came from.
func (w *CSVWriter) WriteDelimited(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	slog.Info("Writing delimited file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("row_count", len(options.Rows)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if options.Delimiter != 0 {
		writer.Comma = options.Delimiter
	}

	if len(options.Header) > 0 {
		if err := writer.Write(options.Header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, row := range options.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// resolvePath resolves a path to the appropriate directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}

	// Everything the exporter writes is a processed output unless the path
	// says otherwise
	if strings.HasPrefix(filePath, "data/") {
		return filepath.Join(w.paths.DataDir, strings.TrimPrefix(filePath, "data/"))
	}
	return w.paths.GetOutputPath(filePath)
}
