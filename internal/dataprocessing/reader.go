package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	apperrors "gbocli/internal/errors"
	"gbocli/internal/sanitize"
)

// Table holds a delimited file in memory: the header row as read, the data
// rows in file order, and a normalized header index for column lookup.
type Table struct {
	Path     string
	Encoding string
	Header   []string
	Rows     [][]string

	index map[string]int
}

// ReadTable reads a delimited text file into a Table, decoding through the
// charset fallback chain. Ragged rows are kept as read so the malformed-row
// policy is applied by the caller, with line numbers intact.
func ReadTable(path string, delimiter rune) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}

	text, encName, err := sanitize.DecodeText(raw)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to decode %s", path), err)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse %s", path), err)
	}
	if len(records) == 0 {
		return nil, apperrors.NewParsingError(fmt.Sprintf("file %s is empty", path), nil)
	}

	table := &Table{
		Path:     path,
		Encoding: encName,
		Header:   records[0],
		Rows:     records[1:],
		index:    make(map[string]int, len(records[0])),
	}
	for i, name := range table.Header {
		key := normalizeHeader(name)
		if _, exists := table.index[key]; !exists {
			table.index[key] = i
		}
	}

	return table, nil
}

// Column returns the index of a header column. Lookup is case-insensitive
// and ignores surrounding whitespace.
func (t *Table) Column(name string) (int, bool) {
	idx, ok := t.index[normalizeHeader(name)]
	return idx, ok
}

// RequireColumns resolves the given header names to indexes, failing with a
// validation error that names the file and every missing column at once.
func (t *Table) RequireColumns(names ...string) (map[string]int, error) {
	resolved := make(map[string]int, len(names))
	var missing []string
	for _, name := range names {
		idx, ok := t.Column(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		resolved[name] = idx
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf(
			"file %s is missing required columns: %s", t.Path, strings.Join(missing, ", ")))
	}
	return resolved, nil
}

// Line returns the 1-based file line of a data row index, counting the header
func (t *Table) Line(rowIndex int) int {
	return rowIndex + 2
}

// normalizeHeader lowercases and trims a header cell for index lookup
func normalizeHeader(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
