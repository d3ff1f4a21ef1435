package sanitize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"gbocli/internal/config"
	apperrors "gbocli/internal/errors"
)

// Sanitizer rewrites provider files into plain ASCII-safe UTF-8: accented
// letters are folded to their base letter and configured literal tokens are
// replaced. The R5 loader rejects files with characters outside its charset,
// so extracts pass through here before submission.
type Sanitizer struct {
	logger       *slog.Logger
	replacements map[string]string
}

// NewSanitizer creates a sanitizer with the given configuration
func NewSanitizer(logger *slog.Logger, cfg config.SanitizeConfig) *Sanitizer {
	if logger == nil {
		logger = slog.Default()
	}

	replacements := cfg.Replacements
	if replacements == nil {
		replacements = config.DefaultReplacements
	}

	return &Sanitizer{logger: logger, replacements: replacements}
}

// CleanStats describes what cleaning one file did
type CleanStats struct {
	Encoding     string
	Replacements int
	Lines        int
	Changed      bool
	BytesWritten int
}

// Clean folds accents and applies the literal replacements, returning the
// cleaned text and the number of literal replacements made. Folding
// decomposes each letter and drops the combining marks, so ñ, á and ü all
// come out as their base letter.
func (s *Sanitizer) Clean(text string) (string, int, error) {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, text)
	if err != nil {
		return "", 0, fmt.Errorf("accent folding failed: %w", err)
	}

	// Deterministic application order; replacement tokens never overlap in
	// practice but map iteration order must not decide if they do
	tokens := make([]string, 0, len(s.replacements))
	for token := range s.replacements {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	applied := 0
	for _, token := range tokens {
		count := strings.Count(folded, token)
		if count == 0 {
			continue
		}
		folded = strings.ReplaceAll(folded, token, s.replacements[token])
		applied += count
	}

	return folded, applied, nil
}

// CleanFile reads, cleans and rewrites one file. Input decodes through the
// charset fallback chain; output is always UTF-8 without a byte order mark.
func (s *Sanitizer) CleanFile(ctx context.Context, inputPath, outputPath string) (*CleanStats, error) {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read %s", inputPath), err)
	}

	text, encName, err := DecodeText(raw)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to decode %s", inputPath), err)
	}

	cleaned, applied, err := s.Clean(text)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to clean %s", inputPath), err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to create directory for %s", outputPath), err)
	}
	if err := os.WriteFile(outputPath, []byte(cleaned), 0644); err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to write %s", outputPath), err)
	}

	// Changed covers every rewrite cause: folding, replacements, charset
	// re-encoding and a dropped byte order mark
	stats := &CleanStats{
		Encoding:     encName,
		Replacements: applied,
		Lines:        countLines(cleaned),
		Changed:      cleaned != string(raw),
		BytesWritten: len(cleaned),
	}

	s.logger.InfoContext(ctx, "sanitized file",
		slog.String("input", inputPath),
		slog.String("output", outputPath),
		slog.String("encoding", encName),
		slog.Int("replacements", applied),
		slog.Int("lines", stats.Lines),
		slog.Bool("changed", stats.Changed))

	return stats, nil
}

// countLines counts text lines, with or without a trailing newline
func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
