package files

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gbocli/internal/config"
	apperrors "gbocli/internal/errors"
	"gbocli/pkg/contracts/domain"
)

// Discovery pairs dated input files found in the data directory.
// A pair is a flows CSV plus the estimates DAT whose filename encodes the
// same value date, with the R5 report attached when one exists.
type Discovery struct {
	paths        *config.Paths
	outputSuffix string
	fullRework   bool
}

// NewDiscovery creates a discovery instance over the configured directories
func NewDiscovery(paths *config.Paths, processing config.ProcessingConfig) *Discovery {
	return &Discovery{
		paths:        paths,
		outputSuffix: processing.OutputSuffix,
		fullRework:   processing.FullRework,
	}
}

// DiscoverPairs scans the data directory and returns the file pairs that
// still need processing, sorted by value date.
//
// Files whose date token does not parse are skipped with a warning, as are
// flows files with no same-date estimates counterpart. When no pair at all
// can be formed the scan fails with a NO_MATCHING_FILES error. Pairs whose
// output file already exists are filtered out unless full rework is on.
func (d *Discovery) DiscoverPairs(ctx context.Context) ([]domain.FilePair, error) {
	entries, err := os.ReadDir(d.paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory %s: %w", d.paths.DataDir, err)
	}

	flows := make(map[string][]string)
	estimates := make(map[string][]string)
	reports := make(map[string][]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case matchesPattern(name, config.FlowsFilePrefix, config.FlowsFileExt):
			collectByDate(ctx, flows, name, config.FlowsFilePrefix, config.FlowsFileExt, config.FlowsDateLayout)
		case matchesPattern(name, config.EstimatesFilePrefix, config.EstimatesFileExt):
			collectByDate(ctx, estimates, name, config.EstimatesFilePrefix, config.EstimatesFileExt, config.EstimatesDateLayout)
		case matchesPattern(name, config.ReportFilePrefix, config.ReportFileExt):
			collectByDate(ctx, reports, name, config.ReportFilePrefix, config.ReportFileExt, config.ReportDateLayout)
		}
	}

	var pairs []domain.FilePair
	for _, token := range sortedTokens(flows) {
		date, err := time.Parse(config.FlowsDateLayout, token)
		if err != nil {
			continue
		}

		flowName := pickFirst(ctx, flows[token], "flows")
		estNames, ok := estimates[token]
		if !ok {
			slog.WarnContext(ctx, "No estimates file for flows date, skipping",
				slog.String("file", flowName),
				slog.String("expected", config.EstimatesFileName(date)))
			continue
		}

		pair := domain.FilePair{
			Date:          date,
			FlowsFile:     filepath.Join(d.paths.DataDir, flowName),
			EstimatesFile: filepath.Join(d.paths.DataDir, pickFirst(ctx, estNames, "estimates")),
		}
		if repNames, ok := reports[token]; ok {
			pair.ReportFile = filepath.Join(d.paths.DataDir, pickFirst(ctx, repNames, "report"))
		}
		pairs = append(pairs, pair)
	}

	// Orphan estimates point at a missing or misnamed flows extract
	for _, token := range sortedTokens(estimates) {
		if _, ok := flows[token]; !ok {
			slog.WarnContext(ctx, "No flows file for estimates date, skipping",
				slog.String("file", estimates[token][0]),
				slog.String("date", token))
		}
	}
	for _, token := range sortedTokens(reports) {
		if _, ok := flows[token]; !ok {
			slog.DebugContext(ctx, "R5 report has no flows counterpart",
				slog.String("file", reports[token][0]),
				slog.String("date", token))
		}
	}

	if len(pairs) == 0 {
		return nil, apperrors.NewNoMatchingFilesError(d.paths.DataDir)
	}

	return d.filterProcessed(ctx, pairs), nil
}

// DiscoverDate looks up the files for one explicit value date. The flows CSV
// and estimates DAT must both exist; the R5 report is attached when present.
// An explicit date always reprocesses, even when the output already exists.
func (d *Discovery) DiscoverDate(ctx context.Context, date time.Time) (domain.FilePair, error) {
	pair := domain.FilePair{
		Date:          date,
		FlowsFile:     d.paths.GetFlowsPath(date),
		EstimatesFile: d.paths.GetEstimatesPath(date),
	}

	if !config.FileExists(pair.FlowsFile) {
		return domain.FilePair{}, apperrors.NewNotFoundError(fmt.Sprintf("flows file %s", config.FlowsFileName(date))).
			WithContext("directory", d.paths.DataDir)
	}
	if !config.FileExists(pair.EstimatesFile) {
		return domain.FilePair{}, apperrors.NewNotFoundError(fmt.Sprintf("estimates file %s", config.EstimatesFileName(date))).
			WithContext("directory", d.paths.DataDir)
	}

	if reportPath := d.paths.GetReportPath(date); config.FileExists(reportPath) {
		pair.ReportFile = reportPath
	} else {
		slog.DebugContext(ctx, "No R5 report for date",
			slog.String("date", date.Format(config.FlowsDateLayout)))
	}

	return pair, nil
}

// OutputName inserts the output suffix before the file extension,
// e.g. flujos_swap_gbo_20240115.csv -> flujos_swap_gbo_20240115_procesado.csv
func OutputName(inputName, suffix string) string {
	ext := filepath.Ext(inputName)
	return strings.TrimSuffix(inputName, ext) + suffix + ext
}

// OutputPath returns where the processed copy of an input file is written
func (d *Discovery) OutputPath(inputFile string) string {
	return d.paths.GetOutputPath(OutputName(filepath.Base(inputFile), d.outputSuffix))
}

// filterProcessed drops pairs whose output file already exists
func (d *Discovery) filterProcessed(ctx context.Context, pairs []domain.FilePair) []domain.FilePair {
	if d.fullRework {
		return pairs
	}

	pending := make([]domain.FilePair, 0, len(pairs))
	for _, pair := range pairs {
		outPath := d.OutputPath(pair.FlowsFile)
		if config.FileExists(outPath) {
			slog.InfoContext(ctx, "Output already exists, skipping pair",
				slog.String("file", filepath.Base(pair.FlowsFile)),
				slog.String("output", outPath))
			continue
		}
		pending = append(pending, pair)
	}
	return pending
}

// matchesPattern reports whether a filename carries the given prefix and
// extension. Matching is case-insensitive; the extracts come from systems
// that do not agree on casing.
func matchesPattern(name, prefix, ext string) bool {
	lower := strings.ToLower(name)
	return len(name) >= len(prefix)+len(ext) &&
		strings.HasPrefix(lower, strings.ToLower(prefix)) &&
		strings.HasSuffix(lower, strings.ToLower(ext))
}

// parseNameDate extracts and parses the date token between prefix and extension
func parseNameDate(name, prefix, ext, layout string) (time.Time, error) {
	token := name[len(prefix) : len(name)-len(ext)]
	return time.Parse(layout, token)
}

// collectByDate files a name under its normalized date token, warning and
// skipping when the token does not parse as a date.
func collectByDate(ctx context.Context, byDate map[string][]string, name, prefix, ext, layout string) {
	date, err := parseNameDate(name, prefix, ext, layout)
	if err != nil {
		slog.WarnContext(ctx, "File has an unparsable date token, skipping",
			slog.String("file", name))
		return
	}
	token := date.Format(config.FlowsDateLayout)
	byDate[token] = append(byDate[token], name)
}

// sortedTokens returns the map keys in ascending date order
func sortedTokens(byDate map[string][]string) []string {
	tokens := make([]string, 0, len(byDate))
	for token := range byDate {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// pickFirst returns the lexicographically first name, warning when several
// files share the same pattern and date.
func pickFirst(ctx context.Context, names []string, kind string) string {
	sort.Strings(names)
	if len(names) > 1 {
		slog.WarnContext(ctx, "Several files share the same date, using the first",
			slog.String("kind", kind),
			slog.String("chosen", names[0]),
			slog.Int("candidates", len(names)))
	}
	return names[0]
}
