package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"gbocli/internal/config"
	apperrors "gbocli/internal/errors"
	"gbocli/pkg/contracts/domain"
)

// EstimateSet indexes the provider estimates by (contract, payment date)
type EstimateSet struct {
	byKey map[domain.EstimateKey]*domain.EstimateRecord

	// Loaded counts rows parsed into the set, including occurrences later
	// replaced by a duplicate. Duplicates and RowsSkipped explain the gap
	// between the file's row count and Len.
	Loaded      int64
	Duplicates  int64
	RowsSkipped int64
	ParseErrors int64
}

// Lookup returns the estimate for a key
func (s *EstimateSet) Lookup(key domain.EstimateKey) (*domain.EstimateRecord, bool) {
	record, ok := s.byKey[key]
	return record, ok
}

// Len returns the number of distinct keys in the set
func (s *EstimateSet) Len() int {
	return len(s.byKey)
}

// LoadEstimates reads a provider estimates file into an EstimateSet.
//
// Rows without a contract or with an unparsable date are skipped with a
// warning. On duplicate keys the last occurrence wins; strict mode fails
// with a DUPLICATE_KEY error instead. The M_LEG column is only required
// when the processor routes by leg.
func (p *Processor) LoadEstimates(ctx context.Context, path string) (*EstimateSet, error) {
	table, err := ReadTable(path, delimiterRune(p.cfg.EstimatesDelimiter))
	if err != nil {
		return nil, err
	}

	required := []string{config.ColContract, config.ColDate, config.ColDiscFlow, config.ColFlowCol}
	if p.mode() == domain.RoutingModeLeg {
		required = append(required, config.ColLeg)
	}
	cols, err := table.RequireColumns(required...)
	if err != nil {
		return nil, err
	}

	legIdx := -1
	if idx, ok := table.Column(config.ColLeg); ok {
		legIdx = idx
	}

	set := &EstimateSet{byKey: make(map[domain.EstimateKey]*domain.EstimateRecord, len(table.Rows))}
	for i, row := range table.Rows {
		line := table.Line(i)

		if len(row) != len(table.Header) {
			if p.cfg.Strict {
				return nil, apperrors.NewParsingError(
					fmt.Sprintf("malformed row in %s", path), nil).WithContext("line", line)
			}
			p.logger.WarnContext(ctx, "Skipping malformed estimate row",
				slog.String("file", path),
				slog.Int("line", line),
				slog.Int("fields", len(row)),
				slog.Int("expected", len(table.Header)))
			set.RowsSkipped++
			continue
		}

		contract := strings.TrimSpace(row[cols[config.ColContract]])
		if contract == "" {
			p.logger.WarnContext(ctx, "Skipping estimate row without contract",
				slog.String("file", path),
				slog.Int("line", line))
			set.RowsSkipped++
			continue
		}

		rawDate := strings.TrimSpace(row[cols[config.ColDate]])
		date, err := time.Parse(config.EstimateDateLayout, rawDate)
		if err != nil {
			p.logger.WarnContext(ctx, "Skipping estimate row with unparsable date",
				slog.String("file", path),
				slog.Int("line", line),
				slog.String("value", rawDate))
			set.RowsSkipped++
			continue
		}

		record := &domain.EstimateRecord{
			Contract: contract,
			Date:     date,
			DiscFlow: p.parseAmount(ctx, set, row[cols[config.ColDiscFlow]], config.ColDiscFlow, path, line),
			FlowCol:  p.parseAmount(ctx, set, row[cols[config.ColFlowCol]], config.ColFlowCol, path, line),
			Line:     line,
		}
		if legIdx >= 0 && legIdx < len(row) {
			record.Leg = normalizeLeg(row[legIdx])
		}

		key := domain.NewEstimateKey(contract, date)
		if previous, exists := set.byKey[key]; exists {
			set.Duplicates++
			if p.cfg.Strict {
				return nil, apperrors.NewDuplicateKeyError(key.String(), line)
			}
			p.logger.WarnContext(ctx, "Duplicate estimate key, keeping the last occurrence",
				slog.String("key", key.String()),
				slog.Int("first_line", previous.Line),
				slog.Int("line", line))
		}
		set.byKey[key] = record
		set.Loaded++
	}

	p.logger.InfoContext(ctx, "loaded estimates file",
		slog.String("file", path),
		slog.String("encoding", table.Encoding),
		slog.Int64("rows_loaded", set.Loaded),
		slog.Int("distinct_keys", set.Len()),
		slog.Int64("duplicates", set.Duplicates),
		slog.Int64("rows_skipped", set.RowsSkipped))

	return set, nil
}

// parseAmount coerces an estimate cell to a number. Blank cells are simply
// absent; a non-numeric value is a provider data issue worth a warning, and
// the field is skipped while the row still loads.
func (p *Processor) parseAmount(ctx context.Context, set *EstimateSet, raw, column, file string, line int) *float64 {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		set.ParseErrors++
		p.logger.WarnContext(ctx, "Non-numeric estimate value, field skipped",
			slog.String("file", file),
			slog.Int("line", line),
			slog.String("column", column),
			slog.String("value", value))
		return nil
	}

	return &parsed
}

// normalizeLeg canonicalizes the M_LEG cell. Some feeds carry the leg as a
// decimal ("1.0" instead of "1"); both forms route the same.
func normalizeLeg(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	switch parsed {
	case 1:
		return domain.LegDerechos
	case 2:
		return domain.LegObligaciones
	}
	return value
}
