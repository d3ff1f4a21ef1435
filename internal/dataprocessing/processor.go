package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"gbocli/internal/config"
	apperrors "gbocli/internal/errors"
	"gbocli/pkg/contracts/domain"
)

// Processor joins flow extracts with provider estimates and overwrites the
// estimated columns according to the routing mode.
type Processor struct {
	logger *slog.Logger
	cfg    config.ProcessingConfig
}

// NewProcessor creates a processor with the given configuration
func NewProcessor(logger *slog.Logger, cfg config.ProcessingConfig) *Processor {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.RoutingMode == "" {
		cfg.RoutingMode = config.RoutingModeSign
	}
	if cfg.IdentifierColumn == "" {
		cfg.IdentifierColumn = config.ColCodEmp
	}

	return &Processor{logger: logger, cfg: cfg}
}

func (p *Processor) mode() domain.RoutingMode {
	return domain.RoutingMode(p.cfg.RoutingMode)
}

// Stats counts what ProcessFlows did to one file
type Stats struct {
	RowsRead      int64
	RowsUpdated   int64
	RowsUnmatched int64
	RowsSkipped   int64
	FieldsUpdated int64
}

// Result carries the mutated flows table plus statistics and the
// per-contract sums that feed R5 enrichment and the summary workbook.
type Result struct {
	Flows      *FlowsFile
	Stats      Stats
	Aggregates map[string]*domain.ContractAggregate
}

// ProcessFlows walks the flow rows in file order, looks each one up in the
// estimate set, and overwrites the estimated columns on a hit. Unmatched
// rows stay untouched; malformed rows are skipped with a warning. In strict
// mode both conditions fail the run instead.
func (p *Processor) ProcessFlows(ctx context.Context, flows *FlowsFile, estimates *EstimateSet) (*Result, error) {
	result := &Result{
		Flows:      flows,
		Aggregates: make(map[string]*domain.ContractAggregate),
	}

	for i, row := range flows.Table.Rows {
		line := flows.Table.Line(i)
		result.Stats.RowsRead++

		if len(row) != len(flows.Table.Header) {
			if p.cfg.Strict {
				return nil, apperrors.NewParsingError(
					fmt.Sprintf("malformed row in %s", flows.Table.Path), nil).WithContext("line", line)
			}
			p.logger.WarnContext(ctx, "Skipping malformed flow row",
				slog.String("file", flows.Table.Path),
				slog.Int("line", line),
				slog.Int("fields", len(row)),
				slog.Int("expected", len(flows.Table.Header)))
			result.Stats.RowsSkipped++
			continue
		}

		key, err := flows.Key(row)
		if err != nil {
			if p.cfg.Strict {
				return nil, apperrors.NewParsingError(
					fmt.Sprintf("invalid row in %s", flows.Table.Path), err).WithContext("line", line)
			}
			p.logger.WarnContext(ctx, "Skipping flow row without a usable key",
				slog.String("file", flows.Table.Path),
				slog.Int("line", line),
				slog.String("reason", err.Error()))
			result.Stats.RowsSkipped++
			continue
		}

		estimate, ok := estimates.Lookup(key)
		if !ok {
			if p.cfg.Strict {
				return nil, apperrors.NewUnmatchedRowError(key.String(), line)
			}
			result.Stats.RowsUnmatched++
			continue
		}

		updated := p.applyEstimate(row, flows, estimate)
		if updated == 0 {
			continue
		}
		result.Stats.RowsUpdated++
		result.Stats.FieldsUpdated += int64(updated)

		agg := result.Aggregates[key.Contract]
		if agg == nil {
			agg = &domain.ContractAggregate{Contract: key.Contract}
			result.Aggregates[key.Contract] = agg
		}
		agg.Add(cellAmount(row[flows.derVPIdx]), cellAmount(row[flows.oblVPIdx]))
	}

	p.logger.InfoContext(ctx, "processed flows file",
		slog.String("file", flows.Table.Path),
		slog.String("mode", p.cfg.RoutingMode),
		slog.Int64("rows_read", result.Stats.RowsRead),
		slog.Int64("rows_updated", result.Stats.RowsUpdated),
		slog.Int64("rows_unmatched", result.Stats.RowsUnmatched),
		slog.Int64("rows_skipped", result.Stats.RowsSkipped),
		slog.Int64("fields_updated", result.Stats.FieldsUpdated))

	return result, nil
}

// applyEstimate overwrites the estimated columns of one row, returning how
// many fields changed
func (p *Processor) applyEstimate(row []string, flows *FlowsFile, estimate *domain.EstimateRecord) int {
	if p.mode() == domain.RoutingModeLeg {
		return applyByLeg(row, flows, estimate)
	}
	return applyBySign(row, flows, estimate)
}

// applyBySign routes each amount by its sign: positive to the der_* column,
// negative to obl_* as an absolute value. M_DISCFLOW feeds the interest
// columns, M_FLOW_COL the present value columns.
func applyBySign(row []string, flows *FlowsFile, estimate *domain.EstimateRecord) int {
	updated := routeBySign(row, estimate.DiscFlow, flows.derIntIdx, flows.oblIntIdx)
	updated += routeBySign(row, estimate.FlowCol, flows.derVPIdx, flows.oblVPIdx)
	return updated
}

// routeBySign writes an amount to the der or obl column depending on its
// sign. Zero or absent amounts leave both cells untouched.
func routeBySign(row []string, amount *float64, derIdx, oblIdx int) int {
	if amount == nil {
		return 0
	}
	switch {
	case *amount > 0:
		row[derIdx] = formatAmount(*amount)
		return 1
	case *amount < 0:
		row[oblIdx] = formatAmount(math.Abs(*amount))
		return 1
	}
	return 0
}

// applyByLeg routes the whole row by the M_LEG column: leg 1 feeds the der_*
// pair, leg 2 the obl_* pair, any other leg leaves the row untouched. The
// legacy feed swaps the amount columns relative to the current one:
// M_FLOW_COL carries the interest amount and M_DISCFLOW the present value,
// both taken as absolute values.
func applyByLeg(row []string, flows *FlowsFile, estimate *domain.EstimateRecord) int {
	var interesesIdx, vpIdx int
	switch estimate.Leg {
	case domain.LegDerechos:
		interesesIdx, vpIdx = flows.derIntIdx, flows.derVPIdx
	case domain.LegObligaciones:
		interesesIdx, vpIdx = flows.oblIntIdx, flows.oblVPIdx
	default:
		return 0
	}

	updated := 0
	if estimate.FlowCol != nil {
		row[interesesIdx] = formatAmount(math.Abs(*estimate.FlowCol))
		updated++
	}
	if estimate.DiscFlow != nil {
		row[vpIdx] = formatAmount(math.Abs(*estimate.DiscFlow))
		updated++
	}
	return updated
}

// formatAmount renders an overwritten cell in the shortest form that
// round-trips the value
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// cellAmount reads a numeric cell for aggregation; blank or non-numeric
// cells count as zero
func cellAmount(raw string) float64 {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

// delimiterRune converts a configured single-character delimiter string
func delimiterRune(s string) rune {
	if s == "" {
		return ','
	}
	return []rune(s)[0]
}
