package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gbocli/internal/config"
	apperrors "gbocli/internal/errors"
	"gbocli/pkg/contracts/domain"
)

// ReportFile is a loaded R5 regulatory report with the enrichment columns
// resolved
type ReportFile struct {
	Table *Table

	codigoIdx int
	cuponIdx  int
	cupon1Idx int
}

// LoadReport reads and validates an R5 report
func (p *Processor) LoadReport(ctx context.Context, path string) (*ReportFile, error) {
	table, err := ReadTable(path, delimiterRune(p.cfg.ReportDelimiter))
	if err != nil {
		return nil, err
	}

	cols, err := table.RequireColumns(config.ColCodigoOperacion, config.ColCupon, config.ColCupon1)
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "loaded R5 report",
		slog.String("file", table.Path),
		slog.Int("rows", len(table.Rows)),
		slog.String("encoding", table.Encoding))

	return &ReportFile{
		Table:     table,
		codigoIdx: cols[config.ColCodigoOperacion],
		cuponIdx:  cols[config.ColCupon],
		cupon1Idx: cols[config.ColCupon1],
	}, nil
}

// EnrichReport rewrites cupon and cupon_1 for every report row whose
// codigo_operacion collected updated flow amounts, expressing both sums in
// millions. Rows with no updated flows stay untouched.
func (p *Processor) EnrichReport(ctx context.Context, report *ReportFile, aggregates map[string]*domain.ContractAggregate) (int64, error) {
	var enriched int64
	for i, row := range report.Table.Rows {
		line := report.Table.Line(i)

		if len(row) != len(report.Table.Header) {
			if p.cfg.Strict {
				return enriched, apperrors.NewParsingError(
					fmt.Sprintf("malformed row in %s", report.Table.Path), nil).WithContext("line", line)
			}
			p.logger.WarnContext(ctx, "Skipping malformed report row",
				slog.String("file", report.Table.Path),
				slog.Int("line", line))
			continue
		}

		contract := strings.TrimSpace(row[report.codigoIdx])
		agg, ok := aggregates[contract]
		if !ok {
			continue
		}

		row[report.cuponIdx] = formatAmount(agg.CuponMillions())
		row[report.cupon1Idx] = formatAmount(agg.Cupon1Millions())
		enriched++
	}

	p.logger.InfoContext(ctx, "enriched R5 report",
		slog.String("file", report.Table.Path),
		slog.Int64("rows_enriched", enriched),
		slog.Int("contracts_with_updates", len(aggregates)))

	return enriched, nil
}
