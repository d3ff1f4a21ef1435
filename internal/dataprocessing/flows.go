package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gbocli/internal/config"
	"gbocli/pkg/contracts/domain"
)

// FlowsFile is a loaded flows extract with the join and overwrite columns
// resolved. Rows stay as raw strings so untouched cells pass through to the
// output unchanged.
type FlowsFile struct {
	Table *Table

	identifierColumn string
	idIdx            int
	dateIdx          int
	derIntIdx        int
	oblIntIdx        int
	derVPIdx         int
	oblVPIdx         int
}

// LoadFlows reads and validates a flows CSV. The identifier column is
// configurable; current extracts join on cod_emp, the legacy feed on
// nro_papeleta.
func (p *Processor) LoadFlows(ctx context.Context, path string) (*FlowsFile, error) {
	table, err := ReadTable(path, delimiterRune(p.cfg.FlowsDelimiter))
	if err != nil {
		return nil, err
	}

	idColumn := p.cfg.IdentifierColumn
	cols, err := table.RequireColumns(idColumn, config.ColFechaCobro,
		config.ColDerIntereses, config.ColOblIntereses, config.ColDerVP, config.ColOblVP)
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "loaded flows file",
		slog.String("file", table.Path),
		slog.Int("rows", len(table.Rows)),
		slog.String("encoding", table.Encoding),
		slog.String("identifier_column", idColumn))

	return &FlowsFile{
		Table:            table,
		identifierColumn: idColumn,
		idIdx:            cols[idColumn],
		dateIdx:          cols[config.ColFechaCobro],
		derIntIdx:        cols[config.ColDerIntereses],
		oblIntIdx:        cols[config.ColOblIntereses],
		derVPIdx:         cols[config.ColDerVP],
		oblVPIdx:         cols[config.ColOblVP],
	}, nil
}

// Key builds the estimate lookup key for one data row
func (f *FlowsFile) Key(row []string) (domain.EstimateKey, error) {
	id := strings.TrimSpace(row[f.idIdx])
	if id == "" {
		return domain.EstimateKey{}, fmt.Errorf("empty %s", f.identifierColumn)
	}

	date, err := parseFlowDate(strings.TrimSpace(row[f.dateIdx]))
	if err != nil {
		return domain.EstimateKey{}, err
	}

	return domain.NewEstimateKey(id, date), nil
}

// parseFlowDate accepts the ISO layout of current extracts and the
// dd/mm/yyyy layout of legacy files
func parseFlowDate(value string) (time.Time, error) {
	for _, layout := range []string{config.FlowDateLayoutISO, config.FlowDateLayoutLatin} {
		if date, err := time.Parse(layout, value); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable payment date %q", value)
}
