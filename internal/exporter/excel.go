package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"gbocli/internal/config"
	"gbocli/pkg/contracts/domain"
)

// Workbook sheet names. Spanish, like the files the workbook reports on.
const (
	sheetRun       = "Resumen"
	sheetFiles     = "Archivos"
	sheetContracts = "Contratos"
	sheetRuntime   = "Sistema"
)

// WorkbookExporter writes the optional per-run summary workbook
type WorkbookExporter struct {
	paths *config.Paths
}

// NewWorkbookExporter creates a new workbook exporter
func NewWorkbookExporter(paths *config.Paths) *WorkbookExporter {
	return &WorkbookExporter{paths: paths}
}

// ExportRunSummary writes resumen_<yyyymmdd>.xlsx into the output directory:
// run totals, one row per processed pair, the per-contract sums behind the R5
// enrichment, and a runtime snapshot when one is given. Returns the written
// path.
func (e *WorkbookExporter) ExportRunSummary(summary *domain.RunSummary, aggregates map[string]*domain.ContractAggregate, runtime map[string]interface{}) (string, error) {
	if summary == nil {
		return "", fmt.Errorf("run summary is nil")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetRun); err != nil {
		return "", fmt.Errorf("failed to name %s sheet: %w", sheetRun, err)
	}
	if err := writeRunSheet(f, summary); err != nil {
		return "", fmt.Errorf("failed to write %s sheet: %w", sheetRun, err)
	}
	if err := writeFilesSheet(f, summary.Files); err != nil {
		return "", fmt.Errorf("failed to write %s sheet: %w", sheetFiles, err)
	}
	if err := writeContractsSheet(f, aggregates); err != nil {
		return "", fmt.Errorf("failed to write %s sheet: %w", sheetContracts, err)
	}
	if len(runtime) > 0 {
		if err := writeRuntimeSheet(f, runtime); err != nil {
			return "", fmt.Errorf("failed to write %s sheet: %w", sheetRuntime, err)
		}
	}

	path := e.paths.GetSummaryWorkbookPath(summary.StartTime)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	slog.Info("Wrote run summary workbook",
		slog.String("path", path),
		slog.Int("pairs", len(summary.Files)),
		slog.Int("contracts", len(aggregates)))

	return path, nil
}

// writeRunSheet fills the Resumen sheet with label/value rows
func writeRunSheet(f *excelize.File, summary *domain.RunSummary) error {
	rows := [][2]interface{}{
		{"run_id", summary.RunID},
		{"modo", string(summary.Mode)},
		{"estado", string(summary.Status)},
		{"inicio", summary.StartTime.Format(time.RFC3339)},
		{"fin", summary.EndTime.Format(time.RFC3339)},
		{"duracion_segundos", summary.Duration.Seconds()},
		{"pares_detectados", summary.PairsDiscovered},
		{"pares_procesados", summary.PairsProcessed},
		{"pares_fallidos", summary.PairsFailed},
		{"filas_leidas", summary.TotalRowsRead},
		{"filas_actualizadas", summary.TotalRowsUpdated},
		{"filas_sin_correspondencia", summary.TotalRowsUnmatched},
		{"filas_omitidas", summary.TotalRowsSkipped},
	}

	for i, row := range rows {
		if err := f.SetCellValue(sheetRun, fmt.Sprintf("A%d", i+1), row[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetRun, fmt.Sprintf("B%d", i+1), row[1]); err != nil {
			return err
		}
	}
	return nil
}

// writeFilesSheet fills the Archivos sheet with one row per processed pair
func writeFilesSheet(f *excelize.File, results []domain.FileResult) error {
	if _, err := f.NewSheet(sheetFiles); err != nil {
		return err
	}

	header := []interface{}{
		"fecha", "flujos", "estimaciones", "informe", "salida",
		"filas_leidas", "filas_actualizadas", "sin_correspondencia",
		"filas_omitidas", "campos_actualizados", "informe_enriquecidas",
		"estado", "error",
	}
	if err := writeRow(f, sheetFiles, 1, header); err != nil {
		return err
	}

	for i, result := range results {
		row := []interface{}{
			result.Pair.Date.Format("2006-01-02"),
			filepath.Base(result.Pair.FlowsFile),
			filepath.Base(result.Pair.EstimatesFile),
			baseOrEmpty(result.Pair.ReportFile),
			baseOrEmpty(result.OutputFile),
			result.RowsRead,
			result.RowsUpdated,
			result.RowsUnmatched,
			result.RowsSkipped,
			result.FieldsUpdated,
			result.ReportRowsEnriched,
			string(result.Status),
			result.Error,
		}
		if err := writeRow(f, sheetFiles, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// writeContractsSheet fills the Contratos sheet with per-contract sums in
// contract order
func writeContractsSheet(f *excelize.File, aggregates map[string]*domain.ContractAggregate) error {
	if _, err := f.NewSheet(sheetContracts); err != nil {
		return err
	}

	header := []interface{}{"contrato", "filas", "der_vp_total", "obl_vp_total", "cupon", "cupon_1"}
	if err := writeRow(f, sheetContracts, 1, header); err != nil {
		return err
	}

	contracts := make([]string, 0, len(aggregates))
	for contract := range aggregates {
		contracts = append(contracts, contract)
	}
	sort.Strings(contracts)

	for i, contract := range contracts {
		agg := aggregates[contract]
		row := []interface{}{
			agg.Contract,
			agg.Rows,
			agg.DerVPTotal,
			agg.OblVPTotal,
			agg.CuponMillions(),
			agg.Cupon1Millions(),
		}
		if err := writeRow(f, sheetContracts, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// writeRuntimeSheet fills the Sistema sheet with the runtime snapshot in
// key order
func writeRuntimeSheet(f *excelize.File, runtime map[string]interface{}) error {
	if _, err := f.NewSheet(sheetRuntime); err != nil {
		return err
	}

	keys := make([]string, 0, len(runtime))
	for key := range runtime {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		if err := writeRow(f, sheetRuntime, i+1, []interface{}{key, runtime[key]}); err != nil {
			return err
		}
	}
	return nil
}

// writeRow writes one 1-based row of values starting at column A
func writeRow(f *excelize.File, sheet string, rowNum int, values []interface{}) error {
	for colIdx, value := range values {
		col, err := excelize.ColumnNumberToName(colIdx + 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, col+fmt.Sprint(rowNum), value); err != nil {
			return err
		}
	}
	return nil
}

// baseOrEmpty returns the base name of a path, or empty for no path
func baseOrEmpty(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
