// Package exporter writes the pipeline's output files.
//
// CSVWriter writes processed flow and report tables back out as delimited
// UTF-8, keeping each file's original delimiter. WorkbookExporter builds the
// optional resumen_<yyyymmdd>.xlsx with run totals, per-pair results and the
// per-contract sums behind the R5 enrichment.
//
// Example usage:
//
//	writer := exporter.NewCSVWriter(paths)
//	err := writer.WriteDelimited("flujos_swap_gbo_20240115_procesado.csv", exporter.WriteOptions{
//		Header:    table.Header,
//		Rows:      table.Rows,
//		Delimiter: ',',
//	})
//
//	workbook := exporter.NewWorkbookExporter(paths)
//	path, err := workbook.ExportRunSummary(summary, aggregates, nil)
package exporter
