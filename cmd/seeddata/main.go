package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gbocli/internal/config"
	"gbocli/internal/exporter"
	"gbocli/internal/infrastructure"
)

// Headers of the generated files. The estimates header keeps the provider's
// uppercase spelling; the reader normalizes case on load.
var (
	flowsHeader     = []string{config.ColCodEmp, config.ColFechaCobro, config.ColDerIntereses, config.ColOblIntereses, config.ColDerVP, config.ColOblVP}
	estimatesHeader = []string{"M_CONTRACT_", "M_DATE", "M_DISCFLOW", "M_FLOW_COL", "M_LEG"}
	reportHeader    = []string{config.ColCodigoOperacion, config.ColCupon, config.ColCupon1}
)

func main() {
	dataDir := flag.String("dir", "", "directory to write the sample files into (defaults to data relative to executable)")
	dateFlag := flag.String("date", "", "value date of the generated files (yyyymmdd, defaults to today)")
	rows := flag.Int("rows", 3, "number of flow rows to generate")
	withReport := flag.Bool("with-report", true, "also write the R5 report for the date")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "dir" {
			cfg.Paths.DataDir = absPath(*dataDir)
		}
	})

	if *rows < 1 {
		slog.Error("Row count must be at least 1", "rows", *rows)
		os.Exit(1)
	}

	date := time.Now()
	if *dateFlag != "" {
		date, err = time.Parse(config.FlowsDateLayout, *dateFlag)
		if err != nil {
			slog.Error("Invalid date flag, want yyyymmdd", "date", *dateFlag)
			os.Exit(1)
		}
	}

	paths, err := cfg.ResolvedPaths()
	if err != nil {
		slog.Error("Failed to resolve paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	logger.Info("Seeding sample input files",
		slog.String("data_dir", paths.DataDir),
		slog.String("date", date.Format(config.FlowsDateLayout)),
		slog.Int("rows", *rows),
		slog.Bool("with_report", *withReport))

	writer := exporter.NewCSVWriter(paths)

	flowsPath := paths.GetFlowsPath(date)
	err = writer.WriteDelimited(flowsPath, exporter.WriteOptions{
		Header:    flowsHeader,
		Rows:      buildFlowRows(date, *rows),
		Delimiter: delimiterRune(cfg.Processing.FlowsDelimiter),
	})
	if err != nil {
		logger.Error("Failed to write flows file", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", filepath.Base(flowsPath))

	estimatesPath := paths.GetEstimatesPath(date)
	err = writer.WriteDelimited(estimatesPath, exporter.WriteOptions{
		Header:    estimatesHeader,
		Rows:      buildEstimateRows(date, *rows),
		Delimiter: delimiterRune(cfg.Processing.EstimatesDelimiter),
	})
	if err != nil {
		logger.Error("Failed to write estimates file", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", filepath.Base(estimatesPath))

	if *withReport {
		reportPath := paths.GetReportPath(date)
		err = writer.WriteDelimited(reportPath, exporter.WriteOptions{
			Header:    reportHeader,
			Rows:      buildReportRows(*rows),
			Delimiter: delimiterRune(cfg.Processing.ReportDelimiter),
		})
		if err != nil {
			logger.Error("Failed to write report file", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", filepath.Base(reportPath))
	}

	fmt.Printf("Sample files for %s ready in %s\n", date.Format(config.FlowsDateLayout), paths.DataDir)
}

// seedContract returns the deterministic contract code for a row index.
// The first three mirror the reference sample files.
func seedContract(i int) string {
	names := []string{"ABC123", "XYZ789", "ZZZ999"}
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("SW%04d", i+1)
}

// buildFlowRows generates n flow rows for the date with zeroed amount
// columns, ready to be overwritten by the processor
func buildFlowRows(date time.Time, n int) [][]string {
	iso := date.Format(config.FlowDateLayoutISO)
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, []string{seedContract(i), iso, "0", "0", "0", "0"})
	}
	return rows
}

// buildEstimateRows generates estimates for all but every third contract, so
// a seeded run always exercises the unmatched-row path. Signs alternate to
// feed both routing directions and M_LEG alternates between the two legs.
func buildEstimateRows(date time.Time, n int) [][]string {
	latin := date.Format(config.EstimateDateLayout)
	var rows [][]string
	for i := 0; i < n; i++ {
		if i%3 == 2 {
			continue
		}

		scale := float64(i + 1)
		discFlow := 1000.0 * scale
		flowCol := -1500.0 * scale
		leg := "1"
		if i%2 == 1 {
			discFlow, flowCol = -discFlow, -flowCol
			leg = "2"
		}

		rows = append(rows, []string{
			seedContract(i),
			latin,
			strconv.FormatFloat(discFlow, 'f', 1, 64),
			strconv.FormatFloat(flowCol, 'f', 1, 64),
			leg,
		})
	}
	return rows
}

// buildReportRows generates one report row per contract plus one code the
// flows never carry
func buildReportRows(n int) [][]string {
	rows := make([][]string, 0, n+1)
	for i := 0; i < n; i++ {
		rows = append(rows, []string{seedContract(i), "0", "0"})
	}
	rows = append(rows, []string{"NO_MATCH", "0", "0"})
	return rows
}

// absPath resolves a command line path against the working directory, so the
// executable-relative default resolution does not reinterpret it
func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// delimiterRune returns the first rune of a configured delimiter string
func delimiterRune(s string) rune {
	if s == "" {
		return ','
	}
	return []rune(s)[0]
}
