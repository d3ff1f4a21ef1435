package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"

	"gbocli/internal/config"
	"gbocli/internal/dataprocessing"
	"gbocli/internal/exporter"
	"gbocli/internal/files"
	"gbocli/internal/infrastructure"
	"gbocli/internal/validation"
	"gbocli/pkg/contracts/domain"
)

// pipeline bundles what processing one file pair needs
type pipeline struct {
	processor  *dataprocessing.Processor
	discovery  *files.Discovery
	writer     *exporter.CSVWriter
	logger     *slog.Logger
	metrics    *infrastructure.PipelineMetrics
	runID      string
	processing config.ProcessingConfig
}

func main() {
	dataDir := flag.String("dir", "", "input directory with flow and estimate files (defaults to data relative to executable)")
	outDir := flag.String("out", "", "output directory for processed files (defaults to procesados relative to executable)")
	dateFlag := flag.String("date", "", "process one value date (yyyymmdd) instead of scanning the input directory")
	fullRework := flag.Bool("full", false, "reprocess pairs whose output file already exists")
	strict := flag.Bool("strict", false, "fail on malformed rows, duplicate keys and unmatched flow rows")
	mode := flag.String("mode", "", "routing mode: sign or leg (defaults to config)")
	workbook := flag.Bool("xlsx", false, "write the resumen workbook after the run")
	configFile := flag.String("config", "", "path of the YAML config file (defaults to gbo.yaml next to the executable)")
	flag.Parse()

	cfg, err := config.LoadFrom(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Flags present on the command line override file and environment values.
	// flag.Visit only sees flags the user actually set, so an untouched flag
	// never clobbers a configured value.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			cfg.Paths.DataDir = absPath(*dataDir)
		case "out":
			cfg.Paths.OutputDir = absPath(*outDir)
		case "full":
			cfg.Processing.FullRework = *fullRework
		case "strict":
			cfg.Processing.Strict = *strict
		case "mode":
			cfg.Processing.RoutingMode = *mode
		case "xlsx":
			cfg.Processing.SummaryWorkbook = *workbook
		}
	})
	cfg.Processing.IdentifierColumn = identifierForMode(cfg.Processing.RoutingMode, cfg.Processing.IdentifierColumn)

	if !domain.RoutingMode(cfg.Processing.RoutingMode).IsValid() {
		slog.Error("Unknown routing mode", "mode", cfg.Processing.RoutingMode)
		os.Exit(1)
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

	ctx, runID := infrastructure.EnsureRunID(context.Background())

	logger.InfoContext(ctx, "Starting GBO swap flow processing",
		slog.String("data_dir", paths.DataDir),
		slog.String("output_dir", paths.OutputDir),
		slog.String("mode", cfg.Processing.RoutingMode),
		slog.String("identifier", cfg.Processing.IdentifierColumn),
		slog.Bool("strict", cfg.Processing.Strict),
		slog.Bool("full_rework", cfg.Processing.FullRework))

	validator := validation.NewFileValidator(logger)
	flowsPattern := config.FlowsFilePrefix + "*" + config.FlowsFileExt
	if err := validator.ValidateInputDirectory(paths.DataDir, flowsPattern); err != nil {
		logger.ErrorContext(ctx, "Input directory validation failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := validator.ValidateOutputDirectory(paths.OutputDir); err != nil {
		logger.ErrorContext(ctx, "Output directory validation failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Observability is best effort for a batch run; a broken exporter must
	// not keep the files from being processed.
	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Metrics), logger)
	if err != nil {
		logger.WarnContext(ctx, "OpenTelemetry unavailable, continuing without metrics",
			slog.String("error", err.Error()))
		providers = nil
	}

	var metrics *infrastructure.PipelineMetrics
	var runtimeMetrics *infrastructure.RuntimeMetrics
	if providers != nil && providers.Meter != nil {
		if metrics, err = infrastructure.CreatePipelineMetrics(providers.Meter); err != nil {
			logger.WarnContext(ctx, "Failed to create pipeline metrics", slog.String("error", err.Error()))
		}
		if runtimeMetrics, err = infrastructure.NewRuntimeMetrics(providers.Meter); err != nil {
			logger.WarnContext(ctx, "Failed to create runtime metrics", slog.String("error", err.Error()))
		}
	}

	ctx, rootSpan := infrastructure.StartRunSpan(ctx, runID, cfg.Processing.RoutingMode)

	discovery := files.NewDiscovery(paths, cfg.Processing)

	discoverStart := time.Now()
	discoverCtx, discoverSpan := infrastructure.StartStageSpan(ctx, "discover", runID)
	var pairs []domain.FilePair
	if *dateFlag != "" {
		date, err := time.Parse(config.FlowsDateLayout, *dateFlag)
		if err != nil {
			logger.ErrorContext(ctx, "Invalid date flag, want yyyymmdd", slog.String("date", *dateFlag))
			fmt.Fprintf(os.Stderr, "invalid -date %q, want yyyymmdd\n", *dateFlag)
			os.Exit(1)
		}
		pair, err := discovery.DiscoverDate(discoverCtx, date)
		if err != nil {
			logger.ErrorContext(ctx, "Date lookup failed", slog.String("error", err.Error()))
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		pairs = []domain.FilePair{pair}
	} else {
		pairs, err = discovery.DiscoverPairs(discoverCtx)
		if err != nil {
			logger.ErrorContext(ctx, "Pair discovery failed", slog.String("error", err.Error()))
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	infrastructure.EndSpan(discoverSpan, nil)
	infrastructure.RecordStageMetrics(ctx, metrics, runID, "discover", time.Since(discoverStart), true)
	infrastructure.RecordDiscoveryMetrics(ctx, metrics, runID, len(pairs))

	fmt.Printf("Found %d file pairs\n", len(pairs))
	if len(pairs) == 0 {
		logger.InfoContext(ctx, "All outputs are up to date, nothing to process")
	}

	pipe := &pipeline{
		processor:  dataprocessing.NewProcessor(logger, cfg.Processing),
		discovery:  discovery,
		writer:     exporter.NewCSVWriter(paths),
		logger:     logger,
		metrics:    metrics,
		runID:      runID,
		processing: cfg.Processing,
	}

	summary := domain.NewRunSummary(runID, domain.RoutingMode(cfg.Processing.RoutingMode))
	aggregates := make(map[string]*domain.ContractAggregate)

	infrastructure.RecordActiveRunChange(ctx, metrics, 1, cfg.Processing.RoutingMode)
	for i, pair := range pairs {
		logger.InfoContext(ctx, "Processing pair",
			slog.Int("current", i+1),
			slog.Int("total", len(pairs)),
			slog.String("flows", filepath.Base(pair.FlowsFile)),
			slog.Bool("has_report", pair.HasReport()))
		fmt.Printf("Processing pair %d of %d: %s\n", i+1, len(pairs), filepath.Base(pair.FlowsFile))

		result, pairAggregates := processPair(ctx, pipe, pair)
		summary.AddFileResult(result)
		mergeAggregates(aggregates, pairAggregates)

		infrastructure.RecordFileMetrics(ctx, metrics, runID, infrastructure.FileCounters{
			RowsRead:           result.RowsRead,
			RowsUpdated:        result.RowsUpdated,
			RowsUnmatched:      result.RowsUnmatched,
			RowsSkipped:        result.RowsSkipped,
			EstimatesLoaded:    result.EstimatesLoaded,
			ParseErrors:        result.ParseErrors,
			ReportRowsEnriched: result.ReportRowsEnriched,
			InputBytes:         inputBytes(pair),
			Succeeded:          result.Succeeded(),
		})
	}
	infrastructure.RecordActiveRunChange(ctx, metrics, -1, cfg.Processing.RoutingMode)

	summary.Finalize(time.Now())

	if cfg.Processing.SummaryWorkbook {
		var runtimeStats map[string]interface{}
		if runtimeMetrics != nil {
			runtimeStats = runtimeMetrics.Collect(ctx, summary.StartTime).FormatStats()
		}
		if path, err := exporter.NewWorkbookExporter(paths).ExportRunSummary(summary, aggregates, runtimeStats); err != nil {
			logger.WarnContext(ctx, "Failed to write summary workbook", slog.String("error", err.Error()))
		} else {
			logger.InfoContext(ctx, "Summary workbook written", slog.String("path", path))
		}
	}

	var runErr error
	if summary.Status == domain.RunStatusFailed {
		runErr = fmt.Errorf("all %d discovered pairs failed", summary.PairsFailed)
	}
	infrastructure.RecordRunMetrics(ctx, metrics, runID, cfg.Processing.RoutingMode,
		summary.Duration, summary.Status != domain.RunStatusFailed, runErr)

	infrastructure.EndSpan(rootSpan, runErr)
	if providers != nil {
		// Derived from the run context so the push keeps the run ID grouping key
		flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := providers.PushMetrics(flushCtx); err != nil {
			logger.WarnContext(ctx, "Failed to push metrics", slog.String("error", err.Error()))
		}
		if err := providers.Shutdown(flushCtx); err != nil {
			logger.WarnContext(ctx, "OpenTelemetry shutdown failed", slog.String("error", err.Error()))
		}
		cancel()
	}

	logger.InfoContext(ctx, "Processing run finished",
		slog.String("status", string(summary.Status)),
		slog.Int("pairs_processed", summary.PairsProcessed),
		slog.Int("pairs_failed", summary.PairsFailed),
		slog.Int64("rows_read", summary.TotalRowsRead),
		slog.Int64("rows_updated", summary.TotalRowsUpdated),
		slog.Duration("duration", summary.Duration))

	fmt.Println(domain.FormatRunSummary(summary))

	if summary.Status == domain.RunStatusFailed {
		os.Exit(1)
	}
}

// processPair runs the pipeline for one file pair: load both inputs,
// overwrite the estimated columns, write the processed copy and, when the
// pair carries an R5 report, enrich and write that too. The returned
// aggregates feed the contract sheet of the summary workbook.
func processPair(ctx context.Context, p *pipeline, pair domain.FilePair) (domain.FileResult, map[string]*domain.ContractAggregate) {
	result := domain.FileResult{Pair: pair}

	parseStart := time.Now()
	parseCtx, parseSpan := infrastructure.StartStageSpan(ctx, "parse", p.runID)
	flows, err := p.processor.LoadFlows(parseCtx, pair.FlowsFile)
	if err != nil {
		return failPair(parseCtx, p, result, "parse", parseSpan, parseStart, err)
	}
	estimates, err := p.processor.LoadEstimates(parseCtx, pair.EstimatesFile)
	if err != nil {
		return failPair(parseCtx, p, result, "parse", parseSpan, parseStart, err)
	}
	result.EstimatesLoaded = estimates.Loaded
	result.DuplicateKeys = estimates.Duplicates
	result.ParseErrors = estimates.ParseErrors
	infrastructure.EndSpan(parseSpan, nil)
	infrastructure.RecordStageMetrics(ctx, p.metrics, p.runID, "parse", time.Since(parseStart), true)

	updateStart := time.Now()
	updateCtx, updateSpan := infrastructure.StartStageSpan(ctx, "update", p.runID)
	processed, err := p.processor.ProcessFlows(updateCtx, flows, estimates)
	if err != nil {
		return failPair(updateCtx, p, result, "update", updateSpan, updateStart, err)
	}
	result.RowsRead = processed.Stats.RowsRead
	result.RowsUpdated = processed.Stats.RowsUpdated
	result.RowsUnmatched = processed.Stats.RowsUnmatched
	result.RowsSkipped = processed.Stats.RowsSkipped
	result.FieldsUpdated = processed.Stats.FieldsUpdated
	infrastructure.EndSpan(updateSpan, nil)
	infrastructure.RecordStageMetrics(ctx, p.metrics, p.runID, "update", time.Since(updateStart), true)

	writeStart := time.Now()
	writeCtx, writeSpan := infrastructure.StartStageSpan(ctx, "write", p.runID)
	outPath := p.discovery.OutputPath(pair.FlowsFile)
	err = p.writer.WriteDelimited(outPath, exporter.WriteOptions{
		Header:    flows.Table.Header,
		Rows:      flows.Table.Rows,
		Delimiter: delimiterRune(p.processing.FlowsDelimiter),
	})
	if err != nil {
		return failPair(writeCtx, p, result, "write", writeSpan, writeStart, err)
	}
	result.OutputFile = outPath
	infrastructure.EndSpan(writeSpan, nil)
	infrastructure.RecordStageMetrics(ctx, p.metrics, p.runID, "write", time.Since(writeStart), true)

	result.Status = domain.RunStatusCompleted

	if pair.HasReport() {
		reportStart := time.Now()
		reportCtx, reportSpan := infrastructure.StartStageSpan(ctx, "report", p.runID)
		reportOut, enriched, err := p.enrichReport(reportCtx, pair, processed.Aggregates)
		if err != nil {
			// The processed flows file is already on disk, so a report
			// problem downgrades the pair instead of failing it.
			p.logger.WarnContext(ctx, "R5 report enrichment failed",
				slog.String("file", filepath.Base(pair.ReportFile)),
				slog.String("error", err.Error()))
			result.Status = domain.RunStatusPartial
			result.Error = err.Error()
			infrastructure.EndSpan(reportSpan, err)
			infrastructure.RecordStageMetrics(ctx, p.metrics, p.runID, "report", time.Since(reportStart), false)
		} else {
			result.ReportOutputFile = reportOut
			result.ReportRowsEnriched = enriched
			infrastructure.EndSpan(reportSpan, nil)
			infrastructure.RecordStageMetrics(ctx, p.metrics, p.runID, "report", time.Since(reportStart), true)
		}
	}

	p.logger.InfoContext(ctx, "Pair processed",
		slog.String("output", filepath.Base(result.OutputFile)),
		slog.Int64("rows_read", result.RowsRead),
		slog.Int64("rows_updated", result.RowsUpdated),
		slog.Int64("rows_unmatched", result.RowsUnmatched),
		slog.Int64("report_rows_enriched", result.ReportRowsEnriched))

	return result, processed.Aggregates
}

// enrichReport loads the R5 report, overwrites cupon and cupon_1 from the
// aggregates and writes the processed copy
func (p *pipeline) enrichReport(ctx context.Context, pair domain.FilePair, aggregates map[string]*domain.ContractAggregate) (string, int64, error) {
	report, err := p.processor.LoadReport(ctx, pair.ReportFile)
	if err != nil {
		return "", 0, err
	}

	enriched, err := p.processor.EnrichReport(ctx, report, aggregates)
	if err != nil {
		return "", 0, err
	}

	outPath := p.discovery.OutputPath(pair.ReportFile)
	err = p.writer.WriteDelimited(outPath, exporter.WriteOptions{
		Header:    report.Table.Header,
		Rows:      report.Table.Rows,
		Delimiter: delimiterRune(p.processing.ReportDelimiter),
	})
	if err != nil {
		return "", 0, err
	}

	return outPath, enriched, nil
}

// failPair marks the pair failed and closes its stage span and metric
func failPair(ctx context.Context, p *pipeline, result domain.FileResult, stage string, span trace.Span, start time.Time, err error) (domain.FileResult, map[string]*domain.ContractAggregate) {
	p.logger.ErrorContext(ctx, "Pair processing failed",
		slog.String("stage", stage),
		slog.String("flows", filepath.Base(result.Pair.FlowsFile)),
		slog.String("error", err.Error()))
	result.Status = domain.RunStatusFailed
	result.Error = err.Error()
	infrastructure.EndSpan(span, err)
	infrastructure.RecordStageMetrics(ctx, p.metrics, p.runID, stage, time.Since(start), false)
	return result, nil
}

// mergeAggregates folds the per-pair contract sums into the run-level map
func mergeAggregates(into map[string]*domain.ContractAggregate, from map[string]*domain.ContractAggregate) {
	for contract, agg := range from {
		if existing, ok := into[contract]; ok {
			existing.Merge(agg)
			continue
		}
		copied := *agg
		into[contract] = &copied
	}
}

// identifierForMode returns the join column for a routing mode when the
// configuration left the identifier at its default. The legacy feed that leg
// routing exists for joins on nro_papeleta rather than cod_emp; an
// explicitly configured identifier always wins.
func identifierForMode(mode, identifier string) string {
	if mode == config.RoutingModeLeg && identifier == config.ColCodEmp {
		return config.ColNroPapeleta
	}
	return identifier
}

// inputBytes sums the sizes of the pair's input files for the bytes metric
func inputBytes(pair domain.FilePair) int64 {
	var total int64
	for _, path := range []string{pair.FlowsFile, pair.EstimatesFile, pair.ReportFile} {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	return total
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
