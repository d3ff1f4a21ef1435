package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"gbocli/internal/config"
)

const (
	ServiceName    = "gbo-swap-flow-processor"
	ServiceVersion = "v1.0.0"
	MeterName      = "gbocli"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
	GatewayURL     string // Prometheus Pushgateway, empty disables pushing
	JobName        string
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *prom.Registry
	Logger         *slog.Logger

	gatewayURL string
	jobName    string
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "stdout", // Use stdout for development
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0, // Sample all traces in development
		JobName:        config.DefaultMetricsJobName,
	}
}

// OTelConfigFrom builds OpenTelemetry configuration from the metrics section
// of the application configuration.
func OTelConfigFrom(cfg config.MetricsConfig) *OTelConfig {
	otelCfg := DefaultOTelConfig()

	otelCfg.EnableMetrics = cfg.Enabled
	otelCfg.EnableTracing = cfg.TracingEnabled
	otelCfg.GatewayURL = cfg.GatewayURL
	if cfg.JobName != "" {
		otelCfg.JobName = cfg.JobName
	}
	if !cfg.Enabled {
		otelCfg.MetricExporter = "none"
	}
	if !cfg.TracingEnabled {
		otelCfg.TraceExporter = "none"
	}

	return otelCfg
}

// InitializeOTel initializes OpenTelemetry tracing and metrics
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	// Create resource
	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger:     logger,
		gatewayURL: cfg.GatewayURL,
		jobName:    cfg.JobName,
	}

	// Initialize tracing
	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	// Initialize metrics
	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	// Set up global propagators for trace context
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialization complete",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
	case "none":
		// No exporter - tracing disabled
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Create tracer provider
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))

	// Set global tracer provider
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		// A dedicated registry keeps run metrics isolated and pushable
		registry := prom.NewRegistry()

		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		// Create meter provider with Prometheus reader
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.Registry = registry
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

		// Set global meter provider
		otel.SetMeterProvider(mp)

	case "none":
		// No exporter - metrics disabled
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter),
		slog.String("gateway", cfg.GatewayURL))

	return nil
}

// PushMetrics pushes the collected metrics to the configured Pushgateway.
// Call this at the end of a run, before Shutdown. A missing gateway URL is
// not an error for a batch tool, the metrics simply stay local. When the
// context carries a run ID it becomes a grouping key, so the gateway keeps
// each run's final counters apart.
func (p *OTelProviders) PushMetrics(ctx context.Context) error {
	if p.Registry == nil {
		return nil
	}
	if p.gatewayURL == "" {
		p.Logger.DebugContext(ctx, "No metrics gateway configured, skipping push")
		return nil
	}

	pusher := push.New(p.gatewayURL, p.jobName).Gatherer(p.Registry)
	if runID := GetTraceID(ctx); runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", p.gatewayURL, err)
	}

	p.Logger.InfoContext(ctx, "Metrics pushed to gateway",
		slog.String("gateway", p.gatewayURL),
		slog.String("job", p.jobName))

	return nil
}

// CreatePipelineMetrics creates the processing pipeline metric instruments
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	runsTotal, err := meter.Int64Counter(
		"processing_runs_total",
		metric.WithDescription("Total number of processing runs"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"processing_run_duration_seconds",
		metric.WithDescription("Processing run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runErrors, err := meter.Int64Counter(
		"processing_run_errors_total",
		metric.WithDescription("Total number of failed processing runs"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"processing_stage_duration_seconds",
		metric.WithDescription("Processing stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	activeRuns, err := meter.Int64UpDownCounter(
		"processing_active_runs",
		metric.WithDescription("Number of processing runs in flight"),
	)
	if err != nil {
		return nil, err
	}

	filePairsDiscovered, err := meter.Int64Counter(
		"file_pairs_discovered_total",
		metric.WithDescription("Total number of flow/estimate file pairs discovered"),
	)
	if err != nil {
		return nil, err
	}

	filesProcessed, err := meter.Int64Counter(
		"files_processed_total",
		metric.WithDescription("Total number of files processed"),
	)
	if err != nil {
		return nil, err
	}

	rowsRead, err := meter.Int64Counter(
		"flow_rows_read_total",
		metric.WithDescription("Total number of flow rows read"),
	)
	if err != nil {
		return nil, err
	}

	rowsUpdated, err := meter.Int64Counter(
		"flow_rows_updated_total",
		metric.WithDescription("Total number of flow rows updated from estimates"),
	)
	if err != nil {
		return nil, err
	}

	rowsSkipped, err := meter.Int64Counter(
		"flow_rows_skipped_total",
		metric.WithDescription("Total number of malformed flow rows skipped"),
	)
	if err != nil {
		return nil, err
	}

	estimatesLoaded, err := meter.Int64Counter(
		"estimates_loaded_total",
		metric.WithDescription("Total number of estimate records loaded"),
	)
	if err != nil {
		return nil, err
	}

	unmatchedRows, err := meter.Int64Counter(
		"unmatched_flow_rows_total",
		metric.WithDescription("Total number of flow rows without a matching estimate"),
	)
	if err != nil {
		return nil, err
	}

	parseErrors, err := meter.Int64Counter(
		"parse_errors_total",
		metric.WithDescription("Total number of value parse errors"),
	)
	if err != nil {
		return nil, err
	}

	reportRowsEnriched, err := meter.Int64Counter(
		"report_rows_enriched_total",
		metric.WithDescription("Total number of R5 report rows enriched"),
	)
	if err != nil {
		return nil, err
	}

	dataProcessed, err := meter.Int64Counter(
		"data_processed_bytes",
		metric.WithDescription("Total bytes of input data processed"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		RunsTotal:           runsTotal,
		RunDuration:         runDuration,
		RunErrors:           runErrors,
		StageDuration:       stageDuration,
		ActiveRuns:          activeRuns,
		FilePairsDiscovered: filePairsDiscovered,
		FilesProcessed:      filesProcessed,
		RowsRead:            rowsRead,
		RowsUpdated:         rowsUpdated,
		RowsSkipped:         rowsSkipped,
		EstimatesLoaded:     estimatesLoaded,
		UnmatchedRows:       unmatchedRows,
		ParseErrors:         parseErrors,
		ReportRowsEnriched:  reportRowsEnriched,
		DataProcessed:       dataProcessed,
	}, nil
}

// PipelineMetrics holds the processing pipeline metric instruments
type PipelineMetrics struct {
	RunsTotal           metric.Int64Counter
	RunDuration         metric.Float64Histogram
	RunErrors           metric.Int64Counter
	StageDuration       metric.Float64Histogram
	ActiveRuns          metric.Int64UpDownCounter
	FilePairsDiscovered metric.Int64Counter
	FilesProcessed      metric.Int64Counter
	RowsRead            metric.Int64Counter
	RowsUpdated         metric.Int64Counter
	RowsSkipped         metric.Int64Counter
	EstimatesLoaded     metric.Int64Counter
	UnmatchedRows       metric.Int64Counter
	ParseErrors         metric.Int64Counter
	ReportRowsEnriched  metric.Int64Counter
	DataProcessed       metric.Int64Counter
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// SpanFromContext returns the current span from context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// StartRunSpan opens the root span for a processing run. The global tracer
// is a no-op until InitializeOTel enables tracing, so callers never need a
// nil check.
func StartRunSpan(ctx context.Context, runID, mode string) (context.Context, trace.Span) {
	return otel.Tracer(MeterName).Start(ctx, "processing_run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.mode", mode),
		),
	)
}

// StartStageSpan opens a child span for one pipeline stage
func StartStageSpan(ctx context.Context, stage, runID string) (context.Context, trace.Span) {
	return otel.Tracer(MeterName).Start(ctx, "pipeline.stage."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("stage", stage),
		),
	)
}

// EndSpan closes a span, recording err on it first when non-nil
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		case int64:
			span.SetAttributes(attribute.Int64(k, val))
		case float64:
			span.SetAttributes(attribute.Float64(k, val))
		case bool:
			span.SetAttributes(attribute.Bool(k, val))
		default:
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
}

// RecordRunMetrics records metrics for a completed processing run
func RecordRunMetrics(ctx context.Context, metrics *PipelineMetrics, runID, mode string, duration time.Duration, success bool, err error) {
	if metrics == nil {
		return
	}

	// Common attributes
	attrs := []attribute.KeyValue{
		attribute.String("run.id", runID),
		attribute.String("run.mode", mode),
	}

	// Record execution
	metrics.RunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	// Record duration
	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}
	durationAttrs := append(attrs, statusAttr)
	metrics.RunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(durationAttrs...))

	// Record errors
	if err != nil {
		errorAttrs := append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))
		metrics.RunErrors.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
	}

	// Add span event
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("run.metrics_recorded",
			trace.WithAttributes(
				attribute.String("run.id", runID),
				attribute.Bool("success", success),
				attribute.Float64("duration_seconds", duration.Seconds()),
			),
		)
	}
}

// RecordStageMetrics records metrics for a pipeline stage
func RecordStageMetrics(ctx context.Context, metrics *PipelineMetrics, runID, stage string, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	// Common attributes
	attrs := []attribute.KeyValue{
		attribute.String("run.id", runID),
		attribute.String("stage", stage),
	}

	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}
	durationAttrs := append(attrs, statusAttr)
	metrics.StageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(durationAttrs...))
}

// RecordActiveRunChange records changes in active run count
func RecordActiveRunChange(ctx context.Context, metrics *PipelineMetrics, delta int64, mode string) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.mode", mode),
	}

	metrics.ActiveRuns.Add(ctx, delta, metric.WithAttributes(attrs...))
}

// RecordDiscoveryMetrics records how many file pairs a run discovered
func RecordDiscoveryMetrics(ctx context.Context, metrics *PipelineMetrics, runID string, pairs int) {
	if metrics == nil {
		return
	}

	metrics.FilePairsDiscovered.Add(ctx, int64(pairs),
		metric.WithAttributes(attribute.String("run.id", runID)))
}

// FileCounters carries the counters of one processed file pair into the
// metric instruments. The values come straight from the pair's FileResult.
type FileCounters struct {
	RowsRead           int64
	RowsUpdated        int64
	RowsUnmatched      int64
	RowsSkipped        int64
	EstimatesLoaded    int64
	ParseErrors        int64
	ReportRowsEnriched int64
	InputBytes         int64
	Succeeded          bool
}

// RecordFileMetrics records the counters of one processed file pair
func RecordFileMetrics(ctx context.Context, metrics *PipelineMetrics, runID string, counters FileCounters) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.id", runID),
	}

	statusAttr := attribute.String("status", "success")
	if !counters.Succeeded {
		statusAttr = attribute.String("status", "failure")
	}
	metrics.FilesProcessed.Add(ctx, 1, metric.WithAttributes(append(attrs, statusAttr)...))

	opts := metric.WithAttributes(attrs...)
	metrics.RowsRead.Add(ctx, counters.RowsRead, opts)
	metrics.RowsUpdated.Add(ctx, counters.RowsUpdated, opts)
	metrics.RowsSkipped.Add(ctx, counters.RowsSkipped, opts)
	metrics.UnmatchedRows.Add(ctx, counters.RowsUnmatched, opts)
	metrics.EstimatesLoaded.Add(ctx, counters.EstimatesLoaded, opts)
	metrics.ParseErrors.Add(ctx, counters.ParseErrors, opts)
	metrics.ReportRowsEnriched.Add(ctx, counters.ReportRowsEnriched, opts)
	if counters.InputBytes > 0 {
		metrics.DataProcessed.Add(ctx, counters.InputBytes, opts)
	}
}
