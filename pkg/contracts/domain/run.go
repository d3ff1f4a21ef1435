package domain

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus represents the overall outcome of a processing run
type RunStatus string

const (
	// RunStatusCompleted means every discovered pair processed cleanly
	RunStatusCompleted RunStatus = "completed"
	// RunStatusPartial means some pairs processed and some failed
	RunStatusPartial RunStatus = "partial"
	// RunStatusFailed means no pair produced an output file
	RunStatusFailed RunStatus = "failed"
)

// IsValid reports whether the status is one of the known statuses
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusCompleted, RunStatusPartial, RunStatusFailed:
		return true
	}
	return false
}

// FilePair couples the flow extract with the estimates file that shares its
// value date, plus the optional R5 report for the same date.
type FilePair struct {
	// Date is the value date both file names encode
	Date time.Time `json:"date"`

	// FlowsFile is the absolute path of the flujos_swap_gbo CSV
	FlowsFile string `json:"flows_file" validate:"required"`

	// EstimatesFile is the absolute path of the COL_ESTIM_FLOWS DAT
	EstimatesFile string `json:"estimates_file" validate:"required"`

	// ReportFile is the absolute path of the Informe_R5_GBO CSV, empty when
	// no report exists for the date
	ReportFile string `json:"report_file,omitempty"`
}

// HasReport reports whether an R5 report accompanies the pair
func (p FilePair) HasReport() bool {
	return p.ReportFile != ""
}

// DateToken returns the yyyymmdd token shared by the pair's file names
func (p FilePair) DateToken() string {
	return p.Date.Format("20060102")
}

// FileResult captures the outcome of processing one file pair.
// Counters mirror what the processing stages actually did so the run summary,
// the log lines and the workbook all report the same numbers.
type FileResult struct {
	Pair FilePair `json:"pair"`

	// OutputFile is the path of the written _procesado flow file
	OutputFile string `json:"output_file,omitempty"`

	// ReportOutputFile is the path of the written _procesado report, empty
	// when the pair had no report or report enrichment failed
	ReportOutputFile string `json:"report_output_file,omitempty"`

	// Flow file counters
	RowsRead      int64 `json:"rows_read"`
	RowsUpdated   int64 `json:"rows_updated"`
	RowsUnmatched int64 `json:"rows_unmatched"`
	RowsSkipped   int64 `json:"rows_skipped"`
	FieldsUpdated int64 `json:"fields_updated"`

	// Estimates file counters
	EstimatesLoaded int64 `json:"estimates_loaded"`
	DuplicateKeys   int64 `json:"duplicate_keys"`
	ParseErrors     int64 `json:"parse_errors"`

	// Report counters
	ReportRowsEnriched int64 `json:"report_rows_enriched"`

	Status RunStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// Succeeded reports whether the pair produced its output file
func (r FileResult) Succeeded() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusPartial
}

// RunSummary is the single source of truth for what a processing run did.
//
// Every surface that reports on a run reads from this struct: the final log
// line, the metrics pushed to the gateway, the exit code decision and the
// resumen workbook all derive from the same counters, so they can never
// disagree about how many rows were touched.
//
// A summary is created when the run starts, accumulates one FileResult per
// discovered pair, and is sealed with Finalize once the last pair is done.
// After Finalize the aggregate counters and the overall status are set and
// the struct should be treated as read-only.
//
// Usage example:
//
//	summary := domain.NewRunSummary(runID, domain.RoutingModeSign)
//	for _, pair := range pairs {
//	    summary.AddFileResult(processPair(ctx, pair))
//	}
//	summary.Finalize(time.Now())
//	if summary.Status == domain.RunStatusFailed {
//	    os.Exit(1)
//	}
type RunSummary struct {
	// RunID is the UUID that correlates log lines, spans and metrics
	RunID string `json:"run_id" validate:"required,uuid"`

	// Mode is the routing mode the run executed with
	Mode RoutingMode `json:"mode" validate:"required"`

	// StartTime and EndTime bound the run; Duration is their difference
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// Status is computed by Finalize from the per-pair results
	Status RunStatus `json:"status"`

	// Pair counters
	PairsDiscovered int `json:"pairs_discovered"`
	PairsProcessed  int `json:"pairs_processed"`
	PairsFailed     int `json:"pairs_failed"`

	// Aggregate row counters summed over all file results
	TotalRowsRead      int64 `json:"total_rows_read"`
	TotalRowsUpdated   int64 `json:"total_rows_updated"`
	TotalRowsUnmatched int64 `json:"total_rows_unmatched"`
	TotalRowsSkipped   int64 `json:"total_rows_skipped"`

	// Files holds the per-pair results in processing order
	Files []FileResult `json:"files"`
}

// NewRunSummary creates a run summary with the clock started
func NewRunSummary(runID string, mode RoutingMode) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		Mode:      mode,
		StartTime: time.Now(),
		Files:     make([]FileResult, 0, 4),
	}
}

// AddFileResult records the outcome of one pair and updates the counters
func (s *RunSummary) AddFileResult(result FileResult) {
	s.Files = append(s.Files, result)
	s.PairsDiscovered++
	if result.Succeeded() {
		s.PairsProcessed++
	} else {
		s.PairsFailed++
	}
	s.TotalRowsRead += result.RowsRead
	s.TotalRowsUpdated += result.RowsUpdated
	s.TotalRowsUnmatched += result.RowsUnmatched
	s.TotalRowsSkipped += result.RowsSkipped
}

// Finalize seals the summary: sets the end time, the duration and the
// overall status derived from the per-pair outcomes.
func (s *RunSummary) Finalize(endTime time.Time) {
	s.EndTime = endTime
	s.Duration = endTime.Sub(s.StartTime)
	switch {
	case s.PairsDiscovered == 0:
		// Nothing to do is a clean outcome; discovery reports the
		// no-files condition separately.
		s.Status = RunStatusCompleted
	case s.PairsFailed == 0:
		s.Status = RunStatusCompleted
	case s.PairsProcessed == 0:
		s.Status = RunStatusFailed
	default:
		s.Status = RunStatusPartial
	}
}

// ValidateRunSummary checks that a summary is internally consistent
func ValidateRunSummary(summary *RunSummary) error {
	if summary == nil {
		return fmt.Errorf("run summary cannot be nil")
	}
	if summary.RunID == "" {
		return fmt.Errorf("run ID is required")
	}
	if !summary.Mode.IsValid() {
		return fmt.Errorf("routing mode '%s' is not valid", summary.Mode)
	}
	if summary.Status != "" && !summary.Status.IsValid() {
		return fmt.Errorf("status '%s' is not valid", summary.Status)
	}
	if summary.PairsProcessed+summary.PairsFailed != summary.PairsDiscovered {
		return fmt.Errorf("pair counters do not add up: %d processed + %d failed != %d discovered",
			summary.PairsProcessed, summary.PairsFailed, summary.PairsDiscovered)
	}
	if len(summary.Files) != summary.PairsDiscovered {
		return fmt.Errorf("file results (%d) do not match discovered pairs (%d)",
			len(summary.Files), summary.PairsDiscovered)
	}
	return nil
}

// FormatRunSummary renders the one-line human summary used at the end of a run
func FormatRunSummary(summary *RunSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s %s: %d/%d pairs processed, %d rows read, %d updated, %d unmatched",
		summary.RunID, summary.Status,
		summary.PairsProcessed, summary.PairsDiscovered,
		summary.TotalRowsRead, summary.TotalRowsUpdated, summary.TotalRowsUnmatched)
	if summary.TotalRowsSkipped > 0 {
		fmt.Fprintf(&sb, ", %d skipped", summary.TotalRowsSkipped)
	}
	fmt.Fprintf(&sb, " in %s", summary.Duration.Round(time.Millisecond))
	return sb.String()
}

// ContractAggregate accumulates present-value sums for one operation code
// across the matched flow rows that feed the R5 report enrichment.
type ContractAggregate struct {
	Contract   string  `json:"contract"`
	DerVPTotal float64 `json:"der_vp_total"`
	OblVPTotal float64 `json:"obl_vp_total"`
	Rows       int64   `json:"rows"`
}

// Add accumulates one matched flow row into the aggregate
func (a *ContractAggregate) Add(derVP, oblVP float64) {
	a.DerVPTotal += derVP
	a.OblVPTotal += oblVP
	a.Rows++
}

// Merge folds another aggregate for the same contract into this one. Used
// when a run spans several file pairs and the summary reports per contract.
func (a *ContractAggregate) Merge(other *ContractAggregate) {
	if other == nil {
		return
	}
	a.DerVPTotal += other.DerVPTotal
	a.OblVPTotal += other.OblVPTotal
	a.Rows += other.Rows
}

// CuponMillions returns the der_vp sum scaled to millions for the report
func (a *ContractAggregate) CuponMillions() float64 {
	return a.DerVPTotal / ReportValueDivisor
}

// Cupon1Millions returns the obl_vp sum scaled to millions for the report
func (a *ContractAggregate) Cupon1Millions() float64 {
	return a.OblVPTotal / ReportValueDivisor
}
