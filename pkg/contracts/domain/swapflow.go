package domain

import (
	"fmt"
	"time"
)

// ReportValueDivisor converts present-value sums to millions for the R5
// regulatory report. The report carries cupon figures in millions while the
// flow extracts carry raw amounts.
const ReportValueDivisor = 1_000_000.0

// FlowRecord is the typed view of one row of a daily swap flow extract.
// Flow files arrive as delimited text and untouched columns pass through
// the pipeline unchanged, so this struct only carries the columns the
// estimation join reads or writes.
type FlowRecord struct {
	// Contract is the operation identifier used to match estimate records
	// (cod_emp in the current extracts, nro_papeleta in the legacy ones)
	Contract string `json:"contract" validate:"required"`

	// PaymentDate is the coupon payment date (fecha_cobro). Matching against
	// estimates compares civil dates regardless of the source format.
	PaymentDate time.Time `json:"payment_date"`

	// Estimated amounts. A zero estimate leaves the original cell untouched.
	DerIntereses float64 `json:"der_intereses"`
	OblIntereses float64 `json:"obl_intereses"`
	DerVP        float64 `json:"der_vp"`
	OblVP        float64 `json:"obl_vp"`

	// Line is the 1-based line number in the source file, for diagnostics
	Line int `json:"line"`
}

// EstimateRecord is one row of a provider estimates file (DAT).
// DiscFlow and FlowCol are pointers because the provider feed occasionally
// carries non-numeric cells; a nil value means the amount was absent or
// unparsable and must not overwrite anything.
type EstimateRecord struct {
	Contract string    `json:"contract" validate:"required"`
	Date     time.Time `json:"date"`
	DiscFlow *float64  `json:"disc_flow,omitempty"`
	FlowCol  *float64  `json:"flow_col,omitempty"`
	Leg      string    `json:"leg,omitempty" validate:"omitempty,oneof=1 2"`
	Line     int       `json:"line"`
}

// EstimateKey identifies an estimate by contract and civil payment date
type EstimateKey struct {
	Contract string
	Date     string // ISO civil date, "2006-01-02"
}

// NewEstimateKey builds the lookup key for a contract and payment date
func NewEstimateKey(contract string, date time.Time) EstimateKey {
	return EstimateKey{
		Contract: contract,
		Date:     date.Format("2006-01-02"),
	}
}

// String renders the key in the form used by log lines and error messages
func (k EstimateKey) String() string {
	return fmt.Sprintf("%s@%s", k.Contract, k.Date)
}

// RoutingMode selects how estimate amounts map onto flow columns
type RoutingMode string

const (
	// RoutingModeSign routes by amount sign: positive DiscFlow feeds
	// der_intereses, negative feeds obl_intereses as an absolute value;
	// FlowCol feeds der_vp/obl_vp the same way.
	RoutingModeSign RoutingMode = "sign"

	// RoutingModeLeg routes by the M_LEG column of the legacy feed: leg 1
	// feeds the der_* pair, leg 2 the obl_* pair, both as absolute values,
	// with FlowCol feeding the interest column and DiscFlow the present
	// value column.
	RoutingModeLeg RoutingMode = "leg"
)

// IsValid reports whether the routing mode is one of the known modes
func (m RoutingMode) IsValid() bool {
	switch m {
	case RoutingModeSign, RoutingModeLeg:
		return true
	}
	return false
}

// Swap leg identifiers as they appear in the legacy estimates feed
const (
	LegDerechos     = "1"
	LegObligaciones = "2"
)

// ValidateFlowRecord checks that a typed flow record is usable for matching
func ValidateFlowRecord(record *FlowRecord) error {
	if record == nil {
		return fmt.Errorf("flow record cannot be nil")
	}
	if record.Contract == "" {
		return fmt.Errorf("contract is required")
	}
	if record.PaymentDate.IsZero() {
		return fmt.Errorf("payment date is required")
	}
	return nil
}

// ValidateEstimateRecord checks that an estimate record is usable for matching
func ValidateEstimateRecord(record *EstimateRecord) error {
	if record == nil {
		return fmt.Errorf("estimate record cannot be nil")
	}
	if record.Contract == "" {
		return fmt.Errorf("contract is required")
	}
	if record.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if record.Leg != "" && record.Leg != LegDerechos && record.Leg != LegObligaciones {
		return fmt.Errorf("leg '%s' must be '%s' or '%s'", record.Leg, LegDerechos, LegObligaciones)
	}
	return nil
}

// Float64Ptr returns a pointer to the given value. Convenience for building
// estimate records in tests and loaders.
func Float64Ptr(v float64) *float64 {
	return &v
}
