package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gbocli/internal/config"
)

// Fixture headers matching the production feeds
var (
	FlowsHeader     = []string{"cod_emp", "fecha_cobro", "der_intereses", "obl_intereses", "der_vp", "obl_vp"}
	EstimatesHeader = []string{"M_CONTRACT_", "M_DATE", "M_DISCFLOW", "M_FLOW_COL", "M_LEG"}
	ReportHeader    = []string{"codigo_operacion", "cupon", "cupon_1"}
)

// WriteFlowsFile writes a flows CSV named for the date into dir
func WriteFlowsFile(t *testing.T, dir string, date time.Time, rows [][]string) string {
	t.Helper()
	return writeDelimited(t, filepath.Join(dir, config.FlowsFileName(date)), FlowsHeader, rows, ",")
}

// WriteEstimatesFile writes an estimates DAT named for the date into dir
func WriteEstimatesFile(t *testing.T, dir string, date time.Time, rows [][]string) string {
	t.Helper()
	return writeDelimited(t, filepath.Join(dir, config.EstimatesFileName(date)), EstimatesHeader, rows, ";")
}

// WriteReportFile writes an R5 report CSV named for the date into dir
func WriteReportFile(t *testing.T, dir string, date time.Time, rows [][]string) string {
	t.Helper()
	return writeDelimited(t, filepath.Join(dir, config.ReportFileName(date)), ReportHeader, rows, ";")
}

// WriteSamplePair writes the reference flows/estimates pair for a date:
// ABC123 gets a positive interest and a negative present value estimate,
// XYZ789 the opposite signs, and ZZZ999 has no estimate at all.
func WriteSamplePair(t *testing.T, dir string, date time.Time) (string, string) {
	t.Helper()

	iso := date.Format("2006-01-02")
	flows := WriteFlowsFile(t, dir, date, [][]string{
		{"ABC123", iso, "", "", "", ""},
		{"XYZ789", iso, "", "", "", ""},
		{"ZZZ999", iso, "", "", "", ""},
	})

	latin := date.Format("02/01/2006")
	estimates := WriteEstimatesFile(t, dir, date, [][]string{
		{"ABC123", latin, "1000.0", "-1500.0", "1"},
		{"XYZ789", latin, "-2000.0", "3000.0", "2"},
	})

	return flows, estimates
}

// WriteSampleTriple writes the sample pair plus an R5 report whose first two
// rows match the sample contracts
func WriteSampleTriple(t *testing.T, dir string, date time.Time) (string, string, string) {
	t.Helper()

	flows, estimates := WriteSamplePair(t, dir, date)
	report := WriteReportFile(t, dir, date, [][]string{
		{"ABC123", "", ""},
		{"XYZ789", "", ""},
		{"OTR000", "", ""},
	})

	return flows, estimates, report
}

func writeDelimited(t *testing.T, path string, header []string, rows [][]string, sep string) string {
	t.Helper()

	lines := []string{strings.Join(header, sep)}
	for _, row := range rows {
		lines = append(lines, strings.Join(row, sep))
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}
