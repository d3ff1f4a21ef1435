package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gbocli/internal/config"
	"gbocli/internal/dataprocessing"
	"gbocli/internal/exporter"
	"gbocli/internal/files"
	"gbocli/internal/shared/testutil"
	"gbocli/pkg/contracts/domain"
)

func newTestPipeline(t *testing.T, mutate func(*config.ProcessingConfig)) (*pipeline, *config.Paths) {
	t.Helper()

	processing := config.Default().Processing
	if mutate != nil {
		mutate(&processing)
	}

	paths := &config.Paths{
		DataDir:   t.TempDir(),
		OutputDir: t.TempDir(),
		LogsDir:   t.TempDir(),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &pipeline{
		processor:  dataprocessing.NewProcessor(logger, processing),
		discovery:  files.NewDiscovery(paths, processing),
		writer:     exporter.NewCSVWriter(paths),
		logger:     logger,
		runID:      "test-run",
		processing: processing,
	}, paths
}

func discoverOnePair(t *testing.T, p *pipeline) domain.FilePair {
	t.Helper()

	pairs, err := p.discovery.DiscoverPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	return pairs[0]
}

func TestProcessPairSignRouting(t *testing.T) {
	p, paths := newTestPipeline(t, nil)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	testutil.WriteSampleTriple(t, paths.DataDir, date)

	result, aggregates := processPair(context.Background(), p, discoverOnePair(t, p))

	assert.Equal(t, domain.RunStatusCompleted, result.Status)
	assert.True(t, result.Succeeded())
	assert.Empty(t, result.Error)
	assert.Equal(t, int64(3), result.RowsRead)
	assert.Equal(t, int64(2), result.RowsUpdated)
	assert.Equal(t, int64(1), result.RowsUnmatched)
	assert.Equal(t, int64(0), result.RowsSkipped)
	assert.Equal(t, int64(4), result.FieldsUpdated)
	assert.Equal(t, int64(2), result.EstimatesLoaded)
	assert.Equal(t, int64(2), result.ReportRowsEnriched)

	flowsOut, err := os.ReadFile(result.OutputFile)
	require.NoError(t, err)
	assert.Equal(t,
		"cod_emp,fecha_cobro,der_intereses,obl_intereses,der_vp,obl_vp\n"+
			"ABC123,2024-01-15,1000,,,1500\n"+
			"XYZ789,2024-01-15,,2000,3000,\n"+
			"ZZZ999,2024-01-15,,,,\n",
		string(flowsOut))

	reportOut, err := os.ReadFile(result.ReportOutputFile)
	require.NoError(t, err)
	assert.Equal(t,
		"codigo_operacion;cupon;cupon_1\n"+
			"ABC123;0;0.0015\n"+
			"XYZ789;0.003;0\n"+
			"OTR000;;\n",
		string(reportOut))

	require.Contains(t, aggregates, "ABC123")
	assert.Equal(t, 1500.0, aggregates["ABC123"].OblVPTotal)
	require.Contains(t, aggregates, "XYZ789")
	assert.Equal(t, 3000.0, aggregates["XYZ789"].DerVPTotal)
	assert.NotContains(t, aggregates, "ZZZ999")
}

func TestProcessPairLegRouting(t *testing.T) {
	p, paths := newTestPipeline(t, func(cfg *config.ProcessingConfig) {
		cfg.RoutingMode = config.RoutingModeLeg
	})
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	testutil.WriteSamplePair(t, paths.DataDir, date)

	result, _ := processPair(context.Background(), p, discoverOnePair(t, p))

	require.Equal(t, domain.RunStatusCompleted, result.Status)
	assert.Equal(t, int64(2), result.RowsUpdated)
	assert.Equal(t, int64(4), result.FieldsUpdated)
	assert.Empty(t, result.ReportOutputFile)

	flowsOut, err := os.ReadFile(result.OutputFile)
	require.NoError(t, err)
	assert.Equal(t,
		"cod_emp,fecha_cobro,der_intereses,obl_intereses,der_vp,obl_vp\n"+
			"ABC123,2024-01-15,1500,,1000,\n"+
			"XYZ789,2024-01-15,,3000,,2000\n"+
			"ZZZ999,2024-01-15,,,,\n",
		string(flowsOut))
}

func TestProcessPairMissingEstimates(t *testing.T) {
	p, paths := newTestPipeline(t, nil)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	flows := testutil.WriteFlowsFile(t, paths.DataDir, date, [][]string{
		{"ABC123", "2024-01-15", "", "", "", ""},
	})

	pair := domain.FilePair{
		Date:          date,
		FlowsFile:     flows,
		EstimatesFile: paths.GetEstimatesPath(date),
	}

	result, aggregates := processPair(context.Background(), p, pair)

	assert.Equal(t, domain.RunStatusFailed, result.Status)
	assert.False(t, result.Succeeded())
	assert.Contains(t, result.Error, config.EstimatesFileName(date))
	assert.Empty(t, result.OutputFile)
	assert.Nil(t, aggregates)

	// No partial output on a failed pair
	_, err := os.Stat(p.discovery.OutputPath(flows))
	assert.True(t, os.IsNotExist(err))
}

func TestProcessPairReportFailure(t *testing.T) {
	p, paths := newTestPipeline(t, nil)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	testutil.WriteSamplePair(t, paths.DataDir, date)

	// Report present but unusable: required columns are missing
	badReport := paths.GetReportPath(date)
	require.NoError(t, os.WriteFile(badReport, []byte("codigo_operacion;fecha\nABC123;2024-01-15\n"), 0644))

	result, _ := processPair(context.Background(), p, discoverOnePair(t, p))

	assert.Equal(t, domain.RunStatusPartial, result.Status)
	assert.True(t, result.Succeeded(), "flows output exists, the pair counts as processed")
	assert.Contains(t, result.Error, "missing required columns")
	assert.Empty(t, result.ReportOutputFile)
	assert.Equal(t, int64(0), result.ReportRowsEnriched)

	// The flows output was written before the report stage ran
	assert.NotEmpty(t, result.OutputFile)
	_, err := os.Stat(result.OutputFile)
	assert.NoError(t, err)
}

func TestIdentifierForMode(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		identifier string
		want       string
	}{
		{
			name:       "sign mode keeps default",
			mode:       config.RoutingModeSign,
			identifier: config.ColCodEmp,
			want:       config.ColCodEmp,
		},
		{
			name:       "leg mode switches default to legacy column",
			mode:       config.RoutingModeLeg,
			identifier: config.ColCodEmp,
			want:       config.ColNroPapeleta,
		},
		{
			name:       "leg mode keeps explicit identifier",
			mode:       config.RoutingModeLeg,
			identifier: "operacion_id",
			want:       "operacion_id",
		},
		{
			name:       "sign mode keeps legacy column when configured",
			mode:       config.RoutingModeSign,
			identifier: config.ColNroPapeleta,
			want:       config.ColNroPapeleta,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, identifierForMode(tt.mode, tt.identifier))
		})
	}
}

func TestMergeAggregates(t *testing.T) {
	into := map[string]*domain.ContractAggregate{
		"ABC123": {Contract: "ABC123", DerVPTotal: 1000, OblVPTotal: 500, Rows: 2},
	}
	from := map[string]*domain.ContractAggregate{
		"ABC123": {Contract: "ABC123", DerVPTotal: 200, OblVPTotal: 100, Rows: 1},
		"XYZ789": {Contract: "XYZ789", DerVPTotal: 50, OblVPTotal: 0, Rows: 1},
	}

	mergeAggregates(into, from)

	require.Len(t, into, 2)
	assert.Equal(t, 1200.0, into["ABC123"].DerVPTotal)
	assert.Equal(t, 600.0, into["ABC123"].OblVPTotal)
	assert.Equal(t, int64(3), into["ABC123"].Rows)
	assert.Equal(t, 50.0, into["XYZ789"].DerVPTotal)

	// New entries are copies, not aliases into the source map
	from["XYZ789"].DerVPTotal = 9999
	assert.Equal(t, 50.0, into["XYZ789"].DerVPTotal)
}

func TestInputBytes(t *testing.T) {
	dir := t.TempDir()
	flows := filepath.Join(dir, "flows.csv")
	estimates := filepath.Join(dir, "estimates.dat")
	require.NoError(t, os.WriteFile(flows, []byte("12345"), 0644))
	require.NoError(t, os.WriteFile(estimates, []byte("1234567890"), 0644))

	pair := domain.FilePair{FlowsFile: flows, EstimatesFile: estimates}
	assert.Equal(t, int64(15), inputBytes(pair))

	// A missing report path contributes nothing
	pair.ReportFile = filepath.Join(dir, "missing.csv")
	assert.Equal(t, int64(15), inputBytes(pair))
}

func TestDelimiterRune(t *testing.T) {
	assert.Equal(t, ',', delimiterRune(","))
	assert.Equal(t, ';', delimiterRune(";"))
	assert.Equal(t, ',', delimiterRune(""))
}

func TestAbsPath(t *testing.T) {
	abs := absPath("data")
	assert.True(t, filepath.IsAbs(abs))
	assert.Equal(t, "data", filepath.Base(abs))

	assert.Equal(t, "/var/lib/gbo", absPath("/var/lib/gbo"))
}
