package dataprocessing

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gbocli/internal/config"
	apperrors "gbocli/internal/errors"
	"gbocli/internal/shared/testutil"
	"gbocli/pkg/contracts/domain"
)

func TestLoadEstimates(t *testing.T) {
	p := newTestProcessor(t, nil)
	path := writeEstimatesFile(t,
		"ABC123;15/01/2024;1000.50;-1500.75;1",
		"XYZ789;20/01/2024;-2000;3000.25;2",
	)

	set, err := p.LoadEstimates(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, int64(2), set.Loaded)
	assert.Equal(t, int64(0), set.Duplicates)

	record, ok := set.Lookup(domain.EstimateKey{Contract: "ABC123", Date: "2024-01-15"})
	require.True(t, ok)
	require.NotNil(t, record.DiscFlow)
	assert.InDelta(t, 1000.50, *record.DiscFlow, 0.0001)
	require.NotNil(t, record.FlowCol)
	assert.InDelta(t, -1500.75, *record.FlowCol, 0.0001)
	assert.Equal(t, domain.LegDerechos, record.Leg)
	assert.Equal(t, 2, record.Line)

	_, ok = set.Lookup(domain.EstimateKey{Contract: "NADIE", Date: "2024-01-15"})
	assert.False(t, ok)
}

func TestLoadEstimatesMissingColumns(t *testing.T) {
	t.Run("core columns always required", func(t *testing.T) {
		p := newTestProcessor(t, nil)
		path := filepath.Join(t.TempDir(), "COL_ESTIM_FLOWS_15012024.dat")
		require.NoError(t, os.WriteFile(path, []byte("M_CONTRACT_;M_DATE\nABC123;15/01/2024\n"), 0644))

		_, err := p.LoadEstimates(context.Background(), path)

		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		assert.Contains(t, err.Error(), "m_discflow")
		assert.Contains(t, err.Error(), "m_flow_col")
	})

	t.Run("leg column optional in sign mode", func(t *testing.T) {
		p := newTestProcessor(t, nil)
		path := filepath.Join(t.TempDir(), "COL_ESTIM_FLOWS_15012024.dat")
		content := "M_CONTRACT_;M_DATE;M_DISCFLOW;M_FLOW_COL\nABC123;15/01/2024;100;200\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		set, err := p.LoadEstimates(context.Background(), path)

		require.NoError(t, err)
		assert.Equal(t, 1, set.Len())
	})

	t.Run("leg column required in leg mode", func(t *testing.T) {
		p := newTestProcessor(t, func(cfg *config.ProcessingConfig) {
			cfg.RoutingMode = config.RoutingModeLeg
		})
		path := filepath.Join(t.TempDir(), "COL_ESTIM_FLOWS_15012024.dat")
		content := "M_CONTRACT_;M_DATE;M_DISCFLOW;M_FLOW_COL\nABC123;15/01/2024;100;200\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		_, err := p.LoadEstimates(context.Background(), path)

		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		assert.Contains(t, err.Error(), "m_leg")
	})
}

func TestLoadEstimatesDuplicateKeys(t *testing.T) {
	t.Run("last occurrence wins", func(t *testing.T) {
		logger, recorder := testutil.NewTestLogger(t)
		p := NewProcessor(logger, config.ProcessingConfig{EstimatesDelimiter: ";"})
		path := writeEstimatesFile(t,
			"ABC123;15/01/2024;100;200;1",
			"ABC123;15/01/2024;999;888;2",
		)

		set, err := p.LoadEstimates(context.Background(), path)

		require.NoError(t, err)
		assert.Equal(t, 1, set.Len())
		assert.Equal(t, int64(2), set.Loaded)
		assert.Equal(t, int64(1), set.Duplicates)
		assert.True(t, recorder.ContainsAt(slog.LevelWarn, "Duplicate estimate key"))

		record, ok := set.Lookup(domain.EstimateKey{Contract: "ABC123", Date: "2024-01-15"})
		require.True(t, ok)
		assert.InDelta(t, 999, *record.DiscFlow, 0.0001)
		assert.Equal(t, 3, record.Line)
	})

	t.Run("strict fails", func(t *testing.T) {
		p := newTestProcessor(t, func(cfg *config.ProcessingConfig) {
			cfg.Strict = true
		})
		path := writeEstimatesFile(t,
			"ABC123;15/01/2024;100;200;1",
			"ABC123;15/01/2024;999;888;2",
		)

		_, err := p.LoadEstimates(context.Background(), path)

		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDuplicateKey))
		assert.Contains(t, err.Error(), "ABC123@2024-01-15")
	})
}

func TestLoadEstimatesSkipsBadRows(t *testing.T) {
	p := newTestProcessor(t, nil)
	path := writeEstimatesFile(t,
		"ABC123;15/01/2024;100;200;1",
		";15/01/2024;100;200;1",
		"XYZ789;fecha-mala;100;200;1",
		"CORTA;15/01/2024",
	)

	set, err := p.LoadEstimates(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, int64(3), set.RowsSkipped)
}

func TestLoadEstimatesStrictMalformedRow(t *testing.T) {
	p := newTestProcessor(t, func(cfg *config.ProcessingConfig) {
		cfg.Strict = true
	})
	path := writeEstimatesFile(t, "CORTA;15/01/2024")

	_, err := p.LoadEstimates(context.Background(), path)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestLoadEstimatesNonNumericAmounts(t *testing.T) {
	p := newTestProcessor(t, nil)
	path := writeEstimatesFile(t,
		"ABC123;15/01/2024;no-numero;3000.25;1",
		"XYZ789;20/01/2024;;NaN;2",
	)

	set, err := p.LoadEstimates(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 2, set.Len(), "rows with bad amounts still load")
	assert.Equal(t, int64(2), set.ParseErrors)

	abc, ok := set.Lookup(domain.EstimateKey{Contract: "ABC123", Date: "2024-01-15"})
	require.True(t, ok)
	assert.Nil(t, abc.DiscFlow)
	require.NotNil(t, abc.FlowCol)
	assert.InDelta(t, 3000.25, *abc.FlowCol, 0.0001)

	xyz, ok := set.Lookup(domain.EstimateKey{Contract: "XYZ789", Date: "2024-01-20"})
	require.True(t, ok)
	assert.Nil(t, xyz.DiscFlow, "blank cell is absent, not an error")
	assert.Nil(t, xyz.FlowCol, "NaN never reaches the output")
}

func TestNormalizeLeg(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain one", raw: "1", want: domain.LegDerechos},
		{name: "plain two", raw: "2", want: domain.LegObligaciones},
		{name: "decimal one", raw: "1.0", want: domain.LegDerechos},
		{name: "decimal two", raw: "2.00", want: domain.LegObligaciones},
		{name: "padded", raw: " 1 ", want: domain.LegDerechos},
		{name: "other number kept raw", raw: "3", want: "3"},
		{name: "text kept raw", raw: "pata", want: "pata"},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeLeg(tt.raw))
		})
	}
}
