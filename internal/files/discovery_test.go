package files

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gbocli/internal/config"
	apperrors "gbocli/internal/errors"
)

func newTestDiscovery(t *testing.T, processing config.ProcessingConfig) (*Discovery, *config.Paths) {
	t.Helper()

	paths := &config.Paths{
		DataDir:   t.TempDir(),
		OutputDir: t.TempDir(),
	}
	return NewDiscovery(paths, processing), paths
}

func writeTestFile(t *testing.T, dir, name string) {
	t.Helper()

	err := os.WriteFile(filepath.Join(dir, name), []byte("cabecera\n"), 0644)
	require.NoError(t, err)
}

func TestNewDiscovery(t *testing.T) {
	paths := &config.Paths{DataDir: "/data", OutputDir: "/out"}
	processing := config.ProcessingConfig{OutputSuffix: "_procesado", FullRework: true}

	discovery := NewDiscovery(paths, processing)

	require.NotNil(t, discovery)
	assert.Equal(t, paths, discovery.paths)
	assert.Equal(t, "_procesado", discovery.outputSuffix)
	assert.True(t, discovery.fullRework)
}

func TestDiscoverPairs(t *testing.T) {
	tests := []struct {
		name        string
		files       []string
		wantDates   []string
		wantReports map[string]bool
		wantErr     bool
		description string
	}{
		{
			name:        "complete pair",
			files:       []string{"flujos_swap_gbo_20240115.csv", "COL_ESTIM_FLOWS_15012024.dat"},
			wantDates:   []string{"20240115"},
			wantReports: map[string]bool{"20240115": false},
			description: "Should pair a flows CSV with the same-date estimates DAT",
		},
		{
			name: "pair with R5 report",
			files: []string{
				"flujos_swap_gbo_20240115.csv",
				"COL_ESTIM_FLOWS_15012024.dat",
				"Informe_R5_GBO_240115.csv",
			},
			wantDates:   []string{"20240115"},
			wantReports: map[string]bool{"20240115": true},
			description: "Should attach the same-date R5 report to the pair",
		},
		{
			name:        "mismatched dates are not paired",
			files:       []string{"flujos_swap_gbo_20240115.csv", "COL_ESTIM_FLOWS_16012024.dat"},
			wantErr:     true,
			description: "A DAT dated one day later must not pair with the CSV",
		},
		{
			name: "multiple pairs sorted by date",
			files: []string{
				"flujos_swap_gbo_20240220.csv",
				"COL_ESTIM_FLOWS_20022024.dat",
				"flujos_swap_gbo_20240115.csv",
				"COL_ESTIM_FLOWS_15012024.dat",
			},
			wantDates:   []string{"20240115", "20240220"},
			wantReports: map[string]bool{"20240115": false, "20240220": false},
			description: "Pairs should come back in ascending date order",
		},
		{
			name: "flows without estimates is skipped",
			files: []string{
				"flujos_swap_gbo_20240115.csv",
				"flujos_swap_gbo_20240220.csv",
				"COL_ESTIM_FLOWS_20022024.dat",
			},
			wantDates:   []string{"20240220"},
			wantReports: map[string]bool{"20240220": false},
			description: "An orphan flows file must not fail the whole scan",
		},
		{
			name: "unparsable date token is skipped",
			files: []string{
				"flujos_swap_gbo_2024011x.csv",
				"flujos_swap_gbo_20240115.csv",
				"COL_ESTIM_FLOWS_15012024.dat",
			},
			wantDates:   []string{"20240115"},
			wantReports: map[string]bool{"20240115": false},
			description: "A garbled token skips that file, not the scan",
		},
		{
			name:        "case-insensitive matching",
			files:       []string{"FLUJOS_SWAP_GBO_20240115.CSV", "col_estim_flows_15012024.DAT"},
			wantDates:   []string{"20240115"},
			wantReports: map[string]bool{"20240115": false},
			description: "Filename casing varies between source systems",
		},
		{
			name:        "empty directory",
			files:       []string{},
			wantErr:     true,
			description: "No pairable files at all is a NO_MATCHING_FILES error",
		},
		{
			name:        "unrelated files only",
			files:       []string{"readme.txt", "datos.csv", "backup.dat"},
			wantErr:     true,
			description: "Files outside the naming patterns never form pairs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			discovery, paths := newTestDiscovery(t, config.ProcessingConfig{OutputSuffix: "_procesado"})
			for _, name := range tt.files {
				writeTestFile(t, paths.DataDir, name)
			}

			pairs, err := discovery.DiscoverPairs(context.Background())

			if tt.wantErr {
				require.Error(t, err, tt.description)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNoMatchingFiles), tt.description)
				return
			}

			require.NoError(t, err, tt.description)
			require.Len(t, pairs, len(tt.wantDates), tt.description)
			for i, pair := range pairs {
				assert.Equal(t, tt.wantDates[i], pair.DateToken(), tt.description)
				assert.Equal(t, tt.wantReports[pair.DateToken()], pair.HasReport(), tt.description)
				assert.True(t, config.FileExists(pair.FlowsFile), "flows path should point at a real file")
				assert.True(t, config.FileExists(pair.EstimatesFile), "estimates path should point at a real file")
			}
		})
	}
}

func TestDiscoverPairsDuplicateDate(t *testing.T) {
	discovery, paths := newTestDiscovery(t, config.ProcessingConfig{OutputSuffix: "_procesado"})
	writeTestFile(t, paths.DataDir, "FLUJOS_SWAP_GBO_20240115.csv")
	writeTestFile(t, paths.DataDir, "flujos_swap_gbo_20240115.csv")
	writeTestFile(t, paths.DataDir, "COL_ESTIM_FLOWS_15012024.dat")

	pairs, err := discovery.DiscoverPairs(context.Background())

	require.NoError(t, err)
	require.Len(t, pairs, 1)
	// Lexicographically first wins; uppercase sorts before lowercase
	assert.Equal(t, "FLUJOS_SWAP_GBO_20240115.csv", filepath.Base(pairs[0].FlowsFile))
}

func TestDiscoverPairsSmartUpdate(t *testing.T) {
	t.Run("already processed pair is skipped", func(t *testing.T) {
		discovery, paths := newTestDiscovery(t, config.ProcessingConfig{OutputSuffix: "_procesado"})
		writeTestFile(t, paths.DataDir, "flujos_swap_gbo_20240115.csv")
		writeTestFile(t, paths.DataDir, "COL_ESTIM_FLOWS_15012024.dat")
		writeTestFile(t, paths.OutputDir, "flujos_swap_gbo_20240115_procesado.csv")

		pairs, err := discovery.DiscoverPairs(context.Background())

		require.NoError(t, err)
		assert.Empty(t, pairs, "existing output should filter the pair out")
	})

	t.Run("full rework reprocesses everything", func(t *testing.T) {
		discovery, paths := newTestDiscovery(t, config.ProcessingConfig{
			OutputSuffix: "_procesado",
			FullRework:   true,
		})
		writeTestFile(t, paths.DataDir, "flujos_swap_gbo_20240115.csv")
		writeTestFile(t, paths.DataDir, "COL_ESTIM_FLOWS_15012024.dat")
		writeTestFile(t, paths.OutputDir, "flujos_swap_gbo_20240115_procesado.csv")

		pairs, err := discovery.DiscoverPairs(context.Background())

		require.NoError(t, err)
		assert.Len(t, pairs, 1)
	})

	t.Run("only pending pairs survive the filter", func(t *testing.T) {
		discovery, paths := newTestDiscovery(t, config.ProcessingConfig{OutputSuffix: "_procesado"})
		writeTestFile(t, paths.DataDir, "flujos_swap_gbo_20240115.csv")
		writeTestFile(t, paths.DataDir, "COL_ESTIM_FLOWS_15012024.dat")
		writeTestFile(t, paths.DataDir, "flujos_swap_gbo_20240220.csv")
		writeTestFile(t, paths.DataDir, "COL_ESTIM_FLOWS_20022024.dat")
		writeTestFile(t, paths.OutputDir, "flujos_swap_gbo_20240115_procesado.csv")

		pairs, err := discovery.DiscoverPairs(context.Background())

		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, "20240220", pairs[0].DateToken())
	})
}

func TestDiscoverDate(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("complete pair for the date", func(t *testing.T) {
		discovery, paths := newTestDiscovery(t, config.ProcessingConfig{OutputSuffix: "_procesado"})
		writeTestFile(t, paths.DataDir, "flujos_swap_gbo_20240115.csv")
		writeTestFile(t, paths.DataDir, "COL_ESTIM_FLOWS_15012024.dat")

		pair, err := discovery.DiscoverDate(context.Background(), date)

		require.NoError(t, err)
		assert.Equal(t, "20240115", pair.DateToken())
		assert.False(t, pair.HasReport())
	})

	t.Run("report attached when present", func(t *testing.T) {
		discovery, paths := newTestDiscovery(t, config.ProcessingConfig{OutputSuffix: "_procesado"})
		writeTestFile(t, paths.DataDir, "flujos_swap_gbo_20240115.csv")
		writeTestFile(t, paths.DataDir, "COL_ESTIM_FLOWS_15012024.dat")
		writeTestFile(t, paths.DataDir, "Informe_R5_GBO_240115.csv")

		pair, err := discovery.DiscoverDate(context.Background(), date)

		require.NoError(t, err)
		assert.True(t, pair.HasReport())
	})

	t.Run("missing flows file", func(t *testing.T) {
		discovery, paths := newTestDiscovery(t, config.ProcessingConfig{OutputSuffix: "_procesado"})
		writeTestFile(t, paths.DataDir, "COL_ESTIM_FLOWS_15012024.dat")

		_, err := discovery.DiscoverDate(context.Background(), date)

		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
		assert.Contains(t, err.Error(), "flujos_swap_gbo_20240115.csv")
	})

	t.Run("missing estimates file", func(t *testing.T) {
		discovery, paths := newTestDiscovery(t, config.ProcessingConfig{OutputSuffix: "_procesado"})
		writeTestFile(t, paths.DataDir, "flujos_swap_gbo_20240115.csv")

		_, err := discovery.DiscoverDate(context.Background(), date)

		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
		assert.Contains(t, err.Error(), "COL_ESTIM_FLOWS_15012024.dat")
	})

	t.Run("explicit date ignores existing output", func(t *testing.T) {
		discovery, paths := newTestDiscovery(t, config.ProcessingConfig{OutputSuffix: "_procesado"})
		writeTestFile(t, paths.DataDir, "flujos_swap_gbo_20240115.csv")
		writeTestFile(t, paths.DataDir, "COL_ESTIM_FLOWS_15012024.dat")
		writeTestFile(t, paths.OutputDir, "flujos_swap_gbo_20240115_procesado.csv")

		pair, err := discovery.DiscoverDate(context.Background(), date)

		require.NoError(t, err)
		assert.Equal(t, "20240115", pair.DateToken())
	})
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		suffix   string
		expected string
	}{
		{
			name:     "flows file",
			input:    "flujos_swap_gbo_20240115.csv",
			suffix:   "_procesado",
			expected: "flujos_swap_gbo_20240115_procesado.csv",
		},
		{
			name:     "report file",
			input:    "Informe_R5_GBO_240115.csv",
			suffix:   "_procesado",
			expected: "Informe_R5_GBO_240115_procesado.csv",
		},
		{
			name:     "no extension",
			input:    "datos",
			suffix:   "_procesado",
			expected: "datos_procesado",
		},
		{
			name:     "empty suffix",
			input:    "flujos_swap_gbo_20240115.csv",
			suffix:   "",
			expected: "flujos_swap_gbo_20240115.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, OutputName(tt.input, tt.suffix))
		})
	}
}

func TestOutputPath(t *testing.T) {
	paths := &config.Paths{DataDir: "/data", OutputDir: "/out"}
	discovery := NewDiscovery(paths, config.ProcessingConfig{OutputSuffix: "_procesado"})

	got := discovery.OutputPath("/data/flujos_swap_gbo_20240115.csv")

	assert.Equal(t, filepath.Join("/out", "flujos_swap_gbo_20240115_procesado.csv"), got)
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		prefix   string
		ext      string
		want     bool
	}{
		{name: "exact match", fileName: "flujos_swap_gbo_20240115.csv", prefix: "flujos_swap_gbo_", ext: ".csv", want: true},
		{name: "uppercase name", fileName: "FLUJOS_SWAP_GBO_20240115.CSV", prefix: "flujos_swap_gbo_", ext: ".csv", want: true},
		{name: "wrong extension", fileName: "flujos_swap_gbo_20240115.dat", prefix: "flujos_swap_gbo_", ext: ".csv", want: false},
		{name: "wrong prefix", fileName: "flujos_swap_20240115.csv", prefix: "flujos_swap_gbo_", ext: ".csv", want: false},
		{name: "empty token still matches", fileName: "flujos_swap_gbo_.csv", prefix: "flujos_swap_gbo_", ext: ".csv", want: true},
		{name: "name shorter than pattern", fileName: "flujos.csv", prefix: "flujos_swap_gbo_", ext: ".csv", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesPattern(tt.fileName, tt.prefix, tt.ext))
		})
	}
}
