package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	ExecutableDir string
	DataDir       string
	OutputDir     string
	LogsDir       string

	// Config files
	ConfigFile string

	// Well-known files
	LogFile string
}

// GetPaths returns the default application paths relative to the executable location
// All paths are ALWAYS relative to the executable directory, never the current working directory
func GetPaths() (*Paths, error) {
	return GetPathsWith(PathsConfig{
		DataDir:   DefaultDataDir,
		OutputDir: DefaultOutputDir,
		LogsDir:   DefaultLogsDir,
	})
}

// GetPathsWith returns application paths honoring config overrides.
// Relative directories resolve against the executable directory; absolute ones
// are kept as configured.
func GetPathsWith(cfg PathsConfig) (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	// Get the directory containing the executable
	exeDir := filepath.Dir(exe)

	resolve := func(dir, fallback string) string {
		if dir == "" {
			dir = fallback
		}
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(exeDir, dir)
	}

	// Directory structure next to the executable:
	//   data/        (provider input files)
	//   procesados/  (processed outputs)
	//   logs/        (application logs)
	//   gbo.yaml     (optional config file)
	logsDir := resolve(cfg.LogsDir, DefaultLogsDir)

	paths := &Paths{
		ExecutableDir: exeDir,
		DataDir:       resolve(cfg.DataDir, DefaultDataDir),
		OutputDir:     resolve(cfg.OutputDir, DefaultOutputDir),
		LogsDir:       logsDir,
		ConfigFile:    filepath.Join(exeDir, "gbo.yaml"),
		LogFile:       filepath.Join(logsDir, "procesamiento.log"),
	}

	return paths, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.OutputDir,
		p.LogsDir,
	}

	logger := slog.Default()

	for _, dir := range directories {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}

		if logger != nil {
			logger.Debug("Ensured directory exists",
				slog.String("directory", dir))
		}
	}

	return nil
}

// GetRelativePath returns a path relative to the executable directory
func (p *Paths) GetRelativePath(subpath string) string {
	return filepath.Join(p.ExecutableDir, subpath)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// FlowsFileName returns the flows CSV filename for a date (e.g. flujos_swap_gbo_20240115.csv)
func FlowsFileName(date time.Time) string {
	return FlowsFilePrefix + date.Format(FlowsDateLayout) + FlowsFileExt
}

// EstimatesFileName returns the estimates DAT filename for a date (e.g. COL_ESTIM_FLOWS_15012024.dat)
func EstimatesFileName(date time.Time) string {
	return EstimatesFilePrefix + date.Format(EstimatesDateLayout) + EstimatesFileExt
}

// ReportFileName returns the R5 report filename for a date (e.g. Informe_R5_GBO_240115.csv)
func ReportFileName(date time.Time) string {
	return ReportFilePrefix + date.Format(ReportDateLayout) + ReportFileExt
}

// GetFlowsPath returns the expected path of the flows CSV for a date
func (p *Paths) GetFlowsPath(date time.Time) string {
	return filepath.Join(p.DataDir, FlowsFileName(date))
}

// GetEstimatesPath returns the expected path of the estimates DAT for a date
func (p *Paths) GetEstimatesPath(date time.Time) string {
	return filepath.Join(p.DataDir, EstimatesFileName(date))
}

// GetReportPath returns the expected path of the R5 report for a date
func (p *Paths) GetReportPath(date time.Time) string {
	return filepath.Join(p.DataDir, ReportFileName(date))
}

// GetOutputPath returns the path for an output file
func (p *Paths) GetOutputPath(filename string) string {
	return filepath.Join(p.OutputDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetSummaryWorkbookPath returns the path for the run summary workbook of a date
func (p *Paths) GetSummaryWorkbookPath(date time.Time) string {
	filename := fmt.Sprintf("resumen_%s.xlsx", date.Format(FlowsDateLayout))
	return filepath.Join(p.OutputDir, filename)
}

// LogPathResolution logs detailed path resolution information for debugging
func (p *Paths) LogPathResolution() {
	logger := slog.Default()
	if logger == nil {
		return
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("output", p.OutputDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("config", p.ConfigFile),
			slog.String("log", p.LogFile),
		))
}
