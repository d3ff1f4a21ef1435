package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Processing ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Metrics    MetricsConfig    `yaml:"metrics" envconfig:"METRICS"`
	Sanitize   SanitizeConfig   `yaml:"sanitize" envconfig:"SANITIZE"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	ExecutableDir string `yaml:"executable_dir" envconfig:"EXECUTABLE_DIR"`
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	OutputDir     string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	LogsDir       string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// ProcessingConfig contains the pipeline knobs
type ProcessingConfig struct {
	FlowsDelimiter     string `yaml:"flows_delimiter" envconfig:"FLOWS_DELIMITER" validate:"required,delimiter"`
	EstimatesDelimiter string `yaml:"estimates_delimiter" envconfig:"ESTIMATES_DELIMITER" validate:"required,delimiter"`
	ReportDelimiter    string `yaml:"report_delimiter" envconfig:"REPORT_DELIMITER" validate:"required,delimiter"`
	IdentifierColumn   string `yaml:"identifier_column" envconfig:"IDENTIFIER_COLUMN" validate:"required"`
	RoutingMode        string `yaml:"routing_mode" envconfig:"ROUTING_MODE" validate:"required,oneof=sign leg"`
	Strict             bool   `yaml:"strict" envconfig:"STRICT"`
	OutputSuffix       string `yaml:"output_suffix" envconfig:"OUTPUT_SUFFIX"`
	FullRework         bool   `yaml:"full_rework" envconfig:"FULL_REWORK"`
	SummaryWorkbook    bool   `yaml:"summary_workbook" envconfig:"SUMMARY_WORKBOOK"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"required,oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"required,oneof=stdout file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// MetricsConfig contains batch metrics configuration
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled" envconfig:"ENABLED"`
	GatewayURL     string `yaml:"gateway_url" envconfig:"GATEWAY_URL" validate:"omitempty,url"`
	JobName        string `yaml:"job_name" envconfig:"JOB_NAME" validate:"required"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
}

// SanitizeConfig contains the character sanitizer configuration
type SanitizeConfig struct {
	Replacements map[string]string `yaml:"replacements" envconfig:"REPLACEMENTS"`
	Pattern      string            `yaml:"pattern" envconfig:"PATTERN" validate:"required"`
}

// Load loads configuration from defaults, config file and environment variables
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration like Load but from an explicit config file.
// Precedence: environment variables over file values over built-in defaults.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := loadFromFile(configFile, cfg); err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	// Environment variables take precedence over file values
	if err := envconfig.Process("GBO", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Resolve relative paths
	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Validate paths
	if err := cfg.ValidatePaths(); err != nil {
		return nil, fmt.Errorf("path validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays configuration from a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}

	return nil
}

// resolvePaths sets up the executable directory and validates paths
func (c *Config) resolvePaths() error {
	paths, err := GetPathsWith(c.Paths)
	if err != nil {
		return fmt.Errorf("failed to get paths: %w", err)
	}

	c.Paths.ExecutableDir = paths.ExecutableDir

	return nil
}

// ValidatePaths validates that critical paths exist or can be created
func (c *Config) ValidatePaths() error {
	paths, err := GetPathsWith(c.Paths)
	if err != nil {
		return fmt.Errorf("failed to get paths: %w", err)
	}

	// Ensure all required directories exist
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	paths.LogPathResolution()

	return nil
}

// ResolvedPaths returns the fully resolved paths for this configuration
func (c *Config) ResolvedPaths() (*Paths, error) {
	return GetPathsWith(c.Paths)
}

// GetDataDir returns the resolved data directory path
func (c *Config) GetDataDir() string {
	paths, err := GetPathsWith(c.Paths)
	if err != nil {
		// Fallback to config-based resolution if paths system fails
		if filepath.IsAbs(c.Paths.DataDir) {
			return c.Paths.DataDir
		}
		return filepath.Join(c.Paths.ExecutableDir, c.Paths.DataDir)
	}
	return paths.DataDir
}

// GetOutputDir returns the resolved output directory path
func (c *Config) GetOutputDir() string {
	paths, err := GetPathsWith(c.Paths)
	if err != nil {
		// Fallback to config-based resolution if paths system fails
		if filepath.IsAbs(c.Paths.OutputDir) {
			return c.Paths.OutputDir
		}
		return filepath.Join(c.Paths.ExecutableDir, c.Paths.OutputDir)
	}
	return paths.OutputDir
}

// GetLogsDir returns the resolved logs directory path
func (c *Config) GetLogsDir() string {
	paths, err := GetPathsWith(c.Paths)
	if err != nil {
		// Fallback to config-based resolution if paths system fails
		if filepath.IsAbs(c.Paths.LogsDir) {
			return c.Paths.LogsDir
		}
		return filepath.Join(c.Paths.ExecutableDir, c.Paths.LogsDir)
	}
	return paths.LogsDir
}

// validate validates the configuration
func (c *Config) validate() error {
	v := validator.New()

	if err := v.RegisterValidation("delimiter", isDelimiter); err != nil {
		return fmt.Errorf("failed to register delimiter validator: %w", err)
	}

	// Use YAML tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.Struct(c); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		messages := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			messages = append(messages, formatValidationError(fieldErr))
		}
		return fmt.Errorf("%s", strings.Join(messages, "; "))
	}

	// Only JSON and text handlers exist; anything else falls back to JSON
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}

	return nil
}

// formatValidationError formats validation error messages
func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	tag := err.Tag()
	param := err.Param()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Replace(param, " ", ", ", -1))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "delimiter":
		return fmt.Sprintf("%s must be a single printable character", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

// isDelimiter validates that a field holds a single usable CSV delimiter rune
func isDelimiter(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	runes := []rune(value)
	if len(runes) != 1 {
		return false
	}
	switch runes[0] {
	case '\r', '\n', '"':
		return false
	}
	return true
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	// Check for config file in common locations
	locations := []string{
		"gbo.yaml",
		"configs/gbo.yaml",
		"../configs/gbo.yaml",
	}
	if paths, err := GetPaths(); err == nil {
		locations = append(locations, paths.ConfigFile)
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use defaults and env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:   DefaultDataDir,
			OutputDir: DefaultOutputDir,
			LogsDir:   DefaultLogsDir,
		},
		Processing: ProcessingConfig{
			FlowsDelimiter:     ",",
			EstimatesDelimiter: ";",
			ReportDelimiter:    ";",
			IdentifierColumn:   ColCodEmp,
			RoutingMode:        RoutingModeSign,
			Strict:             false,
			OutputSuffix:       DefaultOutputSuffix,
			FullRework:         false,
			SummaryWorkbook:    false,
		},
		Logging: LoggingConfig{
			Level:       DefaultLogLevel,
			Format:      DefaultLogFormat,
			Output:      "both",
			FilePath:    DefaultLogFile,
			Development: false,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			GatewayURL:     "",
			JobName:        DefaultMetricsJobName,
			TracingEnabled: false,
		},
		Sanitize: SanitizeConfig{
			// Cloned so a YAML overlay cannot merge into the package default
			Replacements: maps.Clone(DefaultReplacements),
			Pattern:      "*.csv",
		},
	}
}
