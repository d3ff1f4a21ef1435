// Package config provides centralized configuration management for the GBO
// swap flow processor. It handles loading configuration from multiple
// sources, validation, and provides a type-safe API for accessing
// configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (gbo.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern GBO_<SECTION>_<FIELD>:
//
//	GBO_PATHS_DATA_DIR=/srv/gbo/data
//	GBO_PROCESSING_ROUTING_MODE=leg
//	GBO_PROCESSING_STRICT=true
//	GBO_LOGGING_LEVEL=debug
//	GBO_METRICS_GATEWAY_URL=http://pushgateway:9091
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which resolves all file system paths relative to the executable location
// unless overridden with absolute directories:
//
//	paths, err := config.GetPaths()
//	flowsPath := paths.GetFlowsPath(date)
//	outputPath := paths.GetOutputPath("flujos_swap_gbo_20240115_procesado.csv")
//
// # Validation
//
// All configuration is validated at load time to ensure:
//
//	- Required fields are present
//	- Enumerated values (routing mode, log level) are recognized
//	- CSV delimiters are single usable characters
//	- The metrics gateway URL, when set, is properly formatted
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
