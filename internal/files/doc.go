// Package files discovers and pairs the dated input files of a processing
// run.
//
// This package contains two main components:
//
// Discovery: Scans the data directory for flow extracts, estimates files and
// R5 reports, normalizes the date tokens their names encode, and pairs files
// that share a value date. It also applies the smart-update filter that skips
// pairs whose output already exists.
//
// Manager: Provides basic file management operations such as reading, writing
// and copying files, and ensuring directories exist. All operations resolve
// relative paths against the configured directories to keep the tool portable.
//
// Example usage:
//
//	// Create a discovery instance
//	discovery := files.NewDiscovery(paths, cfg.Processing)
//
//	// Pair every pending date in the data directory
//	pairs, err := discovery.DiscoverPairs(ctx)
//
//	// Or look up one explicit date
//	pair, err := discovery.DiscoverDate(ctx, date)
package files
