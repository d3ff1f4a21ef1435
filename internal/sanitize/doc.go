// Package sanitize normalizes provider text for downstream loaders.
//
// It owns the charset fallback chain (UTF-8, Latin-1, Windows-1252) used by
// every file reader in the pipeline, and the accent folding plus literal
// token replacements that the regulatory submission requires. Output is
// always plain UTF-8.
package sanitize
