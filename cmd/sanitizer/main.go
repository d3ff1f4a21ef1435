package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gbocli/internal/config"
	"gbocli/internal/files"
	"gbocli/internal/infrastructure"
	"gbocli/internal/sanitize"
)

func main() {
	dataDir := flag.String("dir", "", "directory with files to sanitize (defaults to data relative to executable)")
	outDir := flag.String("out", "", "directory for the sanitized copies (defaults to procesados relative to executable)")
	pattern := flag.String("pattern", "", "glob pattern of files to sanitize (defaults to config, normally *.csv)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Flags present on the command line override file and environment values
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			cfg.Paths.DataDir = absPath(*dataDir)
		case "out":
			cfg.Paths.OutputDir = absPath(*outDir)
		case "pattern":
			cfg.Sanitize.Pattern = *pattern
		}
	})

	paths, err := cfg.ResolvedPaths()
	if err != nil {
		slog.Error("Failed to resolve paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	ctx, _ := infrastructure.EnsureRunID(context.Background())

	logger.InfoContext(ctx, "Starting file sanitization",
		slog.String("data_dir", paths.DataDir),
		slog.String("output_dir", paths.OutputDir),
		slog.String("pattern", cfg.Sanitize.Pattern))

	manager := files.NewManager(paths)
	found, err := manager.FindByPattern(paths.DataDir, cfg.Sanitize.Pattern)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to scan data directory", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Found %d files matching %s\n", len(found), cfg.Sanitize.Pattern)

	sanitizer := sanitize.NewSanitizer(logger, cfg.Sanitize)
	outcome := sanitizeFiles(ctx, sanitizer, logger, found, paths.OutputDir)

	logger.InfoContext(ctx, "Sanitization finished",
		slog.Int("files_found", len(found)),
		slog.Int("files_sanitized", outcome.Sanitized),
		slog.Int("files_changed", outcome.Changed),
		slog.Int("files_failed", outcome.Failed))

	fmt.Printf("Sanitized %d of %d files, %d changed\n", outcome.Sanitized, len(found), outcome.Changed)

	if outcome.Failed > 0 {
		os.Exit(1)
	}
}

// sanitizeOutcome counts what a sanitizer run did across all files
type sanitizeOutcome struct {
	Sanitized int
	Changed   int
	Failed    int
}

// sanitizeFiles cleans every found file into outDir under its own basename,
// printing one line per file with its line and replacement counts
func sanitizeFiles(ctx context.Context, sanitizer *sanitize.Sanitizer, logger *slog.Logger, found []files.FileInfo, outDir string) sanitizeOutcome {
	var outcome sanitizeOutcome
	for _, file := range found {
		outPath := filepath.Join(outDir, file.Name)
		stats, err := sanitizer.CleanFile(ctx, file.Path, outPath)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to sanitize file",
				slog.String("file", file.Name),
				slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "%s: %v\n", file.Name, err)
			outcome.Failed++
			continue
		}

		outcome.Sanitized++
		if stats.Changed {
			outcome.Changed++
		}
		fmt.Printf("%s: %d lines, %d replacements (%s)\n",
			file.Name, stats.Lines, stats.Replacements, stats.Encoding)
	}
	return outcome
}

// absPath resolves a command line path against the working directory, so the
// executable-relative default resolution does not reinterpret it
func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
