// Command batch runs the daily curation pipeline once: collect references,
// stream each unprocessed article through detail fetch and LLM evaluation,
// then regenerate the JSON feeds.
//
// Flags:
//
//	--json-only          skip collection/evaluation, only regenerate feeds
//	--categories a,b     restrict processing to the listed category tags
//	--limit n            cap the number of references processed this run
//	--concurrency n      article-level fan-out (default 1, max 4)
//
// Exit codes: 0 on success, 1 on any fatal failure or user abort.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"note-curator/internal/app"
	"note-curator/internal/observability/logging"
	"note-curator/internal/observability/tracing"
	"note-curator/internal/usecase/batch"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	jsonOnly := flag.Bool("json-only", false, "regenerate JSON feeds only")
	categories := flag.String("categories", "", "comma-separated category tags to process")
	limit := flag.Int("limit", 0, "maximum number of references to process (0 = unlimited)")
	concurrency := flag.Int("concurrency", 1, "article-level fan-out (1-4)")
	configDir := flag.String("config-dir", "config", "directory holding the configuration files")
	outputDir := flag.String("output-dir", "backend/output", "working output directory for feed files")
	dataDir := flag.String("data-dir", "docs/data", "published data directory for feed files")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Init()
	defer shutdownTracing()

	pipeline, err := app.Build(logger, *configDir, *outputDir, *dataDir)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	opts := batch.Options{
		JSONOnly:    *jsonOnly,
		Categories:  splitCategories(*categories),
		Limit:       *limit,
		Concurrency: *concurrency,
	}

	stats, err := pipeline.Orchestrator.Run(ctx, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Error("batch aborted")
		} else {
			logger.Error("batch failed", slog.Any("error", err))
		}
		os.Exit(1)
	}

	logger.Info("batch run finished",
		slog.Int("references", stats.References),
		slog.Int("evaluated", stats.Evaluated),
		slog.Int("excluded", stats.Excluded),
		slog.Int("failed", stats.Failed))
}

// splitCategories parses the --categories flag value.
func splitCategories(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	categories := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			categories = append(categories, trimmed)
		}
	}
	return categories
}
