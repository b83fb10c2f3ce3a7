// Command worker runs the daily batch on a cron schedule, exposing health
// probes and Prometheus metrics for operation.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"note-curator/internal/app"
	workerPkg "note-curator/internal/infra/worker"
	"note-curator/internal/observability/logging"
	"note-curator/internal/observability/tracing"
	appconfig "note-curator/internal/pkg/config"
	"note-curator/internal/usecase/batch"
	pkgconfig "note-curator/pkg/config"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	workerConfig, err := workerPkg.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("batch_timeout", workerConfig.BatchTimeout),
		slog.Int("health_port", workerConfig.HealthPort),
		slog.Int("metrics_port", workerConfig.MetricsPort))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Init()
	defer shutdownTracing()

	configDir := pkgconfig.GetEnvString("CONFIG_DIR", "config")
	outputDir := pkgconfig.GetEnvString("OUTPUT_DIR", "backend/output")
	dataDir := pkgconfig.GetEnvString("DATA_DIR", "docs/data")

	pipeline, err := app.Build(logger, configDir, outputDir, dataDir)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	startMetricsServer(ctx, logger, workerConfig.MetricsPort)

	healthServer := workerPkg.NewHealthServer(listenAddr(workerConfig.HealthPort), logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	if err := startCron(ctx, logger, pipeline, workerConfig, healthServer); err != nil {
		logger.Error("failed to start cron", slog.Any("error", err))
		os.Exit(1)
	}
}

// startCron arms the schedule and blocks until the process is signalled.
func startCron(ctx context.Context, logger *slog.Logger, pipeline *app.Pipeline, cfg *workerPkg.Config, healthServer *workerPkg.HealthServer) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using canonical default",
			slog.String("timezone", cfg.Timezone),
			slog.Any("error", err))
		loc, err = time.LoadLocation(appconfig.CanonicalTimezone)
		if err != nil {
			loc = time.UTC
		}
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runScheduledBatch(ctx, logger, pipeline, cfg)
	})
	if err != nil {
		return err
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("schedule", cfg.CronSchedule),
		slog.String("timezone", loc.String()))

	<-ctx.Done()

	healthServer.SetReady(false)
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("cron jobs did not finish before shutdown deadline")
	}

	logger.Info("worker stopped")
	return nil
}

// runScheduledBatch executes one full batch with the configured timeout.
func runScheduledBatch(ctx context.Context, logger *slog.Logger, pipeline *app.Pipeline, cfg *workerPkg.Config) {
	logger.Info("scheduled batch starting")

	runCtx, cancel := context.WithTimeout(ctx, cfg.BatchTimeout)
	defer cancel()

	stats, err := pipeline.Orchestrator.Run(runCtx, batch.Options{})
	if err != nil {
		logger.Error("scheduled batch failed", slog.Any("error", err))
		return
	}

	logger.Info("scheduled batch completed",
		slog.Int("references", stats.References),
		slog.Int("evaluated", stats.Evaluated),
		slog.Int("excluded", stats.Excluded),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", stats.Duration))
}
