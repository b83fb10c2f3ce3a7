// Package worker supports the long-running daemon that executes the daily
// batch on a cron schedule: configuration and the health-probe server.
package worker

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	pkgconfig "note-curator/pkg/config"
)

// Defaults for the daemon. The schedule fires once per day in the
// configured timezone.
const (
	defaultCronSchedule = "30 5 * * *"
	defaultTimezone     = "Asia/Tokyo"
	defaultBatchTimeout = 2 * time.Hour
	defaultHealthPort   = 9091
	defaultMetricsPort  = 9090
)

// Config holds the daemon configuration, loaded from the environment with
// validated fallbacks.
type Config struct {
	CronSchedule string
	Timezone     string
	BatchTimeout time.Duration
	HealthPort   int
	MetricsPort  int
}

// LoadConfigFromEnv reads the daemon configuration.
//
// Environment variables:
//   - CRON_SCHEDULE: five-field cron expression (default "30 5 * * *")
//   - WORKER_TIMEZONE: IANA zone for the schedule (default "Asia/Tokyo")
//   - BATCH_TIMEOUT: per-run timeout (default 2h)
//   - HEALTH_PORT, METRICS_PORT: probe/metrics listen ports
func LoadConfigFromEnv() (*Config, error) {
	cfg := &Config{
		CronSchedule: pkgconfig.GetEnvString("CRON_SCHEDULE", defaultCronSchedule),
		Timezone:     pkgconfig.GetEnvString("WORKER_TIMEZONE", defaultTimezone),
		BatchTimeout: pkgconfig.GetEnvDuration("BATCH_TIMEOUT", defaultBatchTimeout),
		HealthPort:   pkgconfig.GetEnvInt("HEALTH_PORT", defaultHealthPort),
		MetricsPort:  pkgconfig.GetEnvInt("METRICS_PORT", defaultMetricsPort),
	}

	if _, err := cron.ParseStandard(cfg.CronSchedule); err != nil {
		return nil, fmt.Errorf("LoadConfigFromEnv: invalid CRON_SCHEDULE %q: %w", cfg.CronSchedule, err)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("LoadConfigFromEnv: invalid WORKER_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	if cfg.HealthPort <= 0 || cfg.HealthPort > 65535 {
		return nil, fmt.Errorf("LoadConfigFromEnv: invalid HEALTH_PORT %d", cfg.HealthPort)
	}
	if cfg.MetricsPort <= 0 || cfg.MetricsPort > 65535 {
		return nil, fmt.Errorf("LoadConfigFromEnv: invalid METRICS_PORT %d", cfg.MetricsPort)
	}

	return cfg, nil
}
