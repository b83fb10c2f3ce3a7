// Package app wires the pipeline's dependency graph for the command
// entry points (the one-shot batch CLI and the cron worker daemon).
package app

import (
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"note-curator/internal/infra/adapter/persistence/postgres"
	"note-curator/internal/infra/adapter/persistence/sqlite"
	"note-curator/internal/infra/db"
	"note-curator/internal/infra/evaluator"
	"note-curator/internal/infra/publisher"
	"note-curator/internal/infra/scraper"
	appconfig "note-curator/internal/pkg/config"
	"note-curator/internal/repository"
	"note-curator/internal/usecase/batch"
	"note-curator/internal/usecase/collect"
	"note-curator/internal/usecase/evaluate"
	pkgconfig "note-curator/pkg/config"
	"note-curator/pkg/ratelimit"
)

// Pipeline is the assembled dependency graph for one process.
type Pipeline struct {
	Orchestrator *batch.Orchestrator
	Database     *sql.DB
	Config       *appconfig.AppConfig
	Env          *appconfig.Env
}

// Close releases the pipeline's resources.
func (p *Pipeline) Close() error {
	return p.Database.Close()
}

// Build loads configuration, opens the store, runs migrations and wires the
// orchestrator. Startup validation failures (missing LLM key, partial social
// credentials, broken config files) surface here, before any network I/O.
func Build(logger *slog.Logger, configDir, outputDir, dataDir string) (*Pipeline, error) {
	env, err := appconfig.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	appCfg, err := appconfig.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	if err := appconfig.EnsureDirectories(outputDir, dataDir, env.DatabasePath); err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	database, driver, err := db.Open(env.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}
	if err := db.MigrateUp(database, driver); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("Build: %w", err)
	}

	refRepo, artRepo, evalRepo := buildRepositories(database, driver)

	governor := ratelimit.NewGovernor(pkgconfig.LoadGovernorLimits(), appCfg.Location, nil)

	platformClient := scraper.NewClient(newHTTPClient(appCfg.URLs.CollectionSettings.Timeout()))
	listCollector := scraper.NewListCollector(platformClient, governor, appCfg.URLs.CollectionSettings, appCfg.Location)
	collectSvc := collect.NewService(listCollector, refRepo, appCfg.URLs)

	detailFetcher := scraper.NewDetailFetcher(platformClient, governor)

	llm := appCfg.Prompts.GroqSettings
	if err := evaluator.ValidateSettings(llm.Model, llm.Temperature, llm.MaxTokens, llm.TopP); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("Build: llm settings: %w", err)
	}

	llmClient, err := newEvaluatorClient(env.LLMAPIKey, llm.Model)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("Build: %w", err)
	}
	evalSvc := evaluate.NewService(llmClient, governor, evaluate.NewDuplicateDetector(), appCfg.Prompts)

	feedPublisher := publisher.NewJSON(artRepo, evalRepo, refRepo, outputDir, dataDir)

	orchestrator := batch.NewOrchestrator(
		collectSvc, detailFetcher, evalSvc, feedPublisher,
		refRepo, artRepo, evalRepo,
		appCfg.URLs.CollectionSettings,
	)

	if env.Social != nil {
		logger.Info("social credentials present, external poster enabled")
	}

	return &Pipeline{
		Orchestrator: orchestrator,
		Database:     database,
		Config:       appCfg,
		Env:          env,
	}, nil
}

// buildRepositories selects the persistence adapters for the active driver.
func buildRepositories(database *sql.DB, driver db.Driver) (repository.ReferenceRepository, repository.ArticleRepository, repository.EvaluationRepository) {
	if driver == db.DriverPostgres {
		return postgres.NewReferenceRepo(database),
			postgres.NewArticleRepo(database),
			postgres.NewEvaluationRepo(database)
	}
	return sqlite.NewReferenceRepo(database),
		sqlite.NewArticleRepo(database),
		sqlite.NewEvaluationRepo(database)
}

// newEvaluatorClient selects the scoring backend via EVALUATOR_TYPE
// (groq, the default, or claude).
func newEvaluatorClient(apiKey, model string) (evaluator.Client, error) {
	evaluatorType := os.Getenv("EVALUATOR_TYPE")
	if evaluatorType == "" {
		evaluatorType = "groq"
	}

	switch evaluatorType {
	case "groq":
		return evaluator.NewGroq(apiKey, model), nil
	case "claude":
		return evaluator.NewClaude(apiKey, os.Getenv("CLAUDE_MODEL")), nil
	default:
		return nil, fmt.Errorf("invalid EVALUATOR_TYPE %q (expected groq or claude)", evaluatorType)
	}
}

// newHTTPClient creates the platform HTTP client with timeouts, connection
// pooling and TLS 1.2+ enforced.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}
