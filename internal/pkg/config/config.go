// Package config loads the file-backed application configuration: collection
// URLs, prompt settings and the posting schedule. Each file is read once per
// run. Files may be JSON or YAML; the structures are identical.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"note-curator/internal/domain/entity"
)

// Canonical time zone for recency windows and the daily quota reset.
// The source platform is Japanese; timestamps without zone information are
// parsed as UTC and converted.
const CanonicalTimezone = "Asia/Tokyo"

// CollectionURL is one configured category source.
type CollectionURL struct {
	Name     string `json:"name" yaml:"name"`
	URL      string `json:"url" yaml:"url"`
	Category string `json:"category" yaml:"category"`
}

// CollectionSettings controls the list collector's pacing and stop rules.
type CollectionSettings struct {
	RequestDelaySeconds     float64 `json:"request_delay_seconds" yaml:"request_delay_seconds"`
	OldArticleThresholdDays int     `json:"old_article_threshold_days" yaml:"old_article_threshold_days"`
	MaxRetries              int     `json:"max_retries" yaml:"max_retries"`
	StopAfterOldArticles    bool    `json:"stop_after_old_articles" yaml:"stop_after_old_articles"`
	FetchArticleDetails     bool    `json:"fetch_article_details" yaml:"fetch_article_details"`
	MaxPagesPerCategory     int     `json:"max_pages_per_category" yaml:"max_pages_per_category"`
	TimeoutSeconds          int     `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// RequestDelay returns the inter-request courtesy delay as a duration.
func (s CollectionSettings) RequestDelay() time.Duration {
	return time.Duration(s.RequestDelaySeconds * float64(time.Second))
}

// Timeout returns the per-request HTTP timeout as a duration.
func (s CollectionSettings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// URLsConfig is the content of urls_config.{json,yaml}.
type URLsConfig struct {
	CollectionURLs     []CollectionURL    `json:"collection_urls" yaml:"collection_urls"`
	CollectionSettings CollectionSettings `json:"collection_settings" yaml:"collection_settings"`
}

// PromptPair is a system prompt plus a user prompt template. The template is
// expanded literally with {article_id}, {title}, {author}, {category} and
// {content_preview}.
type PromptPair struct {
	SystemPrompt       string `json:"system_prompt" yaml:"system_prompt"`
	UserPromptTemplate string `json:"user_prompt_template" yaml:"user_prompt_template"`
}

// LLMSettings holds the sampling parameters passed to the scoring service.
type LLMSettings struct {
	Model            string  `json:"model" yaml:"model"`
	Temperature      float64 `json:"temperature" yaml:"temperature"`
	MaxTokens        int     `json:"max_tokens" yaml:"max_tokens"`
	TopP             float64 `json:"top_p" yaml:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty" yaml:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty" yaml:"presence_penalty"`
}

// RateLimitSettings controls the evaluator's call retry loop.
type RateLimitSettings struct {
	MaxRetries        int     `json:"max_retries" yaml:"max_retries"`
	RetryDelaySeconds float64 `json:"retry_delay_seconds" yaml:"retry_delay_seconds"`
}

// RetryDelay returns the base retry delay as a duration.
func (s RateLimitSettings) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySeconds * float64(time.Second))
}

// PromptSettings is the content of prompt_settings.{json,yaml}.
type PromptSettings struct {
	EvaluationPrompt      PromptPair        `json:"evaluation_prompt" yaml:"evaluation_prompt"`
	RetryEvaluationPrompt PromptPair        `json:"retry_evaluation_prompt" yaml:"retry_evaluation_prompt"`
	GroqSettings          LLMSettings       `json:"groq_settings" yaml:"groq_settings"`
	RateLimit             RateLimitSettings `json:"rate_limit" yaml:"rate_limit"`
}

// AppConfig aggregates the file-backed configuration for one run.
// PostingSchedule is consumed by the external poster and kept opaque.
type AppConfig struct {
	URLs            URLsConfig
	Prompts         PromptSettings
	PostingSchedule map[string]any
	Location        *time.Location
}

// Load reads the configuration files from dir and applies defaults.
// posting_schedule is optional; the other two files are required.
func Load(dir string) (*AppConfig, error) {
	cfg := &AppConfig{}

	if err := loadFile(dir, "urls_config", &cfg.URLs); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if err := loadFile(dir, "prompt_settings", &cfg.Prompts); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if err := loadFile(dir, "posting_schedule", &cfg.PostingSchedule); err != nil {
		// Optional: the poster runs out of process.
		cfg.PostingSchedule = nil
	}

	applyDefaults(cfg)

	loc, err := time.LoadLocation(CanonicalTimezone)
	if err != nil {
		loc = time.UTC
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded configuration for structural problems.
func (c *AppConfig) Validate() error {
	if len(c.URLs.CollectionURLs) == 0 {
		return fmt.Errorf("%w: no collection URLs configured", entity.ErrConfigMissing)
	}
	for _, cu := range c.URLs.CollectionURLs {
		if cu.Category == "" {
			return fmt.Errorf("%w: collection URL %q has no category", entity.ErrConfigMissing, cu.Name)
		}
		if err := entity.ValidateCollectionURL(cu.URL); err != nil {
			return fmt.Errorf("collection URL %q: %w", cu.Name, err)
		}
	}
	if c.Prompts.EvaluationPrompt.UserPromptTemplate == "" {
		return fmt.Errorf("%w: evaluation prompt template is empty", entity.ErrConfigMissing)
	}
	if c.Prompts.GroqSettings.Model == "" {
		return fmt.Errorf("%w: LLM model is not configured", entity.ErrConfigMissing)
	}
	return nil
}

// loadFile reads name.json or name.yaml/yml from dir into out.
func loadFile(dir, name string, out any) error {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read %s: %w", path, err)
		}

		if strings.HasSuffix(path, ".json") {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			return nil
		}
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return fmt.Errorf("%w: %s.{json,yaml} not found in %s", entity.ErrConfigMissing, name, dir)
}

func applyDefaults(cfg *AppConfig) {
	s := &cfg.URLs.CollectionSettings
	if s.RequestDelaySeconds <= 0 {
		s.RequestDelaySeconds = 1.0
	}
	if s.OldArticleThresholdDays <= 0 {
		s.OldArticleThresholdDays = 1
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = 3
	}
	if s.MaxPagesPerCategory <= 0 {
		s.MaxPagesPerCategory = 5
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = 30
	}

	g := &cfg.Prompts.GroqSettings
	if g.Temperature <= 0 {
		g.Temperature = 0.3
	}
	if g.MaxTokens <= 0 {
		g.MaxTokens = 1000
	}
	if g.TopP <= 0 {
		g.TopP = 0.9
	}

	r := &cfg.Prompts.RateLimit
	if r.MaxRetries <= 0 {
		r.MaxRetries = 3
	}
	if r.RetryDelaySeconds <= 0 {
		r.RetryDelaySeconds = 2.0
	}
}
