package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-curator/internal/domain/entity"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const urlsJSON = `{
  "collection_urls": [
    {"name": "Game", "url": "https://example.com/interests/game", "category": "game"}
  ],
  "collection_settings": {
    "request_delay_seconds": 2.0,
    "old_article_threshold_days": 1,
    "max_retries": 3,
    "stop_after_old_articles": true,
    "fetch_article_details": true,
    "max_pages_per_category": 5,
    "timeout_seconds": 30
  }
}`

const promptsJSON = `{
  "evaluation_prompt": {
    "system_prompt": "You are a judge.",
    "user_prompt_template": "Evaluate {article_id}: {title}"
  },
  "retry_evaluation_prompt": {
    "system_prompt": "Second opinion.",
    "user_prompt_template": "Re-evaluate {article_id}"
  },
  "groq_settings": {
    "model": "llama3-70b-8192",
    "temperature": 0.3,
    "max_tokens": 1000,
    "top_p": 0.9
  },
  "rate_limit": {"max_retries": 3, "retry_delay_seconds": 2.0}
}`

func TestLoad_JSONFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "urls_config.json", urlsJSON)
	writeFile(t, dir, "prompt_settings.json", promptsJSON)
	writeFile(t, dir, "posting_schedule.json", `{"slots": ["08:00", "20:00"]}`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Len(t, cfg.URLs.CollectionURLs, 1)
	assert.Equal(t, "game", cfg.URLs.CollectionURLs[0].Category)
	assert.Equal(t, 2.0, cfg.URLs.CollectionSettings.RequestDelaySeconds)
	assert.Equal(t, "llama3-70b-8192", cfg.Prompts.GroqSettings.Model)
	assert.NotNil(t, cfg.PostingSchedule)
	assert.NotNil(t, cfg.Location)
}

func TestLoad_YAMLFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "urls_config.yaml", `
collection_urls:
  - name: Game
    url: https://example.com/interests/game
    category: game
collection_settings:
  request_delay_seconds: 1.5
`)
	writeFile(t, dir, "prompt_settings.yaml", `
evaluation_prompt:
  system_prompt: judge
  user_prompt_template: "Evaluate {article_id}"
retry_evaluation_prompt:
  system_prompt: retry
  user_prompt_template: "Again {article_id}"
groq_settings:
  model: llama3-70b-8192
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.URLs.CollectionSettings.RequestDelaySeconds)
	// Defaults fill in everything the file omitted.
	assert.Equal(t, 5, cfg.URLs.CollectionSettings.MaxPagesPerCategory)
	assert.Equal(t, 0.3, cfg.Prompts.GroqSettings.Temperature)
	assert.Equal(t, 3, cfg.Prompts.RateLimit.MaxRetries)
}

func TestLoad_MissingRequiredFileFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "urls_config.json", urlsJSON)

	_, err := Load(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrConfigMissing)
}

func TestLoad_MissingScheduleIsTolerated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "urls_config.json", urlsJSON)
	writeFile(t, dir, "prompt_settings.json", promptsJSON)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg.PostingSchedule)
}

func TestLoad_EmptyPromptTemplateFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "urls_config.json", urlsJSON)
	writeFile(t, dir, "prompt_settings.json", `{"groq_settings":{"model":"m"}}`)

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadEnv_RequiresLLMKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")

	_, err := LoadEnv()
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrConfigMissing)
}

func TestLoadEnv_Defaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "gsk_test")
	t.Setenv("DATABASE_PATH", "")
	for _, name := range socialVars {
		t.Setenv(name, "")
	}

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "gsk_test", env.LLMAPIKey)
	assert.NotEmpty(t, env.DatabasePath)
	assert.Nil(t, env.Social)
}

func TestLoadEnv_SocialCredentialsAllOrNone(t *testing.T) {
	t.Setenv("LLM_API_KEY", "gsk_test")

	t.Run("partial set fails", func(t *testing.T) {
		for _, name := range socialVars {
			t.Setenv(name, "")
		}
		t.Setenv("TWITTER_API_KEY", "k")

		_, err := LoadEnv()
		require.Error(t, err)
		assert.ErrorIs(t, err, entity.ErrConfigMissing)
	})

	t.Run("full set loads", func(t *testing.T) {
		for _, name := range socialVars {
			t.Setenv(name, "value")
		}

		env, err := LoadEnv()
		require.NoError(t, err)
		require.NotNil(t, env.Social)
		assert.Equal(t, "value", env.Social.BearerToken)
	})

	t.Run("none is fine", func(t *testing.T) {
		for _, name := range socialVars {
			t.Setenv(name, "")
		}

		env, err := LoadEnv()
		require.NoError(t, err)
		assert.Nil(t, env.Social)
	})
}
