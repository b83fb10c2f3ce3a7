package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"note-curator/internal/domain/entity"
)

// SocialCredentials is the credential set for the external posting bot.
// Either all five variables are present or none; a partial set is a
// configuration error.
type SocialCredentials struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string
}

// Env holds the environment-derived configuration for one run.
type Env struct {
	LLMAPIKey    string
	DatabasePath string
	DatabaseURL  string
	LogLevel     string
	LogFilePath  string
	Social       *SocialCredentials
}

// socialVars lists the credential variables checked as a unit.
var socialVars = []string{
	"TWITTER_API_KEY",
	"TWITTER_API_SECRET",
	"TWITTER_ACCESS_TOKEN",
	"TWITTER_ACCESS_TOKEN_SECRET",
	"TWITTER_BEARER_TOKEN",
}

// LoadEnv reads and validates the environment. LLM_API_KEY is required and
// its absence is fatal before any I/O. The social credential set is optional
// but all-or-none.
func LoadEnv() (*Env, error) {
	env := &Env{
		LLMAPIKey:    os.Getenv("LLM_API_KEY"),
		DatabasePath: os.Getenv("DATABASE_PATH"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		LogFilePath:  os.Getenv("LOG_FILE_PATH"),
	}

	if env.LLMAPIKey == "" {
		return nil, fmt.Errorf("%w: LLM_API_KEY", entity.ErrConfigMissing)
	}

	if env.DatabasePath == "" {
		env.DatabasePath = "backend/database/entertainment_columns.db"
	}

	social, err := loadSocialCredentials()
	if err != nil {
		return nil, err
	}
	env.Social = social

	return env, nil
}

// loadSocialCredentials enforces the all-or-none rule on the posting
// credential set.
func loadSocialCredentials() (*SocialCredentials, error) {
	values := make([]string, len(socialVars))
	var present, missing []string

	for i, name := range socialVars {
		values[i] = os.Getenv(name)
		if values[i] == "" {
			missing = append(missing, name)
		} else {
			present = append(present, name)
		}
	}

	if len(present) == 0 {
		return nil, nil
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: partial social credentials (missing %s)",
			entity.ErrConfigMissing, strings.Join(missing, ", "))
	}

	return &SocialCredentials{
		APIKey:            values[0],
		APISecret:         values[1],
		AccessToken:       values[2],
		AccessTokenSecret: values[3],
		BearerToken:       values[4],
	}, nil
}

// EnsureDirectories creates the output, data and database directories the
// batch writes into.
func EnsureDirectories(outputDir, dataDir, databasePath string) error {
	dirs := []string{
		outputDir,
		dataDir,
		filepath.Join(dataDir, "archives"),
	}
	if databasePath != "" {
		dirs = append(dirs, filepath.Dir(databasePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("EnsureDirectories: %w", err)
		}
	}
	return nil
}
