package db

import (
	"database/sql"
	"fmt"
)

// MigrateUp creates the pipeline schema when missing. Statements are phrased
// to work on both SQLite and PostgreSQL; the evaluations primary key differs
// so it is selected per driver.
func MigrateUp(conn *sql.DB, driver Driver) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS article_references (
    key          TEXT NOT NULL,
    urlname      TEXT NOT NULL,
    category     TEXT NOT NULL,
    title        TEXT,
    author       TEXT,
    thumbnail    TEXT,
    published_at TIMESTAMP,
    collected_at TIMESTAMP NOT NULL,
    is_processed BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (key, urlname)
)`,
		`CREATE TABLE IF NOT EXISTS articles (
    id              TEXT PRIMARY KEY,
    title           TEXT NOT NULL,
    url             TEXT NOT NULL,
    thumbnail       TEXT,
    published_at    TIMESTAMP NOT NULL,
    author          TEXT NOT NULL,
    content_preview TEXT,
    category        TEXT NOT NULL,
    collected_at    TIMESTAMP NOT NULL,
    is_evaluated    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL
)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS evaluations (
    id                     %s,
    article_id             TEXT NOT NULL,
    quality_score          INTEGER NOT NULL,
    originality_score      INTEGER NOT NULL,
    entertainment_score    INTEGER NOT NULL,
    total_score            INTEGER NOT NULL,
    ai_summary             TEXT NOT NULL,
    is_retry_evaluation    BOOLEAN NOT NULL DEFAULT FALSE,
    original_evaluation_id BIGINT,
    retry_reason           TEXT,
    evaluation_metadata    TEXT,
    evaluated_at           TIMESTAMP NOT NULL,
    created_at             TIMESTAMP NOT NULL,
    UNIQUE (article_id, is_retry_evaluation)
)`, serial),
	}

	// パフォーマンス最適化: 参照・集計クエリで使用するインデックス
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_references_unprocessed ON article_references(is_processed, collected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_article_id ON evaluations(article_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_total_score ON evaluations(total_score DESC)`,
	}

	for _, stmt := range statements {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("MigrateUp: %w", err)
		}
	}
	for _, idx := range indexes {
		if _, err := conn.Exec(idx); err != nil {
			return fmt.Errorf("MigrateUp: %w", err)
		}
	}

	return nil
}

// MigrateDown drops the pipeline tables in reverse dependency order.
// Use with caution: this deletes all pipeline state.
func MigrateDown(conn *sql.DB) error {
	drops := []string{
		`DROP TABLE IF EXISTS evaluations`,
		`DROP TABLE IF EXISTS articles`,
		`DROP TABLE IF EXISTS article_references`,
	}
	for _, stmt := range drops {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("MigrateDown: %w", err)
		}
	}
	return nil
}
