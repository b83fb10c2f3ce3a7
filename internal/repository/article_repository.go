package repository

import (
	"context"
	"time"

	"note-curator/internal/domain/entity"
)

// ArticleWithEvaluation joins an article with its latest evaluation for the
// publisher queries.
type ArticleWithEvaluation struct {
	Article            *entity.Article
	QualityScore       int
	OriginalityScore   int
	EntertainmentScore int
	TotalScore         int
	AISummary          string
	IsRetryEvaluation  bool
	EvaluatedAt        time.Time
}

// ArticleRepository persists article records (metadata plus preview only).
// Upsert is idempotent on the article ID so a crash-induced redo of a single
// article leaves the store unchanged.
type ArticleRepository interface {
	Upsert(ctx context.Context, article *entity.Article) error

	// Get returns the article or entity.ErrNotFound.
	Get(ctx context.Context, id string) (*entity.Article, error)

	Exists(ctx context.Context, id string) (bool, error)

	// MarkEvaluated flips is_evaluated and bumps updated_at.
	MarkEvaluated(ctx context.Context, id string, at time.Time) error

	// Recent returns articles published within the last `days` days, newest
	// first. limit <= 0 means no limit.
	Recent(ctx context.Context, days, limit int) ([]*entity.Article, error)

	ByCategory(ctx context.Context, category string, limit int) ([]*entity.Article, error)

	// WithEvaluations returns articles joined with their latest evaluation,
	// filtered by minimum total score and optional recency window
	// (days <= 0 disables it), ordered by total score then publish time.
	WithEvaluations(ctx context.Context, minScore, days, limit int) ([]ArticleWithEvaluation, error)

	// Top returns the highest-scored articles, optionally within a recency
	// window.
	Top(ctx context.Context, limit, days int) ([]ArticleWithEvaluation, error)

	Count(ctx context.Context) (int64, error)
	EvaluatedCount(ctx context.Context) (int64, error)
}
