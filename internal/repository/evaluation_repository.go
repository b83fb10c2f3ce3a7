package repository

import (
	"context"

	"note-curator/internal/domain/entity"
)

// EvaluationStatistics aggregates score distribution numbers for the
// statistics feed.
type EvaluationStatistics struct {
	Total                     int64
	AverageTotalScore         float64
	MaxTotalScore             int
	MinTotalScore             int
	AverageQualityScore       float64
	AverageOriginalityScore   float64
	AverageEntertainmentScore float64
	HighQualityCount          int64 // total >= 80
	MediumQualityCount        int64 // 60 <= total < 80
	LowQualityCount           int64 // total < 60
	ExcellentQuality          int64 // quality >= 35
	ExcellentOriginality      int64 // originality >= 25
	ExcellentEntertainment    int64 // entertainment >= 25
}

// EvaluationRepository persists scored evaluations. Save upserts on
// (article_id, is_retry_evaluation) so crash-induced redos overwrite instead
// of duplicating; a retry evaluation supersedes the original as a second row
// and LatestByArticleID returns the most recent one.
type EvaluationRepository interface {
	// Save upserts the evaluation and returns its row ID.
	Save(ctx context.Context, eval *entity.Evaluation) (int64, error)

	// LatestByArticleID returns the most recent evaluation for the article
	// or entity.ErrNotFound.
	LatestByArticleID(ctx context.Context, articleID string) (*entity.Evaluation, error)

	// Recent returns evaluations from the last `days` days, newest first.
	Recent(ctx context.Context, days, limit int) ([]*entity.Evaluation, error)

	Statistics(ctx context.Context, days int) (*EvaluationStatistics, error)

	Count(ctx context.Context) (int64, error)
}
