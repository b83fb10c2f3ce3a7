package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"note-curator/internal/domain/entity"
	"note-curator/internal/repository"
)

// EvaluationRepo implements the EvaluationRepository interface using SQLite.
type EvaluationRepo struct {
	db *sql.DB
}

// NewEvaluationRepo creates a new SQLite-backed evaluation repository.
func NewEvaluationRepo(db *sql.DB) repository.EvaluationRepository {
	return &EvaluationRepo{db: db}
}

const evaluationColumns = `id, article_id, quality_score, originality_score, entertainment_score, total_score, ai_summary, is_retry_evaluation, original_evaluation_id, retry_reason, evaluation_metadata, evaluated_at, created_at`

// Save upserts the evaluation keyed on (article_id, is_retry_evaluation) and
// returns the row ID. A crash-induced redo overwrites the same row instead of
// duplicating it; a retry evaluation lands as a second, superseding row.
func (repo *EvaluationRepo) Save(ctx context.Context, eval *entity.Evaluation) (int64, error) {
	metadata, err := marshalMetadata(eval.EvaluationMetadata)
	if err != nil {
		return 0, fmt.Errorf("Save: %w", err)
	}

	const query = `
INSERT INTO evaluations
(article_id, quality_score, originality_score, entertainment_score, total_score,
 ai_summary, is_retry_evaluation, original_evaluation_id, retry_reason,
 evaluation_metadata, evaluated_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (article_id, is_retry_evaluation) DO UPDATE SET
	quality_score          = excluded.quality_score,
	originality_score      = excluded.originality_score,
	entertainment_score    = excluded.entertainment_score,
	total_score            = excluded.total_score,
	ai_summary             = excluded.ai_summary,
	original_evaluation_id = excluded.original_evaluation_id,
	retry_reason           = excluded.retry_reason,
	evaluation_metadata    = excluded.evaluation_metadata,
	evaluated_at           = excluded.evaluated_at
RETURNING id
`

	var id int64
	err = repo.db.QueryRowContext(ctx, query,
		eval.ArticleID, eval.QualityScore, eval.OriginalityScore,
		eval.EntertainmentScore, eval.TotalScore, eval.AISummary,
		eval.IsRetryEvaluation, eval.OriginalEvaluationID, nullString(eval.RetryReason),
		metadata, eval.EvaluatedAt, eval.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("Save: QueryRowContext: %w", err)
	}

	return id, nil
}

// LatestByArticleID returns the most recent evaluation for the article.
func (repo *EvaluationRepo) LatestByArticleID(ctx context.Context, articleID string) (*entity.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + `
FROM evaluations
WHERE article_id = ?
ORDER BY evaluated_at DESC, id DESC
LIMIT 1`

	rows, err := repo.db.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("LatestByArticleID: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("LatestByArticleID: rows.Err: %w", err)
		}
		return nil, entity.ErrNotFound
	}

	eval, err := scanEvaluation(rows)
	if err != nil {
		return nil, fmt.Errorf("LatestByArticleID: %w", err)
	}
	return eval, nil
}

// Recent returns evaluations from the last `days` days, newest first.
func (repo *EvaluationRepo) Recent(ctx context.Context, days, limit int) ([]*entity.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + `
FROM evaluations
WHERE evaluated_at >= ?
ORDER BY evaluated_at DESC`

	cutoff := time.Now().AddDate(0, 0, -days)
	args := []any{cutoff}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Recent: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	evals := make([]*entity.Evaluation, 0, 64)
	for rows.Next() {
		eval, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("Recent: %w", err)
		}
		evals = append(evals, eval)
	}

	return evals, rows.Err()
}

// Statistics aggregates the score distribution, optionally limited to the
// last `days` days (days <= 0 covers everything).
func (repo *EvaluationRepo) Statistics(ctx context.Context, days int) (*repository.EvaluationStatistics, error) {
	query := `
SELECT COUNT(*),
       COALESCE(AVG(total_score), 0),
       COALESCE(MAX(total_score), 0),
       COALESCE(MIN(total_score), 0),
       COALESCE(AVG(quality_score), 0),
       COALESCE(AVG(originality_score), 0),
       COALESCE(AVG(entertainment_score), 0),
       COALESCE(SUM(CASE WHEN total_score >= 80 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN total_score >= 60 AND total_score < 80 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN total_score < 60 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN quality_score >= 35 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN originality_score >= 25 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN entertainment_score >= 25 THEN 1 ELSE 0 END), 0)
FROM evaluations
`
	var args []any
	if days > 0 {
		query += ` WHERE evaluated_at >= ?`
		args = append(args, time.Now().AddDate(0, 0, -days))
	}

	var stats repository.EvaluationStatistics
	err := repo.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total, &stats.AverageTotalScore, &stats.MaxTotalScore,
		&stats.MinTotalScore, &stats.AverageQualityScore,
		&stats.AverageOriginalityScore, &stats.AverageEntertainmentScore,
		&stats.HighQualityCount, &stats.MediumQualityCount, &stats.LowQualityCount,
		&stats.ExcellentQuality, &stats.ExcellentOriginality, &stats.ExcellentEntertainment,
	)
	if err != nil {
		return nil, fmt.Errorf("Statistics: QueryRowContext: %w", err)
	}

	return &stats, nil
}

// Count returns the total number of evaluations.
func (repo *EvaluationRepo) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM evaluations`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("Count: QueryRowContext: %w", err)
	}
	return count, nil
}

func scanEvaluation(rows *sql.Rows) (*entity.Evaluation, error) {
	var eval entity.Evaluation
	var originalID sql.NullInt64
	var retryReason, metadata sql.NullString

	err := rows.Scan(&eval.ID, &eval.ArticleID, &eval.QualityScore,
		&eval.OriginalityScore, &eval.EntertainmentScore, &eval.TotalScore,
		&eval.AISummary, &eval.IsRetryEvaluation, &originalID, &retryReason,
		&metadata, &eval.EvaluatedAt, &eval.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("Scan: %w", err)
	}

	if originalID.Valid {
		eval.OriginalEvaluationID = &originalID.Int64
	}
	eval.RetryReason = retryReason.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &eval.EvaluationMetadata); err != nil {
			return nil, fmt.Errorf("Scan: metadata: %w", err)
		}
	}

	return &eval, nil
}

// marshalMetadata serializes the metadata map to JSON text, NULL when empty.
func marshalMetadata(metadata map[string]any) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

// nullString maps "" to NULL for optional text columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
