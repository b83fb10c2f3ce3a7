package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"note-curator/internal/domain/entity"
	"note-curator/internal/repository"
)

// ArticleRepo implements the ArticleRepository interface using SQLite.
type ArticleRepo struct {
	db *sql.DB
}

// NewArticleRepo creates a new SQLite-backed article repository.
func NewArticleRepo(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepo{db: db}
}

const articleColumns = `id, title, url, thumbnail, published_at, author, content_preview, category, collected_at, is_evaluated, created_at, updated_at`

// Upsert inserts or replaces the article keyed on its ID. Replaying the same
// article after a crash leaves the row unchanged apart from updated_at.
func (repo *ArticleRepo) Upsert(ctx context.Context, article *entity.Article) error {
	const query = `
INSERT INTO articles
(id, title, url, thumbnail, published_at, author, content_preview, category, collected_at, is_evaluated, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	title           = excluded.title,
	url             = excluded.url,
	thumbnail       = excluded.thumbnail,
	published_at    = excluded.published_at,
	author          = excluded.author,
	content_preview = excluded.content_preview,
	category        = excluded.category,
	updated_at      = excluded.updated_at
`
	_, err := repo.db.ExecContext(ctx, query,
		article.ID, article.Title, article.URL, article.Thumbnail,
		article.PublishedAt, article.Author, article.ContentPreview,
		article.Category, article.CollectedAt, article.IsEvaluated,
		article.CreatedAt, article.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: ExecContext: %w", err)
	}
	return nil
}

// Get returns the article or entity.ErrNotFound.
func (repo *ArticleRepo) Get(ctx context.Context, id string) (*entity.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = ? LIMIT 1`

	row := repo.db.QueryRowContext(ctx, query, id)
	article, err := scanArticleRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return article, nil
}

// Exists reports whether an article with the given ID is stored.
func (repo *ArticleRepo) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM articles WHERE id = ? LIMIT 1`
	var one int
	err := repo.db.QueryRowContext(ctx, query, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return true, nil
}

// MarkEvaluated flips is_evaluated and bumps updated_at.
func (repo *ArticleRepo) MarkEvaluated(ctx context.Context, id string, at time.Time) error {
	const query = `
UPDATE articles
SET is_evaluated = TRUE, updated_at = ?
WHERE id = ?
`
	if _, err := repo.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("MarkEvaluated: ExecContext: %w", err)
	}
	return nil
}

// Recent returns articles published within the last `days` days, newest first.
func (repo *ArticleRepo) Recent(ctx context.Context, days, limit int) ([]*entity.Article, error) {
	query := `SELECT ` + articleColumns + `
FROM articles
WHERE published_at >= ?
ORDER BY published_at DESC`

	cutoff := time.Now().AddDate(0, 0, -days)
	args := []any{cutoff}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return repo.queryArticles(ctx, "Recent", query, args...)
}

// ByCategory returns articles in the given category, newest first.
func (repo *ArticleRepo) ByCategory(ctx context.Context, category string, limit int) ([]*entity.Article, error) {
	query := `SELECT ` + articleColumns + `
FROM articles
WHERE category = ?
ORDER BY published_at DESC`

	args := []any{category}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return repo.queryArticles(ctx, "ByCategory", query, args...)
}

// WithEvaluations joins each article with its latest evaluation, filtered by
// minimum total score and an optional recency window.
func (repo *ArticleRepo) WithEvaluations(ctx context.Context, minScore, days, limit int) ([]repository.ArticleWithEvaluation, error) {
	query := `
SELECT a.id, a.title, a.url, a.thumbnail, a.published_at, a.author, a.content_preview,
       a.category, a.collected_at, a.is_evaluated, a.created_at, a.updated_at,
       e.quality_score, e.originality_score, e.entertainment_score, e.total_score,
       e.ai_summary, e.is_retry_evaluation, e.evaluated_at
FROM articles a
INNER JOIN evaluations e ON e.article_id = a.id
WHERE e.evaluated_at = (
	SELECT MAX(e2.evaluated_at) FROM evaluations e2 WHERE e2.article_id = a.id
)
AND e.total_score >= ?
`
	args := []any{minScore}
	if days > 0 {
		query += ` AND a.published_at >= ?`
		args = append(args, time.Now().AddDate(0, 0, -days))
	}
	query += ` ORDER BY e.total_score DESC, a.published_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("WithEvaluations: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// パフォーマンス最適化: メモリ再割り当てを削減するため事前割り当て
	result := make([]repository.ArticleWithEvaluation, 0, 100)
	for rows.Next() {
		var article entity.Article
		var thumbnail, preview sql.NullString
		var awe repository.ArticleWithEvaluation

		err := rows.Scan(&article.ID, &article.Title, &article.URL, &thumbnail,
			&article.PublishedAt, &article.Author, &preview,
			&article.Category, &article.CollectedAt, &article.IsEvaluated,
			&article.CreatedAt, &article.UpdatedAt,
			&awe.QualityScore, &awe.OriginalityScore, &awe.EntertainmentScore,
			&awe.TotalScore, &awe.AISummary, &awe.IsRetryEvaluation, &awe.EvaluatedAt)
		if err != nil {
			return nil, fmt.Errorf("WithEvaluations: Scan: %w", err)
		}

		article.Thumbnail = thumbnail.String
		article.ContentPreview = preview.String
		awe.Article = &article
		result = append(result, awe)
	}

	return result, rows.Err()
}

// Top returns the highest-scored articles, optionally within a recency window.
func (repo *ArticleRepo) Top(ctx context.Context, limit, days int) ([]repository.ArticleWithEvaluation, error) {
	return repo.WithEvaluations(ctx, 0, days, limit)
}

// Count returns the total number of articles.
func (repo *ArticleRepo) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM articles`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("Count: QueryRowContext: %w", err)
	}
	return count, nil
}

// EvaluatedCount returns the number of evaluated articles.
func (repo *ArticleRepo) EvaluatedCount(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM articles WHERE is_evaluated = TRUE`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("EvaluatedCount: QueryRowContext: %w", err)
	}
	return count, nil
}

func (repo *ArticleRepo) queryArticles(ctx context.Context, op, query string, args ...any) ([]*entity.Article, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: QueryContext: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	// パフォーマンス最適化: メモリ再割り当てを削減するため事前割り当て
	articles := make([]*entity.Article, 0, 100)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows.Err: %w", op, err)
	}

	return articles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticleFrom(s rowScanner) (*entity.Article, error) {
	var article entity.Article
	var thumbnail, preview sql.NullString

	err := s.Scan(&article.ID, &article.Title, &article.URL, &thumbnail,
		&article.PublishedAt, &article.Author, &preview,
		&article.Category, &article.CollectedAt, &article.IsEvaluated,
		&article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		return nil, err
	}

	article.Thumbnail = thumbnail.String
	article.ContentPreview = preview.String
	return &article, nil
}

func scanArticle(rows *sql.Rows) (*entity.Article, error) {
	article, err := scanArticleFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("Scan: %w", err)
	}
	return article, nil
}

func scanArticleRow(row *sql.Row) (*entity.Article, error) {
	return scanArticleFrom(row)
}
