// Package postgres provides PostgreSQL implementations of the repository
// interfaces, selected when DATABASE_URL is set.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"note-curator/internal/domain/entity"
	"note-curator/internal/repository"
)

// ReferenceRepo implements the ReferenceRepository interface using PostgreSQL.
type ReferenceRepo struct {
	db *sql.DB
}

// NewReferenceRepo creates a new PostgreSQL-backed reference repository.
func NewReferenceRepo(db *sql.DB) repository.ReferenceRepository {
	return &ReferenceRepo{db: db}
}

// SaveMany upserts references keyed on (key, urlname), preserving
// is_processed and the original collected_at.
func (repo *ReferenceRepo) SaveMany(ctx context.Context, refs []*entity.ArticleReference) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}

	const query = `
INSERT INTO article_references
(key, urlname, category, title, author, thumbnail, published_at, collected_at, is_processed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (key, urlname) DO UPDATE SET
	category  = excluded.category,
	title     = excluded.title,
	author    = excluded.author,
	thumbnail = excluded.thumbnail,
	published_at = excluded.published_at
`

	saved := 0
	for _, ref := range refs {
		_, err := repo.db.ExecContext(ctx, query,
			ref.Key, ref.URLName, ref.Category, ref.Title, ref.Author,
			ref.Thumbnail, ref.PublishedAt, ref.CollectedAt, ref.IsProcessed,
		)
		if err != nil {
			return saved, fmt.Errorf("SaveMany: ExecContext: %w", err)
		}
		saved++
	}

	return saved, nil
}

// ExistingKeys returns the set of all composite identities.
func (repo *ReferenceRepo) ExistingKeys(ctx context.Context) (map[repository.CompositeKey]struct{}, error) {
	const query = `SELECT key, urlname FROM article_references`

	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ExistingKeys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[repository.CompositeKey]struct{})
	for rows.Next() {
		var ck repository.CompositeKey
		if err := rows.Scan(&ck.Key, &ck.URLName); err != nil {
			return nil, fmt.Errorf("ExistingKeys: Scan: %w", err)
		}
		keys[ck] = struct{}{}
	}

	return keys, rows.Err()
}

// Unprocessed returns unprocessed references in FIFO collection order.
func (repo *ReferenceRepo) Unprocessed(ctx context.Context, limit int) ([]*entity.ArticleReference, error) {
	query := `
SELECT key, urlname, category, title, author, thumbnail, published_at, collected_at, is_processed
FROM article_references
WHERE is_processed = FALSE
ORDER BY collected_at ASC`

	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Unprocessed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	refs := make([]*entity.ArticleReference, 0, 64)
	for rows.Next() {
		var ref entity.ArticleReference
		var title, author, thumbnail sql.NullString
		var publishedAt sql.NullTime

		if err := rows.Scan(&ref.Key, &ref.URLName, &ref.Category,
			&title, &author, &thumbnail, &publishedAt,
			&ref.CollectedAt, &ref.IsProcessed); err != nil {
			return nil, fmt.Errorf("Unprocessed: Scan: %w", err)
		}

		ref.Title = title.String
		ref.Author = author.String
		ref.Thumbnail = thumbnail.String
		if publishedAt.Valid {
			ref.PublishedAt = publishedAt.Time
		}
		refs = append(refs, &ref)
	}

	return refs, rows.Err()
}

// MarkProcessed flips the processed flag; idempotent.
func (repo *ReferenceRepo) MarkProcessed(ctx context.Context, key, urlname string) error {
	const query = `
UPDATE article_references
SET is_processed = TRUE
WHERE key = $1 AND urlname = $2`

	if _, err := repo.db.ExecContext(ctx, query, key, urlname); err != nil {
		return fmt.Errorf("MarkProcessed: %w", err)
	}
	return nil
}

// CountsByCategory returns reference counts grouped by category.
func (repo *ReferenceRepo) CountsByCategory(ctx context.Context) (map[string]int64, error) {
	const query = `
SELECT category, COUNT(*) AS count
FROM article_references
GROUP BY category
ORDER BY count DESC`

	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("CountsByCategory: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int64)
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("CountsByCategory: Scan: %w", err)
		}
		counts[category] = count
	}

	return counts, rows.Err()
}

// Total returns the total number of stored references.
func (repo *ReferenceRepo) Total(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM article_references`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("Total: %w", err)
	}
	return count, nil
}
