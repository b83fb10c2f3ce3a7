// Package repository defines the persistence interfaces consumed by the
// use-case layer. Concrete implementations live under
// internal/infra/adapter/persistence.
package repository

import (
	"context"

	"note-curator/internal/domain/entity"
)

// CompositeKey identifies an article reference by its (key, urlname) pair.
type CompositeKey struct {
	Key     string
	URLName string
}

// ReferenceRepository persists article references discovered during list
// collection. SaveMany is an idempotent upsert on (key, urlname): replaying
// the same input leaves the store unchanged and preserves is_processed.
type ReferenceRepository interface {
	// SaveMany upserts the given references and returns the number saved.
	SaveMany(ctx context.Context, refs []*entity.ArticleReference) (int, error)

	// ExistingKeys returns the set of all composite identities for fast
	// deduplication at discovery time.
	ExistingKeys(ctx context.Context) (map[CompositeKey]struct{}, error)

	// Unprocessed returns references with is_processed=false in FIFO
	// collection order (collected_at ascending). limit <= 0 means no limit.
	Unprocessed(ctx context.Context, limit int) ([]*entity.ArticleReference, error)

	// MarkProcessed flips the processed flag; idempotent.
	MarkProcessed(ctx context.Context, key, urlname string) error

	// CountsByCategory returns reference counts grouped by category.
	CountsByCategory(ctx context.Context) (map[string]int64, error)

	// Total returns the total number of stored references.
	Total(ctx context.Context) (int64, error)
}
