// Package collect implements phase 1 of the pipeline: discovering article
// references for every configured category and persisting them through the
// reference store's idempotent upsert.
package collect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"note-curator/internal/domain/entity"
	"note-curator/internal/observability/metrics"
	"note-curator/internal/pkg/config"
	"note-curator/internal/repository"
)

// Collector enumerates references for one configured category.
type Collector interface {
	Collect(ctx context.Context, source config.CollectionURL) ([]*entity.ArticleReference, error)
}

// Stats summarizes one collection pass.
type Stats struct {
	Categories int
	Discovered int
	New        int
	Saved      int
	Duration   time.Duration
}

// Service runs the collection pass over all configured categories.
type Service struct {
	collector Collector
	refRepo   repository.ReferenceRepository
	urls      config.URLsConfig
}

// NewService creates a collection service.
func NewService(collector Collector, refRepo repository.ReferenceRepository, urls config.URLsConfig) *Service {
	return &Service{
		collector: collector,
		refRepo:   refRepo,
		urls:      urls,
	}
}

// Run collects references from every category, deduplicates across the pass
// and saves the previously unseen ones. Failures in one category never abort
// the others.
func (s *Service) Run(ctx context.Context) (*Stats, error) {
	logger := slog.Default()
	start := time.Now()
	stats := &Stats{Categories: len(s.urls.CollectionURLs)}

	merged := make([]*entity.ArticleReference, 0, 64)
	seen := make(map[repository.CompositeKey]struct{})

	for _, source := range s.urls.CollectionURLs {
		refs, err := s.collector.Collect(ctx, source)
		if err != nil {
			if ctx.Err() != nil {
				return stats, fmt.Errorf("Run: %w", ctx.Err())
			}
			logger.Error("category collection failed",
				slog.String("category", source.Category),
				slog.String("name", source.Name),
				slog.Any("error", err))
			continue
		}

		metrics.RecordReferencesCollected(source.Category, len(refs))
		logger.Info("category collected",
			slog.String("category", source.Category),
			slog.Int("references", len(refs)))

		for _, ref := range refs {
			ck := repository.CompositeKey{Key: ref.Key, URLName: ref.URLName}
			if _, dup := seen[ck]; dup {
				continue
			}
			seen[ck] = struct{}{}
			merged = append(merged, ref)
		}

		// Delay between sources
		if err := sleepCtx(ctx, s.urls.CollectionSettings.RequestDelay()); err != nil {
			return stats, err
		}
	}

	stats.Discovered = len(merged)

	// Discovery-time dedup: skip references the store already knows so the
	// upsert only touches new rows.
	existing, err := s.refRepo.ExistingKeys(ctx)
	if err != nil {
		return stats, fmt.Errorf("Run: %w", err)
	}

	fresh := make([]*entity.ArticleReference, 0, len(merged))
	for _, ref := range merged {
		ck := repository.CompositeKey{Key: ref.Key, URLName: ref.URLName}
		if _, known := existing[ck]; known {
			continue
		}
		fresh = append(fresh, ref)
	}
	stats.New = len(fresh)

	saved, err := s.refRepo.SaveMany(ctx, fresh)
	if err != nil {
		return stats, fmt.Errorf("Run: save references: %w", err)
	}
	stats.Saved = saved
	stats.Duration = time.Since(start)

	logger.Info("collection pass completed",
		slog.Int("categories", stats.Categories),
		slog.Int("discovered", stats.Discovered),
		slog.Int("new", stats.New),
		slog.Int("saved", stats.Saved),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
