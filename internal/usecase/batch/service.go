// Package batch implements the orchestrator driving the end-to-end pipeline:
// collection, the per-reference streaming loop (detail fetch, article
// persist, evaluation, evaluation persist, mark processed) and feed
// publication.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"note-curator/internal/domain/entity"
	"note-curator/internal/observability/metrics"
	"note-curator/internal/observability/tracing"
	"note-curator/internal/pkg/config"
	"note-curator/internal/repository"
	"note-curator/internal/usecase/collect"
)

// progressInterval controls the periodic progress checkpoint log.
const progressInterval = 10

// Collector runs phase 1 and persists the discovered references.
type Collector interface {
	Run(ctx context.Context) (*collect.Stats, error)
}

// DetailFetcher returns the full record for one reference.
type DetailFetcher interface {
	Fetch(ctx context.Context, urlname, key string) (*entity.DetailRecord, error)
}

// Evaluator scores an article against an externally supplied full body.
type Evaluator interface {
	EvaluateWithContent(ctx context.Context, article *entity.Article, fullBody string) (*entity.Evaluation, error)
}

// Publisher regenerates the static JSON feeds after a batch.
type Publisher interface {
	GenerateAll(ctx context.Context) error
}

// Options control a single orchestrator run.
type Options struct {
	// JSONOnly skips collection and evaluation and only regenerates feeds.
	JSONOnly bool

	// Categories restricts processing to the listed category tags.
	Categories []string

	// Limit caps the number of references processed this run (0 = no cap).
	Limit int

	// Concurrency is the article-level fan-out; values below 2 keep the
	// default sequential loop. The per-service rate caps dominate anyway,
	// so the ceiling is small.
	Concurrency int
}

// maxConcurrency bounds the article-level fan-out.
const maxConcurrency = 4

// Stats summarizes one batch run.
type Stats struct {
	References int
	Processed  int
	Evaluated  int
	Excluded   int
	Failed     int
	Duration   time.Duration
}

// Orchestrator wires the pipeline stages together. Its lifetime equals the
// batch's lifetime; all dependencies are injected.
type Orchestrator struct {
	collector Collector
	fetcher   DetailFetcher
	evaluator Evaluator
	publisher Publisher

	refRepo  repository.ReferenceRepository
	artRepo  repository.ArticleRepository
	evalRepo repository.EvaluationRepository

	settings config.CollectionSettings
	now      func() time.Time
}

// NewOrchestrator creates a batch orchestrator.
func NewOrchestrator(
	collector Collector,
	fetcher DetailFetcher,
	evaluator Evaluator,
	publisher Publisher,
	refRepo repository.ReferenceRepository,
	artRepo repository.ArticleRepository,
	evalRepo repository.EvaluationRepository,
	settings config.CollectionSettings,
) *Orchestrator {
	return &Orchestrator{
		collector: collector,
		fetcher:   fetcher,
		evaluator: evaluator,
		publisher: publisher,
		refRepo:   refRepo,
		artRepo:   artRepo,
		evalRepo:  evalRepo,
		settings:  settings,
		now:       time.Now,
	}
}

// Run executes one batch. Per-item failures are isolated: the loop logs and
// continues, and the run only errors on collection failure, failure to load
// the unprocessed references, publication failure or cancellation.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Stats, error) {
	logger := slog.Default().With(slog.String("run_id", uuid.New().String()))
	start := o.now()
	stats := &Stats{}

	ctx, span := tracing.GetTracer().Start(ctx, "batch.run")
	defer span.End()

	success := false
	defer func() {
		metrics.RecordBatchRun(success, o.now().Sub(start))
	}()

	if opts.JSONOnly {
		logger.Info("json-only run requested")
		if err := o.publisher.GenerateAll(ctx); err != nil {
			return stats, fmt.Errorf("Run: publish: %w", err)
		}
		success = true
		return stats, nil
	}

	collectStats, err := o.collector.Run(ctx)
	if err != nil {
		return stats, fmt.Errorf("Run: collect: %w", err)
	}
	logger.Info("collection finished",
		slog.Int("discovered", collectStats.Discovered),
		slog.Int("new", collectStats.New))

	refs, err := o.refRepo.Unprocessed(ctx, 0)
	if err != nil {
		return stats, fmt.Errorf("Run: load unprocessed references: %w", err)
	}

	refs = filterCategories(refs, opts.Categories)
	if opts.Limit > 0 && len(refs) > opts.Limit {
		refs = refs[:opts.Limit]
	}
	stats.References = len(refs)

	logger.Info("streaming pass starting",
		slog.Int("references", len(refs)),
		slog.Any("categories", opts.Categories))

	if err := o.streamReferences(ctx, logger, refs, opts, stats); err != nil {
		return stats, err
	}

	if err := o.publisher.GenerateAll(ctx); err != nil {
		return stats, fmt.Errorf("Run: publish: %w", err)
	}

	stats.Duration = o.now().Sub(start)
	success = true

	logger.Info("batch completed",
		slog.Int("references", stats.References),
		slog.Int("processed", stats.Processed),
		slog.Int("evaluated", stats.Evaluated),
		slog.Int("excluded", stats.Excluded),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

// streamReferences drives the per-reference loop in FIFO collection order.
// Fan-out above 1 is bounded and preserves start order; the default is
// strictly sequential.
func (o *Orchestrator) streamReferences(ctx context.Context, logger *slog.Logger, refs []*entity.ArticleReference, opts Options, stats *Stats) error {
	ctx, span := tracing.GetTracer().Start(ctx, "batch.stream")
	defer span.End()

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}

	if concurrency == 1 {
		for i, ref := range refs {
			if ctx.Err() != nil {
				return fmt.Errorf("streamReferences: %w", ctx.Err())
			}

			o.processReference(ctx, logger, ref, stats)
			stats.Processed++

			if (i+1)%progressInterval == 0 {
				logger.Info("progress checkpoint",
					slog.Int("processed", i+1),
					slog.Int("total", len(refs)),
					slog.Int("evaluated", stats.Evaluated))
			}

			if err := sleepCtx(ctx, o.settings.RequestDelay()); err != nil {
				return err
			}
		}
		return nil
	}

	// Bounded fan-out: starts stay in FIFO order, stats merge under a lock.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	recorder := newStatsRecorder(stats)
	for i, ref := range refs {
		ref := ref
		idx := i
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return egCtx.Err()
			}

			local := &Stats{}
			o.processReference(egCtx, logger, ref, local)
			recorder.merge(local)

			if (idx+1)%progressInterval == 0 {
				logger.Info("progress checkpoint",
					slog.Int("processed", idx+1),
					slog.Int("total", len(refs)))
			}

			return sleepCtx(egCtx, o.settings.RequestDelay())
		})
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("streamReferences: %w", err)
	}
	stats.Processed = stats.Evaluated + stats.Excluded + stats.Failed
	return nil
}

// processReference runs the per-item pipeline. Ordering per article: detail
// fetch → article persist → evaluation → discard body → evaluation persist
// → mark evaluated → mark processed. A failure in detail fetch, article
// persist, evaluation, evaluation persist or mark-processed leaves the
// reference unprocessed so the next run redoes just this item; the article
// and evaluation upserts make the redo idempotent. A mark-evaluated failure
// is only logged and the reference is still marked processed.
func (o *Orchestrator) processReference(ctx context.Context, logger *slog.Logger, ref *entity.ArticleReference, stats *Stats) {
	articleID := ref.ArticleID()

	detail, err := o.fetcher.Fetch(ctx, ref.URLName, ref.Key)
	if err != nil {
		if errors.Is(err, entity.ErrPermanentExclusion) {
			// Paid or unreadable: discard the record but settle the reference.
			metrics.RecordDetailFetch("excluded")
			metrics.RecordItemProcessed("excluded")
			if err := o.refRepo.MarkProcessed(ctx, ref.Key, ref.URLName); err != nil {
				logger.Error("failed to mark excluded reference processed",
					slog.String("article_id", articleID),
					slog.Any("error", err))
			}
			logger.Info("article excluded",
				slog.String("article_id", articleID))
			stats.Excluded++
			return
		}

		metrics.RecordDetailFetch("failure")
		metrics.RecordItemProcessed("failed")
		logger.Warn("detail fetch failed",
			slog.String("article_id", articleID),
			slog.Any("error", err))
		stats.Failed++
		return
	}
	metrics.RecordDetailFetch("success")

	article := o.buildArticle(ref, detail)
	if err := o.artRepo.Upsert(ctx, article); err != nil {
		// Storage failure: skip without marking processed so the item is
		// re-attempted next batch.
		metrics.RecordItemProcessed("failed")
		logger.Error("article persist failed",
			slog.String("article_id", articleID),
			slog.Any("error", err))
		stats.Failed++
		return
	}

	eval, err := o.evaluator.EvaluateWithContent(ctx, article, detail.ContentFull)

	// The full body is no longer needed regardless of the outcome.
	detail.ContentFull = ""

	if err != nil {
		metrics.RecordItemProcessed("failed")
		logger.Warn("evaluation failed",
			slog.String("article_id", articleID),
			slog.Any("error", err))
		stats.Failed++
		return
	}

	if _, err := o.evalRepo.Save(ctx, eval); err != nil {
		metrics.RecordItemProcessed("failed")
		logger.Error("evaluation persist failed",
			slog.String("article_id", articleID),
			slog.Any("error", err))
		stats.Failed++
		return
	}

	if err := o.artRepo.MarkEvaluated(ctx, articleID, o.now()); err != nil {
		logger.Error("failed to mark article evaluated",
			slog.String("article_id", articleID),
			slog.Any("error", err))
	}

	if err := o.refRepo.MarkProcessed(ctx, ref.Key, ref.URLName); err != nil {
		// The evaluation is committed; the next run will redo this item and
		// the upserts keep the stores unchanged.
		logger.Error("failed to mark reference processed",
			slog.String("article_id", articleID),
			slog.Any("error", err))
		stats.Failed++
		return
	}

	metrics.RecordItemProcessed("evaluated")
	logger.Info("article evaluated",
		slog.String("article_id", articleID),
		slog.Int("total_score", eval.TotalScore),
		slog.Bool("is_retry", eval.IsRetryEvaluation))
	stats.Evaluated++
}

// buildArticle merges the detail record with the reference metadata,
// preferring fetched values and falling back to discovery-time ones.
func (o *Orchestrator) buildArticle(ref *entity.ArticleReference, detail *entity.DetailRecord) *entity.Article {
	now := o.now()

	title := detail.Title
	if title == "" {
		title = ref.Title
	}
	author := detail.Author
	if author == "" {
		author = ref.Author
	}
	thumbnail := detail.Thumbnail
	if thumbnail == "" {
		thumbnail = ref.Thumbnail
	}
	publishedAt := detail.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = ref.PublishedAt
	}
	if publishedAt.IsZero() {
		publishedAt = now
	}
	collectedAt := ref.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = now
	}

	return &entity.Article{
		ID:             ref.ArticleID(),
		Title:          title,
		URL:            ref.ArticleURL(),
		Thumbnail:      thumbnail,
		PublishedAt:    publishedAt,
		Author:         author,
		ContentPreview: detail.ContentPreview,
		Category:       ref.Category,
		CollectedAt:    collectedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// filterCategories keeps references whose category is in the target list
// (empty list keeps everything).
func filterCategories(refs []*entity.ArticleReference, categories []string) []*entity.ArticleReference {
	if len(categories) == 0 {
		return refs
	}

	filtered := make([]*entity.ArticleReference, 0, len(refs))
	for _, ref := range refs {
		if slices.Contains(categories, ref.Category) {
			filtered = append(filtered, ref)
		}
	}
	return filtered
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
