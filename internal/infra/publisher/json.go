// Package publisher regenerates the static JSON artifacts consumed by the
// site front end: the article feed, the daily top five, metadata, category
// counts and score statistics, plus a dated archive copy.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"note-curator/internal/repository"
)

// Feed windows.
const (
	articlesWindowDays = 30
	topCount           = 5
	topBackfillDays    = 7
)

// JSON generates the feed files into both the working output directory and
// the published data directory.
type JSON struct {
	artRepo  repository.ArticleRepository
	evalRepo repository.EvaluationRepository
	refRepo  repository.ReferenceRepository

	outputDir string
	dataDir   string
	now       func() time.Time
}

// NewJSON creates a publisher writing into outputDir and dataDir.
func NewJSON(artRepo repository.ArticleRepository, evalRepo repository.EvaluationRepository, refRepo repository.ReferenceRepository, outputDir, dataDir string) *JSON {
	return &JSON{
		artRepo:   artRepo,
		evalRepo:  evalRepo,
		refRepo:   refRepo,
		outputDir: outputDir,
		dataDir:   dataDir,
		now:       time.Now,
	}
}

// articleJSON is one published article entry.
type articleJSON struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	URL                string    `json:"url"`
	Thumbnail          string    `json:"thumbnail,omitempty"`
	PublishedAt        time.Time `json:"published_at"`
	Author             string    `json:"author"`
	ContentPreview     string    `json:"content_preview,omitempty"`
	Category           string    `json:"category"`
	CollectedAt        time.Time `json:"collected_at"`
	QualityScore       int       `json:"quality_score"`
	OriginalityScore   int       `json:"originality_score"`
	EntertainmentScore int       `json:"entertainment_score"`
	TotalScore         int       `json:"total_score"`
	AISummary          string    `json:"ai_summary"`
	IsRetryEvaluation  bool      `json:"is_retry_evaluation,omitempty"`
	EvaluatedAt        time.Time `json:"evaluated_at"`
}

// GenerateAll regenerates every feed file. Individual file failures abort
// the publication: half-written feed sets confuse the static site deploy.
func (p *JSON) GenerateAll(ctx context.Context) error {
	logger := slog.Default()
	start := p.now()

	for _, dir := range []string{p.outputDir, p.dataDir, filepath.Join(p.dataDir, "archives")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("GenerateAll: %w", err)
		}
	}

	if err := p.generateArticles(ctx); err != nil {
		return fmt.Errorf("GenerateAll: %w", err)
	}
	if err := p.generateTop(ctx); err != nil {
		return fmt.Errorf("GenerateAll: %w", err)
	}
	if err := p.generateMeta(ctx); err != nil {
		return fmt.Errorf("GenerateAll: %w", err)
	}
	if err := p.generateCategories(ctx); err != nil {
		return fmt.Errorf("GenerateAll: %w", err)
	}
	if err := p.generateStatistics(ctx); err != nil {
		return fmt.Errorf("GenerateAll: %w", err)
	}

	logger.Info("feed files generated",
		slog.String("output_dir", p.outputDir),
		slog.String("data_dir", p.dataDir),
		slog.Duration("duration", p.now().Sub(start)))

	return nil
}

// generateArticles writes articles.json: the recent window deduplicated by
// URL, keeping the highest-scored candidate per URL.
func (p *JSON) generateArticles(ctx context.Context) error {
	rows, err := p.artRepo.WithEvaluations(ctx, 0, articlesWindowDays, 0)
	if err != nil {
		return fmt.Errorf("generateArticles: %w", err)
	}

	deduped := dedupeByURL(rows)
	if removed := len(rows) - len(deduped); removed > 0 {
		slog.Info("removed duplicate articles from feed",
			slog.Int("removed", removed))
	}

	entries := make([]articleJSON, 0, len(deduped))
	for _, row := range deduped {
		entries = append(entries, toArticleJSON(row))
	}

	payload := map[string]any{
		"lastUpdated": p.now().Format(time.RFC3339),
		"total":       len(entries),
		"articles":    entries,
	}

	if err := p.writeFeed("articles.json", payload); err != nil {
		return err
	}

	// Dated archive copy alongside the live feed.
	archiveName := filepath.Join("archives", fmt.Sprintf("articles_%s.json", p.now().Format("2006-01-02")))
	return p.writeFile(filepath.Join(p.dataDir, archiveName), payload)
}

// generateTop writes top5.json: today's best articles, backfilled from the
// last week when today has fewer than five.
func (p *JSON) generateTop(ctx context.Context) error {
	rows, err := p.artRepo.Top(ctx, topCount, 1)
	if err != nil {
		return fmt.Errorf("generateTop: %w", err)
	}

	if len(rows) < topCount {
		rows, err = p.artRepo.Top(ctx, topCount, topBackfillDays)
		if err != nil {
			return fmt.Errorf("generateTop: %w", err)
		}
	}

	rows = dedupeByURL(rows)
	if len(rows) > topCount {
		rows = rows[:topCount]
	}

	entries := make([]articleJSON, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toArticleJSON(row))
	}

	return p.writeFeed("top5.json", map[string]any{
		"lastUpdated": p.now().Format(time.RFC3339),
		"articles":    entries,
	})
}

// generateMeta writes meta.json with store counts.
func (p *JSON) generateMeta(ctx context.Context) error {
	articleCount, err := p.artRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("generateMeta: %w", err)
	}
	evaluatedCount, err := p.artRepo.EvaluatedCount(ctx)
	if err != nil {
		return fmt.Errorf("generateMeta: %w", err)
	}
	evaluationCount, err := p.evalRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("generateMeta: %w", err)
	}
	referenceCount, err := p.refRepo.Total(ctx)
	if err != nil {
		return fmt.Errorf("generateMeta: %w", err)
	}

	return p.writeFeed("meta.json", map[string]any{
		"lastUpdated":      p.now().Format(time.RFC3339),
		"article_count":    articleCount,
		"evaluated_count":  evaluatedCount,
		"evaluation_count": evaluationCount,
		"reference_count":  referenceCount,
	})
}

// generateCategories writes categories.json with per-category reference
// counts.
func (p *JSON) generateCategories(ctx context.Context) error {
	counts, err := p.refRepo.CountsByCategory(ctx)
	if err != nil {
		return fmt.Errorf("generateCategories: %w", err)
	}

	return p.writeFeed("categories.json", map[string]any{
		"lastUpdated": p.now().Format(time.RFC3339),
		"categories":  counts,
	})
}

// generateStatistics writes statistics.json with the score distribution.
func (p *JSON) generateStatistics(ctx context.Context) error {
	stats, err := p.evalRepo.Statistics(ctx, 0)
	if err != nil {
		return fmt.Errorf("generateStatistics: %w", err)
	}

	return p.writeFeed("statistics.json", map[string]any{
		"lastUpdated":                 p.now().Format(time.RFC3339),
		"total":                       stats.Total,
		"average_total_score":         stats.AverageTotalScore,
		"max_total_score":             stats.MaxTotalScore,
		"min_total_score":             stats.MinTotalScore,
		"average_quality_score":       stats.AverageQualityScore,
		"average_originality_score":   stats.AverageOriginalityScore,
		"average_entertainment_score": stats.AverageEntertainmentScore,
		"high_quality_count":          stats.HighQualityCount,
		"medium_quality_count":        stats.MediumQualityCount,
		"low_quality_count":           stats.LowQualityCount,
		"excellent_quality":           stats.ExcellentQuality,
		"excellent_originality":       stats.ExcellentOriginality,
		"excellent_entertainment":     stats.ExcellentEntertainment,
	})
}

// writeFeed writes the payload into both the output and data directories.
func (p *JSON) writeFeed(name string, payload any) error {
	for _, dir := range []string{p.outputDir, p.dataDir} {
		if err := p.writeFile(filepath.Join(dir, name), payload); err != nil {
			return err
		}
	}
	return nil
}

// writeFile atomically replaces path with the marshalled payload.
func (p *JSON) writeFile(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("writeFile: marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writeFile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writeFile: %w", err)
	}
	return nil
}

// dedupeByURL keeps the highest-scored candidate per article URL, preserving
// the incoming order of the winners.
func dedupeByURL(rows []repository.ArticleWithEvaluation) []repository.ArticleWithEvaluation {
	best := make(map[string]int, len(rows))
	result := make([]repository.ArticleWithEvaluation, 0, len(rows))

	for _, row := range rows {
		url := row.Article.URL
		if idx, seen := best[url]; seen {
			if row.TotalScore > result[idx].TotalScore {
				result[idx] = row
			}
			continue
		}
		best[url] = len(result)
		result = append(result, row)
	}

	return result
}

func toArticleJSON(row repository.ArticleWithEvaluation) articleJSON {
	return articleJSON{
		ID:                 row.Article.ID,
		Title:              row.Article.Title,
		URL:                row.Article.URL,
		Thumbnail:          row.Article.Thumbnail,
		PublishedAt:        row.Article.PublishedAt,
		Author:             row.Article.Author,
		ContentPreview:     row.Article.ContentPreview,
		Category:           row.Article.Category,
		CollectedAt:        row.Article.CollectedAt,
		QualityScore:       row.QualityScore,
		OriginalityScore:   row.OriginalityScore,
		EntertainmentScore: row.EntertainmentScore,
		TotalScore:         row.TotalScore,
		AISummary:          row.AISummary,
		IsRetryEvaluation:  row.IsRetryEvaluation,
		EvaluatedAt:        row.EvaluatedAt,
	}
}
