package publisher

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-curator/internal/domain/entity"
	"note-curator/internal/repository"
)

type fakeArtRepo struct {
	rows []repository.ArticleWithEvaluation
}

func (f *fakeArtRepo) Upsert(context.Context, *entity.Article) error { return nil }
func (f *fakeArtRepo) Get(context.Context, string) (*entity.Article, error) {
	return nil, entity.ErrNotFound
}
func (f *fakeArtRepo) Exists(context.Context, string) (bool, error)         { return false, nil }
func (f *fakeArtRepo) MarkEvaluated(context.Context, string, time.Time) error { return nil }
func (f *fakeArtRepo) Recent(context.Context, int, int) ([]*entity.Article, error) {
	return nil, nil
}
func (f *fakeArtRepo) ByCategory(context.Context, string, int) ([]*entity.Article, error) {
	return nil, nil
}
func (f *fakeArtRepo) WithEvaluations(context.Context, int, int, int) ([]repository.ArticleWithEvaluation, error) {
	return f.rows, nil
}
func (f *fakeArtRepo) Top(_ context.Context, limit, _ int) ([]repository.ArticleWithEvaluation, error) {
	if limit > 0 && len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}
func (f *fakeArtRepo) Count(context.Context) (int64, error)          { return int64(len(f.rows)), nil }
func (f *fakeArtRepo) EvaluatedCount(context.Context) (int64, error) { return int64(len(f.rows)), nil }

type fakeEvalRepo struct{}

func (fakeEvalRepo) Save(context.Context, *entity.Evaluation) (int64, error) { return 0, nil }
func (fakeEvalRepo) LatestByArticleID(context.Context, string) (*entity.Evaluation, error) {
	return nil, entity.ErrNotFound
}
func (fakeEvalRepo) Recent(context.Context, int, int) ([]*entity.Evaluation, error) {
	return nil, nil
}
func (fakeEvalRepo) Statistics(context.Context, int) (*repository.EvaluationStatistics, error) {
	return &repository.EvaluationStatistics{Total: 2, AverageTotalScore: 60, MaxTotalScore: 70, MinTotalScore: 50}, nil
}
func (fakeEvalRepo) Count(context.Context) (int64, error) { return 2, nil }

type fakeRefRepo struct{}

func (fakeRefRepo) SaveMany(context.Context, []*entity.ArticleReference) (int, error) { return 0, nil }
func (fakeRefRepo) ExistingKeys(context.Context) (map[repository.CompositeKey]struct{}, error) {
	return nil, nil
}
func (fakeRefRepo) Unprocessed(context.Context, int) ([]*entity.ArticleReference, error) {
	return nil, nil
}
func (fakeRefRepo) MarkProcessed(context.Context, string, string) error { return nil }
func (fakeRefRepo) CountsByCategory(context.Context) (map[string]int64, error) {
	return map[string]int64{"game": 2}, nil
}
func (fakeRefRepo) Total(context.Context) (int64, error) { return 2, nil }

func row(id, url string, total int) repository.ArticleWithEvaluation {
	return repository.ArticleWithEvaluation{
		Article: &entity.Article{
			ID:          id,
			Title:       "T-" + id,
			URL:         url,
			PublishedAt: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
			Author:      "A",
			Category:    "game",
			CollectedAt: time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
		},
		QualityScore:       total - 35,
		OriginalityScore:   20,
		EntertainmentScore: 15,
		TotalScore:         total,
		AISummary:          "summary for " + id,
		EvaluatedAt:        time.Date(2025, 7, 1, 11, 0, 0, 0, time.UTC),
	}
}

func TestJSON_GenerateAll_WritesAllFeeds(t *testing.T) {
	t.Parallel()

	outputDir := t.TempDir()
	dataDir := t.TempDir()

	arts := &fakeArtRepo{rows: []repository.ArticleWithEvaluation{
		row("a_u", "https://note.com/u/n/a", 70),
		row("b_v", "https://note.com/v/n/b", 50),
	}}

	p := NewJSON(arts, fakeEvalRepo{}, fakeRefRepo{}, outputDir, dataDir)
	require.NoError(t, p.GenerateAll(context.Background()))

	for _, name := range []string{"articles.json", "top5.json", "meta.json", "categories.json", "statistics.json"} {
		for _, dir := range []string{outputDir, dataDir} {
			assert.FileExists(t, filepath.Join(dir, name))
		}
	}

	// Archive copy carries today's date.
	archives, err := os.ReadDir(filepath.Join(dataDir, "archives"))
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Contains(t, archives[0].Name(), "articles_")

	// articles.json carries both entries with totals.
	var feed struct {
		Total    int `json:"total"`
		Articles []struct {
			ID         string `json:"id"`
			TotalScore int    `json:"total_score"`
		} `json:"articles"`
	}
	data, err := os.ReadFile(filepath.Join(dataDir, "articles.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &feed))
	assert.Equal(t, 2, feed.Total)
}

func TestJSON_GenerateAll_DeduplicatesByURLKeepingHighest(t *testing.T) {
	t.Parallel()

	outputDir := t.TempDir()
	dataDir := t.TempDir()

	// Two candidates for the same URL: the higher-scored one must win.
	arts := &fakeArtRepo{rows: []repository.ArticleWithEvaluation{
		row("low_u", "https://note.com/u/n/same", 50),
		row("high_u", "https://note.com/u/n/same", 85),
		row("other_v", "https://note.com/v/n/other", 60),
	}}

	p := NewJSON(arts, fakeEvalRepo{}, fakeRefRepo{}, outputDir, dataDir)
	require.NoError(t, p.GenerateAll(context.Background()))

	var feed struct {
		Total    int `json:"total"`
		Articles []struct {
			ID         string `json:"id"`
			URL        string `json:"url"`
			TotalScore int    `json:"total_score"`
		} `json:"articles"`
	}
	data, err := os.ReadFile(filepath.Join(outputDir, "articles.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &feed))

	require.Equal(t, 2, feed.Total)
	byURL := map[string]int{}
	for _, a := range feed.Articles {
		byURL[a.URL] = a.TotalScore
	}
	assert.Equal(t, 85, byURL["https://note.com/u/n/same"])
}

func TestDedupeByURL(t *testing.T) {
	t.Parallel()

	rows := []repository.ArticleWithEvaluation{
		row("a", "u1", 50),
		row("b", "u1", 80),
		row("c", "u2", 40),
		row("d", "u1", 60),
	}

	got := dedupeByURL(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Article.ID)
	assert.Equal(t, 80, got[0].TotalScore)
	assert.Equal(t, "c", got[1].Article.ID)
}
