package sqlite_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"note-curator/internal/domain/entity"
	"note-curator/internal/infra/adapter/persistence/sqlite"
)

func testArticle() *entity.Article {
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	return &entity.Article{
		ID:             "abc_u",
		Title:          "T",
		URL:            "https://note.com/u/n/abc",
		Thumbnail:      "thumb.png",
		PublishedAt:    now.Add(-time.Hour),
		Author:         "A",
		ContentPreview: "preview text",
		Category:       "game",
		CollectedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func articleRows(a *entity.Article) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "url", "thumbnail", "published_at", "author",
		"content_preview", "category", "collected_at", "is_evaluated",
		"created_at", "updated_at",
	}).AddRow(a.ID, a.Title, a.URL, a.Thumbnail, a.PublishedAt, a.Author,
		a.ContentPreview, a.Category, a.CollectedAt, a.IsEvaluated,
		a.CreatedAt, a.UpdatedAt)
}

func TestArticleRepo_Upsert(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	a := testArticle()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO articles")).
		WithArgs(a.ID, a.Title, a.URL, a.Thumbnail, a.PublishedAt, a.Author,
			a.ContentPreview, a.Category, a.CollectedAt, a.IsEvaluated,
			a.CreatedAt, a.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := sqlite.NewArticleRepo(db)
	if err := repo.Upsert(context.Background(), a); err != nil {
		t.Fatalf("Upsert err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_Get(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := testArticle()
	mock.ExpectQuery(regexp.QuoteMeta("FROM articles WHERE id = ?")).
		WithArgs("abc_u").
		WillReturnRows(articleRows(want))

	repo := sqlite.NewArticleRepo(db)
	got, err := repo.Get(context.Background(), "abc_u")
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestArticleRepo_Get_NotFound(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("FROM articles WHERE id = ?")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := sqlite.NewArticleRepo(db)
	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestArticleRepo_MarkEvaluated(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("SET is_evaluated = TRUE")).
		WithArgs(at, "abc_u").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := sqlite.NewArticleRepo(db)
	if err := repo.MarkEvaluated(context.Background(), "abc_u", at); err != nil {
		t.Fatalf("MarkEvaluated err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestArticleRepo_WithEvaluations(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	a := testArticle()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "title", "url", "thumbnail", "published_at", "author",
		"content_preview", "category", "collected_at", "is_evaluated",
		"created_at", "updated_at",
		"quality_score", "originality_score", "entertainment_score",
		"total_score", "ai_summary", "is_retry_evaluation", "evaluated_at",
	}).AddRow(a.ID, a.Title, a.URL, a.Thumbnail, a.PublishedAt, a.Author,
		a.ContentPreview, a.Category, a.CollectedAt, a.IsEvaluated,
		a.CreatedAt, a.UpdatedAt,
		30, 20, 20, 70, "sixteen-char text here.", false, now)

	mock.ExpectQuery(regexp.QuoteMeta("INNER JOIN evaluations")).
		WithArgs(0).
		WillReturnRows(rows)

	repo := sqlite.NewArticleRepo(db)
	result, err := repo.WithEvaluations(context.Background(), 0, 0, 0)
	if err != nil {
		t.Fatalf("WithEvaluations err=%v", err)
	}
	if len(result) != 1 {
		t.Fatalf("result = %d rows, want 1", len(result))
	}
	if result[0].TotalScore != 70 || result[0].Article.ID != "abc_u" {
		t.Errorf("row = %+v", result[0])
	}
}

func TestArticleRepo_Exists(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM articles")).
		WithArgs("abc_u").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM articles")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	repo := sqlite.NewArticleRepo(db)

	exists, err := repo.Exists(context.Background(), "abc_u")
	if err != nil || !exists {
		t.Errorf("Exists(abc_u) = (%v, %v), want (true, nil)", exists, err)
	}
	exists, err = repo.Exists(context.Background(), "nope")
	if err != nil || exists {
		t.Errorf("Exists(nope) = (%v, %v), want (false, nil)", exists, err)
	}
}
