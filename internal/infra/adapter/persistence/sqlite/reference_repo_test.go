package sqlite_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"note-curator/internal/domain/entity"
	"note-curator/internal/infra/adapter/persistence/sqlite"
	"note-curator/internal/repository"
)

func testRef(key, urlname string) *entity.ArticleReference {
	return &entity.ArticleReference{
		Key:         key,
		URLName:     urlname,
		Category:    "game",
		Title:       "T",
		Author:      "A",
		Thumbnail:   "thumb.png",
		PublishedAt: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
		CollectedAt: time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestReferenceRepo_SaveMany(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	refs := []*entity.ArticleReference{testRef("aaa", "u1"), testRef("bbb", "u2")}
	for _, ref := range refs {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO article_references")).
			WithArgs(ref.Key, ref.URLName, ref.Category, ref.Title, ref.Author,
				ref.Thumbnail, ref.PublishedAt, ref.CollectedAt, ref.IsProcessed).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	repo := sqlite.NewReferenceRepo(db)
	saved, err := repo.SaveMany(context.Background(), refs)
	if err != nil {
		t.Fatalf("SaveMany err=%v", err)
	}
	if saved != 2 {
		t.Errorf("saved = %d, want 2", saved)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReferenceRepo_SaveMany_Empty(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := sqlite.NewReferenceRepo(db)
	saved, err := repo.SaveMany(context.Background(), nil)
	if err != nil {
		t.Fatalf("SaveMany err=%v", err)
	}
	if saved != 0 {
		t.Errorf("saved = %d, want 0", saved)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReferenceRepo_Unprocessed(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := testRef("aaa", "u1")
	rows := sqlmock.NewRows([]string{
		"key", "urlname", "category", "title", "author", "thumbnail",
		"published_at", "collected_at", "is_processed",
	}).AddRow(want.Key, want.URLName, want.Category, want.Title, want.Author,
		want.Thumbnail, want.PublishedAt, want.CollectedAt, false)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_processed = FALSE")).
		WithArgs(10).
		WillReturnRows(rows)

	repo := sqlite.NewReferenceRepo(db)
	got, err := repo.Unprocessed(context.Background(), 10)
	if err != nil {
		t.Fatalf("Unprocessed err=%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d refs, want 1", len(got))
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Fatalf("Unprocessed mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReferenceRepo_Unprocessed_NullMetadata(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{
		"key", "urlname", "category", "title", "author", "thumbnail",
		"published_at", "collected_at", "is_processed",
	}).AddRow("aaa", "u1", "game", nil, nil, nil, nil, time.Now(), false)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_processed = FALSE")).
		WillReturnRows(rows)

	repo := sqlite.NewReferenceRepo(db)
	got, err := repo.Unprocessed(context.Background(), 0)
	if err != nil {
		t.Fatalf("Unprocessed err=%v", err)
	}
	if got[0].Title != "" || !got[0].PublishedAt.IsZero() {
		t.Errorf("NULL columns should map to zero values, got %+v", got[0])
	}
}

func TestReferenceRepo_MarkProcessed(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("SET is_processed = TRUE")).
		WithArgs("aaa", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := sqlite.NewReferenceRepo(db)
	if err := repo.MarkProcessed(context.Background(), "aaa", "u1"); err != nil {
		t.Fatalf("MarkProcessed err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestReferenceRepo_ExistingKeys(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"key", "urlname"}).
		AddRow("aaa", "u1").
		AddRow("bbb", "u2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, urlname FROM article_references")).
		WillReturnRows(rows)

	repo := sqlite.NewReferenceRepo(db)
	keys, err := repo.ExistingKeys(context.Background())
	if err != nil {
		t.Fatalf("ExistingKeys err=%v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys = %d, want 2", len(keys))
	}
	if _, ok := keys[repository.CompositeKey{Key: "aaa", URLName: "u1"}]; !ok {
		t.Error("composite key aaa/u1 missing")
	}
}

func TestReferenceRepo_CountsByCategory(t *testing.T) {
	t.Parallel()

	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"category", "count"}).
		AddRow("game", int64(7)).
		AddRow("anime", int64(3))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY category")).WillReturnRows(rows)

	repo := sqlite.NewReferenceRepo(db)
	counts, err := repo.CountsByCategory(context.Background())
	if err != nil {
		t.Fatalf("CountsByCategory err=%v", err)
	}
	if counts["game"] != 7 || counts["anime"] != 3 {
		t.Errorf("counts = %v", counts)
	}
}
