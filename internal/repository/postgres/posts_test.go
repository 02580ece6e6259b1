package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/blog-platform/internal/core/domain"
	"github.com/arklim/blog-platform/internal/repository"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewPostRepository(mock)
}

func postRow(id string, version, views int64) *pgxmock.Rows {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(postColumns).
		AddRow(id, "author-1", "Title", "Content", nil, domain.PostStatusDraft, version, views, now, now, nil)
}

func TestPostRepository_Create(t *testing.T) {
	mock, repo := newMockRepo(t)

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO blog\.posts`).
		WithArgs("post-1", "author-1", "Title", "Content", nil, domain.PostStatusDraft, int64(1), int64(0), now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), domain.Post{
		ID:        "post-1",
		AuthorID:  "author-1",
		Title:     "Title",
		Content:   "Content",
		Status:    domain.PostStatusDraft,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostRepository_GetByID_NotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM blog\.posts`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing", false)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostRepository_GetByID_ExcludesDeletedByDefault(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM blog\.posts WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("post-1").
		WillReturnRows(postRow("post-1", 1, 0))

	post, err := repo.GetByID(context.Background(), "post-1", false)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if post.ID != "post-1" || post.Version != 1 {
		t.Fatalf("unexpected post: %+v", post)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostRepository_UpdateWithVersionCheck_Succeeds(t *testing.T) {
	mock, repo := newMockRepo(t)

	title := "New title"

	// Set order: version expr (no arg), updated_at, title; then the id and
	// version guards.
	mock.ExpectQuery(`UPDATE blog\.posts SET version = version \+ 1`).
		WithArgs(pgxmock.AnyArg(), title, "post-1", int64(1)).
		WillReturnRows(postRow("post-1", 2, 0))

	post, err := repo.UpdateWithVersionCheck(context.Background(), "post-1", domain.PostUpdate{
		Title:           &title,
		ExpectedVersion: 1,
	})
	if err != nil {
		t.Fatalf("UpdateWithVersionCheck returned error: %v", err)
	}
	if post.Version != 2 {
		t.Fatalf("expected version 2, got %d", post.Version)
	}
}

func TestPostRepository_UpdateWithVersionCheck_StaleVersion(t *testing.T) {
	mock, repo := newMockRepo(t)

	title := "stale"

	// The guarded update matches nothing; the follow-up read finds the row,
	// so the miss was a version mismatch.
	mock.ExpectQuery(`UPDATE blog\.posts SET version = version \+ 1`).
		WithArgs(pgxmock.AnyArg(), title, "post-1", int64(4)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT .+ FROM blog\.posts`).
		WithArgs("post-1").
		WillReturnRows(postRow("post-1", 5, 0))

	_, err := repo.UpdateWithVersionCheck(context.Background(), "post-1", domain.PostUpdate{
		Title:           &title,
		ExpectedVersion: 4,
	})
	if !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestPostRepository_UpdateWithVersionCheck_MissingRow(t *testing.T) {
	mock, repo := newMockRepo(t)

	title := "x"

	mock.ExpectQuery(`UPDATE blog\.posts SET version = version \+ 1`).
		WithArgs(pgxmock.AnyArg(), title, "gone", int64(1)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT .+ FROM blog\.posts`).
		WithArgs("gone").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateWithVersionCheck(context.Background(), "gone", domain.PostUpdate{
		Title:           &title,
		ExpectedVersion: 1,
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostRepository_UpdateViews_Overwrites(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(`UPDATE blog\.posts SET view_count = \$1`).
		WithArgs(int64(42), "post-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdateViews(context.Background(), "post-1", 42); err != nil {
		t.Fatalf("UpdateViews returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostRepository_UpdateViews_MissingRow(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(`UPDATE blog\.posts SET view_count = \$1`).
		WithArgs(int64(42), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateViews(context.Background(), "gone", 42)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostRepository_UpdateViews_RejectsNegative(t *testing.T) {
	_, repo := newMockRepo(t)

	if err := repo.UpdateViews(context.Background(), "post-1", -1); err == nil {
		t.Fatal("expected negative count to be rejected")
	}
}

func TestPostRepository_SoftDelete(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(`UPDATE blog\.posts SET deleted_at = \$1`).
		WithArgs(pgxmock.AnyArg(), "post-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SoftDelete(context.Background(), "post-1"); err != nil {
		t.Fatalf("SoftDelete returned error: %v", err)
	}
}

func TestPostRepository_InTx_RollsBackOnError(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.InTx(context.Background(), func(tx pgx.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostRepository_InTx_Commits(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE blog\.posts SET view_count = \$1`).
		WithArgs(int64(7), "post-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx pgx.Tx) error {
		return repo.WithTx(tx).UpdateViews(context.Background(), "post-1", 7)
	})
	if err != nil {
		t.Fatalf("InTx returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
