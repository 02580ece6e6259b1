package port

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/arklim/blog-platform/internal/core/domain"
)

// PostRepository persists posts in the durable store.
type PostRepository interface {
	// Create inserts a post with version 1.
	Create(ctx context.Context, post domain.Post) error
	// GetByID returns the post, including soft-deleted rows when
	// includeDeleted is set. Returns repository.ErrNotFound when absent.
	GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.Post, error)
	// List returns posts matching the filter, newest first.
	List(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error)
	// UpdateWithVersionCheck applies the update only when the stored version
	// equals update.ExpectedVersion, incrementing the version by exactly 1.
	// Returns repository.ErrVersionConflict when the check fails and
	// repository.ErrNotFound when the row does not exist.
	UpdateWithVersionCheck(ctx context.Context, id string, update domain.PostUpdate) (*domain.Post, error)
	// UpdateViews overwrites the durable view counter with the cache value.
	// A missing row is reported as repository.ErrNotFound, not an error the
	// reconciler should abort on.
	UpdateViews(ctx context.Context, id string, count int64) error
	// SoftDelete marks the post as logically removed; data is retained.
	SoftDelete(ctx context.Context, id string) error
}

// PostTx runs fn against a transaction-scoped repository view.
type PostTx interface {
	InTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}
