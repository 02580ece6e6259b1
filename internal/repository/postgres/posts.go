package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/blog-platform/internal/core/domain"
	"github.com/arklim/blog-platform/internal/core/port"
	"github.com/arklim/blog-platform/internal/repository"
)

var postColumns = []string{
	"id",
	"author_id",
	"title",
	"content",
	"cover_image",
	"status",
	"version",
	"view_count",
	"created_at",
	"updated_at",
	"deleted_at",
}

// PostRepository implements port.PostRepository using PostgreSQL.
type PostRepository struct {
	pool    PgxPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPostRepository wires a PostgreSQL-backed post repository.
func NewPostRepository(pool PgxPool) *PostRepository {
	return &PostRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *PostRepository) WithTx(tx pgx.Tx) *PostRepository {
	if tx == nil {
		return r
	}
	return &PostRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// InTx begins a transaction, runs fn, and commits or rolls back.
func (r *PostRepository) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if r.pool == nil {
		return fmt.Errorf("pool is not configured")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Create inserts a new post row with version 1.
func (r *PostRepository) Create(ctx context.Context, post domain.Post) error {
	var coverValue any
	if post.CoverImage != nil && *post.CoverImage != "" {
		coverValue = *post.CoverImage
	}

	version := post.Version
	if version <= 0 {
		version = 1
	}

	query := r.builder.Insert("blog.posts").
		Columns(
			"id",
			"author_id",
			"title",
			"content",
			"cover_image",
			"status",
			"version",
			"view_count",
			"created_at",
			"updated_at",
		).
		Values(
			post.ID,
			post.AuthorID,
			post.Title,
			post.Content,
			coverValue,
			post.Status,
			version,
			post.ViewCount,
			post.CreatedAt,
			post.UpdatedAt,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert post sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

// GetByID retrieves a post by identifier.
func (r *PostRepository) GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.Post, error) {
	query := r.builder.
		Select(postColumns...).
		From("blog.posts").
		Where(squirrel.Eq{"id": id})

	if !includeDeleted {
		query = query.Where("deleted_at IS NULL")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select post sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	post, err := scanPost(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}

	return post, nil
}

// List returns non-deleted posts matching the filter, newest first.
func (r *PostRepository) List(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error) {
	query := r.builder.Select(postColumns...).
		From("blog.posts").
		Where("deleted_at IS NULL").
		OrderBy("created_at DESC")

	if filter.AuthorID != "" {
		query = query.Where(squirrel.Eq{"author_id": filter.AuthorID})
	}

	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list posts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	return posts, nil
}

// UpdateWithVersionCheck applies the update only when the stored version
// matches the expected one, bumping the version by exactly 1 in the same
// statement. A stale version yields repository.ErrVersionConflict; a missing
// row yields repository.ErrNotFound.
func (r *PostRepository) UpdateWithVersionCheck(ctx context.Context, id string, update domain.PostUpdate) (*domain.Post, error) {
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return nil, fmt.Errorf("post id is required")
	}
	if update.ExpectedVersion <= 0 {
		return nil, fmt.Errorf("expected version must be positive")
	}

	query := r.builder.Update("blog.posts").
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": trimmedID}).
		Where(squirrel.Eq{"version": update.ExpectedVersion}).
		Where("deleted_at IS NULL").
		Suffix("RETURNING " + strings.Join(postColumns, ", "))

	if update.Title != nil {
		query = query.Set("title", *update.Title)
	}
	if update.Content != nil {
		query = query.Set("content", *update.Content)
	}
	if update.CoverImage != nil {
		var coverValue any
		if *update.CoverImage != "" {
			coverValue = *update.CoverImage
		}
		query = query.Set("cover_image", coverValue)
	}
	if update.Status != nil {
		query = query.Set("status", *update.Status)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update post sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	post, err := scanPost(row)
	if err == nil {
		return post, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("scan updated post: %w", err)
	}

	// Zero rows: distinguish a stale version from a missing post.
	if _, getErr := r.GetByID(ctx, trimmedID, false); getErr != nil {
		return nil, getErr
	}
	return nil, repository.ErrVersionConflict
}

// UpdateViews overwrites the durable view counter with the cache value.
// This is an absolute assignment, not an increment, so repeated
// reconciliation runs are idempotent.
func (r *PostRepository) UpdateViews(ctx context.Context, id string, count int64) error {
	if count < 0 {
		return fmt.Errorf("count must be non-negative")
	}

	stmt, args, err := r.builder.Update("blog.posts").
		Set("view_count", count).
		Where(squirrel.Eq{"id": id}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update views sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update post views: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SoftDelete marks a post as logically removed; the row is retained.
func (r *PostRepository) SoftDelete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("blog.posts").
		Set("deleted_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete post sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("soft delete post: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var (
		post      domain.Post
		cover     sql.NullString
		deletedAt *time.Time
	)

	if err := row.Scan(
		&post.ID,
		&post.AuthorID,
		&post.Title,
		&post.Content,
		&cover,
		&post.Status,
		&post.Version,
		&post.ViewCount,
		&post.CreatedAt,
		&post.UpdatedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}

	if cover.Valid {
		val := cover.String
		post.CoverImage = &val
	}
	post.DeletedAt = deletedAt

	return &post, nil
}

var _ port.PostRepository = (*PostRepository)(nil)
var _ port.PostTx = (*PostRepository)(nil)
