package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/blog-platform/internal/core/domain"
	"github.com/arklim/blog-platform/internal/core/port"
)

var (
	// ErrAuthorRequired indicates the author identifier is missing.
	ErrAuthorRequired = errors.New("author id is required")
	// ErrTitleRequired indicates a post cannot be created without a title.
	ErrTitleRequired = errors.New("title is required")
	// ErrNotOwner indicates the caller does not own the post.
	ErrNotOwner = errors.New("post belongs to another author")
)

// PostInput carries the fields of a create request.
type PostInput struct {
	Title      string
	Content    string
	CoverImage *string
	Status     domain.PostStatus
}

// PostService owns the versioned document lifecycle. PostgreSQL is the sole
// source of truth; every successful update bumps the version by exactly 1
// and a stale version is rejected with repository.ErrVersionConflict.
type PostService struct {
	posts   port.PostRepository
	counter *CounterService
	events  port.EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewPostService constructs the post service.
func NewPostService(posts port.PostRepository, counter *CounterService, events port.EventPublisher) *PostService {
	return &PostService{
		posts:   posts,
		counter: counter,
		events:  events,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
}

// WithLogger attaches a structured logger to the service.
func (s *PostService) WithLogger(logger *zap.Logger) *PostService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock, primarily for deterministic testing.
func (s *PostService) WithNow(now func() time.Time) *PostService {
	if now != nil {
		s.now = now
	}
	return s
}

// Create inserts a new post at version 1.
func (s *PostService) Create(ctx context.Context, authorID string, input PostInput) (*domain.Post, error) {
	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return nil, ErrAuthorRequired
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrTitleRequired
	}

	status := input.Status
	if status == "" {
		status = domain.PostStatusDraft
	}

	now := s.now().UTC()
	post := domain.Post{
		ID:         uuid.NewString(),
		AuthorID:   authorID,
		Title:      input.Title,
		Content:    input.Content,
		CoverImage: input.CoverImage,
		Status:     status,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	return &post, nil
}

// Get returns a post by identifier; soft-deleted posts are not visible.
func (s *PostService) Get(ctx context.Context, id string) (*domain.Post, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrPostIDRequired
	}
	return s.posts.GetByID(ctx, id, false)
}

// List returns posts for the dashboard, newest first.
func (s *PostService) List(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error) {
	return s.posts.List(ctx, filter)
}

// Update applies an optimistic-concurrency save. The stored version must
// match update.ExpectedVersion; on success the returned post carries the new
// version the client must adopt before its next save.
func (s *PostService) Update(ctx context.Context, id, authorID string, update domain.PostUpdate) (*domain.Post, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrPostIDRequired
	}

	current, err := s.posts.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if current.AuthorID != authorID {
		return nil, ErrNotOwner
	}

	updated, err := s.posts.UpdateWithVersionCheck(ctx, id, update)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		event := domain.PostUpdatedEvent{
			EventID:   uuid.NewString(),
			PostID:    updated.ID,
			AuthorID:  updated.AuthorID,
			Version:   updated.Version,
			Status:    updated.Status,
			UpdatedAt: updated.UpdatedAt,
		}
		if err := s.events.PublishPostUpdated(ctx, event); err != nil {
			s.logger.Warn("failed to publish post updated event", zap.String("post_id", updated.ID), zap.Error(err))
		}
	}

	return updated, nil
}

// SoftDelete logically removes a post, then clears its cache state and
// notifies subscribers. Cache and event failures are best-effort and never
// undo the durable delete.
func (s *PostService) SoftDelete(ctx context.Context, id, authorID string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrPostIDRequired
	}

	current, err := s.posts.GetByID(ctx, id, false)
	if err != nil {
		return err
	}
	if current.AuthorID != authorID {
		return ErrNotOwner
	}

	if err := s.posts.SoftDelete(ctx, id); err != nil {
		return err
	}

	if s.counter != nil {
		s.counter.InvalidatePost(ctx, id)
	}

	if s.events != nil {
		event := domain.PostDeletedEvent{
			EventID:   uuid.NewString(),
			PostID:    id,
			AuthorID:  authorID,
			DeletedAt: s.now().UTC(),
		}
		if err := s.events.PublishPostDeleted(ctx, event); err != nil {
			s.logger.Warn("failed to publish post deleted event", zap.String("post_id", id), zap.Error(err))
		}
	}

	return nil
}

// ViewCount resolves the live view count for a post: the cache is read
// first, and on a miss the durable value seeds the cache so subsequent
// increments continue from it.
func (s *PostService) ViewCount(ctx context.Context, id string) (int64, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, ErrPostIDRequired
	}

	if s.counter != nil {
		if count, found := s.counter.GetViewCount(ctx, id); found {
			return count, nil
		}
	}

	post, err := s.posts.GetByID(ctx, id, false)
	if err != nil {
		return 0, err
	}

	if s.counter != nil {
		s.counter.SeedViewCount(ctx, id, post.ViewCount)
	}

	return post.ViewCount, nil
}
