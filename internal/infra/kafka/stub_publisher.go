package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/blog-platform/internal/core/domain"
	"github.com/arklim/blog-platform/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, postID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("post_id", postID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishPostViewed logs blog.post.viewed events.
func (p *StubPublisher) PublishPostViewed(_ context.Context, event domain.PostViewedEvent) error {
	payload := map[string]any{
		"post_id":   event.PostID,
		"viewed_at": event.ViewedAt,
	}
	p.logEvent("blog.post.viewed", event.PostID, event.ViewedAt, payload)
	return nil
}

// PublishPostLiked logs blog.post.liked events.
func (p *StubPublisher) PublishPostLiked(_ context.Context, event domain.PostLikedEvent) error {
	payload := map[string]any{
		"post_id":  event.PostID,
		"user_id":  event.UserID,
		"delta":    event.Delta,
		"score":    event.Score,
		"liked_at": event.LikedAt,
	}
	p.logEvent("blog.post.liked", event.PostID, event.LikedAt, payload)
	return nil
}

// PublishPostUpdated logs blog.post.updated events.
func (p *StubPublisher) PublishPostUpdated(_ context.Context, event domain.PostUpdatedEvent) error {
	payload := map[string]any{
		"post_id":    event.PostID,
		"author_id":  event.AuthorID,
		"version":    event.Version,
		"status":     event.Status,
		"updated_at": event.UpdatedAt,
	}
	p.logEvent("blog.post.updated", event.PostID, event.UpdatedAt, payload)
	return nil
}

// PublishPostDeleted logs blog.post.deleted events.
func (p *StubPublisher) PublishPostDeleted(_ context.Context, event domain.PostDeletedEvent) error {
	payload := map[string]any{
		"post_id":    event.PostID,
		"author_id":  event.AuthorID,
		"deleted_at": event.DeletedAt,
	}
	p.logEvent("blog.post.deleted", event.PostID, event.DeletedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
