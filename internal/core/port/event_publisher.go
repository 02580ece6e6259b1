package port

import (
	"context"

	"github.com/arklim/blog-platform/internal/core/domain"
)

// EventPublisher emits best-effort change notifications for real-time
// subscribers. Publish failures are logged by callers and never propagated
// to the request path.
type EventPublisher interface {
	PublishPostViewed(ctx context.Context, event domain.PostViewedEvent) error
	PublishPostLiked(ctx context.Context, event domain.PostLikedEvent) error
	PublishPostUpdated(ctx context.Context, event domain.PostUpdatedEvent) error
	PublishPostDeleted(ctx context.Context, event domain.PostDeletedEvent) error
}
