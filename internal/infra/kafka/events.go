package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/arklim/blog-platform/internal/core/domain"
	"github.com/arklim/blog-platform/internal/core/port"
	"github.com/arklim/blog-platform/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	PostID    string           `json:"post_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, postID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		PostID:    postID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(postID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishPostViewed publishes blog.post.viewed events.
func (p *EventPublisher) PublishPostViewed(ctx context.Context, event domain.PostViewedEvent) error {
	payload := struct {
		PostID   string    `json:"post_id"`
		ViewedAt time.Time `json:"viewed_at"`
	}{
		PostID:   event.PostID,
		ViewedAt: event.ViewedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "blog.post.viewed", event.PostID, event.ViewedAt, payload)
}

// PublishPostLiked publishes blog.post.liked events.
func (p *EventPublisher) PublishPostLiked(ctx context.Context, event domain.PostLikedEvent) error {
	payload := struct {
		PostID  string    `json:"post_id"`
		UserID  string    `json:"user_id"`
		Delta   int       `json:"delta"`
		Score   float64   `json:"score"`
		LikedAt time.Time `json:"liked_at"`
	}{
		PostID:  event.PostID,
		UserID:  event.UserID,
		Delta:   event.Delta,
		Score:   event.Score,
		LikedAt: event.LikedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "blog.post.liked", event.PostID, event.LikedAt, payload)
}

// PublishPostUpdated publishes blog.post.updated events.
func (p *EventPublisher) PublishPostUpdated(ctx context.Context, event domain.PostUpdatedEvent) error {
	payload := struct {
		PostID    string            `json:"post_id"`
		AuthorID  string            `json:"author_id"`
		Version   int64             `json:"version"`
		Status    domain.PostStatus `json:"status"`
		UpdatedAt time.Time         `json:"updated_at"`
	}{
		PostID:    event.PostID,
		AuthorID:  event.AuthorID,
		Version:   event.Version,
		Status:    event.Status,
		UpdatedAt: event.UpdatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "blog.post.updated", event.PostID, event.UpdatedAt, payload)
}

// PublishPostDeleted publishes blog.post.deleted events.
func (p *EventPublisher) PublishPostDeleted(ctx context.Context, event domain.PostDeletedEvent) error {
	payload := struct {
		PostID    string    `json:"post_id"`
		AuthorID  string    `json:"author_id"`
		DeletedAt time.Time `json:"deleted_at"`
	}{
		PostID:    event.PostID,
		AuthorID:  event.AuthorID,
		DeletedAt: event.DeletedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "blog.post.deleted", event.PostID, event.DeletedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
