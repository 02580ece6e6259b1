package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/arklim/blog-platform/internal/core/port"
)

const defaultViewCounterPrefix = "blog:views:post"

// ViewCounterRepository holds per-post view counters in Redis. Counters have
// no expiry; they are flushed into PostgreSQL by the reconciliation job and
// removed only by explicit invalidation when content is deleted.
type ViewCounterRepository struct {
	client *redis.Client
	prefix string
}

// NewViewCounterRepository constructs a Redis-backed view counter store.
func NewViewCounterRepository(client *redis.Client, keyPrefix string) *ViewCounterRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultViewCounterPrefix
	}
	return &ViewCounterRepository{client: client, prefix: prefix}
}

// Increment atomically bumps the counter and returns the new value.
func (r *ViewCounterRepository) Increment(ctx context.Context, postID string) (int64, error) {
	key := r.key(postID)
	if key == "" {
		return 0, fmt.Errorf("post id is required")
	}

	value, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr view counter: %w", err)
	}
	return value, nil
}

// Get fetches the cached counter value; the boolean is false on cache miss.
func (r *ViewCounterRepository) Get(ctx context.Context, postID string) (int64, bool, error) {
	key := r.key(postID)
	if key == "" {
		return 0, false, fmt.Errorf("post id is required")
	}

	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis get view counter: %w", err)
	}

	parsed, parseErr := strconv.ParseInt(value, 10, 64)
	if parseErr != nil {
		return 0, false, fmt.Errorf("parse cached view counter: %w", parseErr)
	}
	return parsed, true, nil
}

// Set seeds the counter with an absolute value from the durable store.
func (r *ViewCounterRepository) Set(ctx context.Context, postID string, count int64) error {
	key := r.key(postID)
	if key == "" {
		return fmt.Errorf("post id is required")
	}
	if count < 0 {
		return fmt.Errorf("count must be non-negative")
	}

	if err := r.client.Set(ctx, key, strconv.FormatInt(count, 10), 0).Err(); err != nil {
		return fmt.Errorf("redis set view counter: %w", err)
	}
	return nil
}

// Scan enumerates the post identifiers of every counter key currently held.
func (r *ViewCounterRepository) Scan(ctx context.Context) ([]string, error) {
	pattern := fmt.Sprintf("%s:*", r.prefix)

	postIDs := make([]string, 0)
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan view counters: %w", err)
		}

		for _, key := range keys {
			postID := strings.TrimPrefix(key, r.prefix+":")
			if postID == "" || postID == key {
				continue
			}
			postIDs = append(postIDs, postID)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return postIDs, nil
}

// GetMany batch-reads counters in a single pipelined round trip. Keys that
// are missing or hold non-integer values are absent from the result.
func (r *ViewCounterRepository) GetMany(ctx context.Context, postIDs []string) (map[string]int64, error) {
	if len(postIDs) == 0 {
		return map[string]int64{}, nil
	}

	keys := make([]string, 0, len(postIDs))
	for _, postID := range postIDs {
		keys = append(keys, r.key(postID))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget view counters: %w", err)
	}

	counts := make(map[string]int64, len(postIDs))
	for i, raw := range values {
		if raw == nil {
			continue
		}
		str, ok := raw.(string)
		if !ok {
			continue
		}
		parsed, parseErr := strconv.ParseInt(str, 10, 64)
		if parseErr != nil {
			continue
		}
		counts[postIDs[i]] = parsed
	}

	return counts, nil
}

// Invalidate removes counters matching an exact post identifier or a
// trailing-* glob pattern.
func (r *ViewCounterRepository) Invalidate(ctx context.Context, pattern string) error {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return fmt.Errorf("pattern is required")
	}

	if !strings.ContainsAny(trimmed, "*?[") {
		if err := r.client.Del(ctx, r.key(trimmed)).Err(); err != nil {
			return fmt.Errorf("redis delete view counter: %w", err)
		}
		return nil
	}

	fullPattern := fmt.Sprintf("%s:%s", r.prefix, trimmed)
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, fullPattern, 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan for invalidation: %w", err)
		}

		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete matched counters: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return nil
}

func (r *ViewCounterRepository) key(postID string) string {
	trimmed := strings.TrimSpace(postID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.CounterCache = (*ViewCounterRepository)(nil)
