package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/arklim/blog-platform/internal/core/domain"
	"github.com/arklim/blog-platform/internal/core/port"
)

const defaultTrendingKey = "blog:trending:posts"

// TrendingRepository ranks posts by like-count delta in a Redis sorted set.
// Scores are only ever moved by relative deltas; there is no rebuild from
// the durable store, so a flushed cache resets the ranking to empty.
type TrendingRepository struct {
	client *redis.Client
	key    string
}

// NewTrendingRepository constructs a Redis-backed trending store.
func NewTrendingRepository(client *redis.Client, key string) *TrendingRepository {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		trimmed = defaultTrendingKey
	}
	return &TrendingRepository{client: client, key: trimmed}
}

// AdjustScore atomically applies delta and returns the resulting score.
func (r *TrendingRepository) AdjustScore(ctx context.Context, postID string, delta float64) (float64, error) {
	trimmed := strings.TrimSpace(postID)
	if trimmed == "" {
		return 0, fmt.Errorf("post id is required")
	}

	score, err := r.client.ZIncrBy(ctx, r.key, delta, trimmed).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zincrby trending: %w", err)
	}
	return score, nil
}

// Top returns up to limit entries by descending score. Ties follow Redis
// member ordering, which is not guaranteed stable across calls.
func (r *TrendingRepository) Top(ctx context.Context, limit int) ([]domain.TrendingEntry, error) {
	if limit <= 0 {
		return []domain.TrendingEntry{}, nil
	}

	members, err := r.client.ZRevRangeWithScores(ctx, r.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange trending: %w", err)
	}

	entries := make([]domain.TrendingEntry, 0, len(members))
	for _, member := range members {
		postID, ok := member.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, domain.TrendingEntry{PostID: postID, Score: member.Score})
	}

	return entries, nil
}

// Remove drops the post from the ranking; removing an absent member is a no-op.
func (r *TrendingRepository) Remove(ctx context.Context, postID string) error {
	trimmed := strings.TrimSpace(postID)
	if trimmed == "" {
		return fmt.Errorf("post id is required")
	}

	if err := r.client.ZRem(ctx, r.key, trimmed).Err(); err != nil {
		return fmt.Errorf("redis zrem trending: %w", err)
	}
	return nil
}

var _ port.TrendingStore = (*TrendingRepository)(nil)
