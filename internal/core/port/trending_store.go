package port

import (
	"context"

	"github.com/arklim/blog-platform/internal/core/domain"
)

// TrendingStore maintains the like-delta ranking in a cache-native sorted set.
//
// The ranking is built purely from relative deltas; there is no cold-start
// rebuild from the durable store. A flushed cache resets trending to empty
// until like activity replays.
type TrendingStore interface {
	// AdjustScore atomically applies delta to the post's score and returns
	// the resulting score.
	AdjustScore(ctx context.Context, postID string, delta float64) (float64, error)
	// Top returns up to limit entries ordered by descending score. Tie order
	// follows the store's natural member ordering and is not guaranteed
	// stable.
	Top(ctx context.Context, limit int) ([]domain.TrendingEntry, error)
	// Remove drops the post from the ranking.
	Remove(ctx context.Context, postID string) error
}
