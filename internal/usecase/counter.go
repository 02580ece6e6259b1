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
	// ErrPostIDRequired indicates the post identifier is missing.
	ErrPostIDRequired = errors.New("post id is required")
)

// CounterMetrics captures telemetry hooks for the counter/cache fast path.
type CounterMetrics interface {
	IncViewIncrement()
	IncCacheError()
	IncCacheSeed()
	IncRateLimitFailOpen()
}

// CounterService fronts the cache store for view counts, trending rankings,
// and sliding-window rate limits. The cache is an optimization, never the
// system of record: every cache failure here degrades the answer and is
// logged, but no caller-visible request is aborted because of one.
type CounterService struct {
	cache     port.CounterCache
	trending  port.TrendingStore
	rateLimit port.RateLimitStore
	events    port.EventPublisher
	logger    *zap.Logger
	metrics   CounterMetrics
	now       func() time.Time
}

// NewCounterService constructs the counter/cache service.
func NewCounterService(cache port.CounterCache, trending port.TrendingStore, rateLimit port.RateLimitStore, events port.EventPublisher) *CounterService {
	return &CounterService{
		cache:     cache,
		trending:  trending,
		rateLimit: rateLimit,
		events:    events,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
}

// WithLogger attaches a structured logger to the service.
func (s *CounterService) WithLogger(logger *zap.Logger) *CounterService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithMetrics wires telemetry observers for counter operations.
func (s *CounterService) WithMetrics(metrics CounterMetrics) *CounterService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithNow overrides the clock, primarily for deterministic testing.
func (s *CounterService) WithNow(now func() time.Time) *CounterService {
	if now != nil {
		s.now = now
	}
	return s
}

// IncrementView bumps the cached view counter. Views are best-effort: any
// cache failure is logged and swallowed so the page request never fails on
// account of its own counter.
func (s *CounterService) IncrementView(ctx context.Context, postID string) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return
	}

	if _, err := s.cache.Increment(ctx, postID); err != nil {
		s.logger.Warn("view counter increment failed", zap.String("post_id", postID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.IncCacheError()
		}
		return
	}

	if s.metrics != nil {
		s.metrics.IncViewIncrement()
	}

	if s.events != nil {
		event := domain.PostViewedEvent{
			EventID:  uuid.NewString(),
			PostID:   postID,
			ViewedAt: s.now().UTC(),
		}
		if err := s.events.PublishPostViewed(ctx, event); err != nil {
			s.logger.Warn("failed to publish post viewed event", zap.String("post_id", postID), zap.Error(err))
		}
	}
}

// GetViewCount returns the cached counter value. The boolean is false when
// no cached value exists (or the cache is unreachable); the caller decides
// whether to seed it from the durable value.
func (s *CounterService) GetViewCount(ctx context.Context, postID string) (int64, bool) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return 0, false
	}

	count, found, err := s.cache.Get(ctx, postID)
	if err != nil {
		s.logger.Warn("view counter read failed", zap.String("post_id", postID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.IncCacheError()
		}
		return 0, false
	}

	return count, found
}

// SeedViewCount installs the durable counter value into the cache after a
// cold-start miss. Failures are logged and swallowed; the next read simply
// misses again.
func (s *CounterService) SeedViewCount(ctx context.Context, postID string, count int64) {
	postID = strings.TrimSpace(postID)
	if postID == "" || count < 0 {
		return
	}

	if err := s.cache.Set(ctx, postID, count); err != nil {
		s.logger.Warn("view counter seed failed", zap.String("post_id", postID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.IncCacheError()
		}
		return
	}

	if s.metrics != nil {
		s.metrics.IncCacheSeed()
	}
}

// GetTrending returns up to limit posts by descending like-delta score. A
// cache failure degrades to an empty ranking rather than an error.
func (s *CounterService) GetTrending(ctx context.Context, limit int) []domain.TrendingEntry {
	if limit <= 0 {
		return []domain.TrendingEntry{}
	}

	entries, err := s.trending.Top(ctx, limit)
	if err != nil {
		s.logger.Warn("trending query failed", zap.Int("limit", limit), zap.Error(err))
		if s.metrics != nil {
			s.metrics.IncCacheError()
		}
		return []domain.TrendingEntry{}
	}

	return entries
}

// AdjustTrendingScore atomically applies delta (+1 like, -1 unlike) to the
// post's trending score and returns the new score. A liked event is
// published best-effort on success.
func (s *CounterService) AdjustTrendingScore(ctx context.Context, postID, userID string, delta int) (float64, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return 0, ErrPostIDRequired
	}

	score, err := s.trending.AdjustScore(ctx, postID, float64(delta))
	if err != nil {
		return 0, err
	}

	if s.events != nil {
		event := domain.PostLikedEvent{
			EventID: uuid.NewString(),
			PostID:  postID,
			UserID:  userID,
			Delta:   delta,
			Score:   score,
			LikedAt: s.now().UTC(),
		}
		if err := s.events.PublishPostLiked(ctx, event); err != nil {
			s.logger.Warn("failed to publish post liked event", zap.String("post_id", postID), zap.Error(err))
		}
	}

	return score, nil
}

// CheckRateLimit evaluates the sliding window for subject. On any store
// error the check fails open: the primary feature stays available even when
// the quota store is not.
func (s *CounterService) CheckRateLimit(ctx context.Context, subject string, limit int, window time.Duration) domain.RateLimitDecision {
	now := s.now()
	failOpen := domain.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit,
		ResetAt:   now.Add(window),
	}

	if s.rateLimit == nil || limit <= 0 || window <= 0 {
		return failOpen
	}

	if err := s.rateLimit.TrimWindow(ctx, subject, window, now); err != nil {
		return s.rateLimitFailOpen(subject, failOpen, err)
	}

	count, err := s.rateLimit.CountAttempts(ctx, subject, window, now)
	if err != nil {
		return s.rateLimitFailOpen(subject, failOpen, err)
	}

	resetAt := now.Add(window)
	if oldest, ok, err := s.rateLimit.OldestAttempt(ctx, subject, window, now); err == nil && ok {
		resetAt = oldest.Add(window)
	}

	if count >= limit {
		return domain.RateLimitDecision{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   resetAt,
		}
	}

	if err := s.rateLimit.RecordAttempt(ctx, subject, now); err != nil {
		return s.rateLimitFailOpen(subject, failOpen, err)
	}

	remaining := limit - count - 1
	if remaining < 0 {
		remaining = 0
	}

	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

func (s *CounterService) rateLimitFailOpen(subject string, decision domain.RateLimitDecision, err error) domain.RateLimitDecision {
	s.logger.Warn("rate limit check failed open", zap.String("subject", subject), zap.Error(err))
	if s.metrics != nil {
		s.metrics.IncRateLimitFailOpen()
	}
	return decision
}

// Invalidate removes cached counters matching an exact key or trailing-*
// pattern. Invalidation failures must not break the primary write path, so
// errors are logged and swallowed.
func (s *CounterService) Invalidate(ctx context.Context, pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return
	}

	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		if s.metrics != nil {
			s.metrics.IncCacheError()
		}
	}
}

// InvalidatePost clears all cache state tied to a deleted post: its view
// counter and its trending entry.
func (s *CounterService) InvalidatePost(ctx context.Context, postID string) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return
	}

	s.Invalidate(ctx, postID)

	if err := s.trending.Remove(ctx, postID); err != nil {
		s.logger.Warn("trending removal failed", zap.String("post_id", postID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.IncCacheError()
		}
	}
}
