package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/blog-platform/internal/core/domain"
	"github.com/arklim/blog-platform/internal/core/port"
	"github.com/arklim/blog-platform/internal/repository"
)

// ReconcileMetrics captures telemetry hooks for reconciliation runs.
type ReconcileMetrics interface {
	IncReconcileRun()
	AddReconcileUpdated(n int)
	AddReconcileSkipped(n int)
}

// ViewUpdater overwrites a post's durable view count.
type ViewUpdater interface {
	UpdateViews(ctx context.Context, id string, count int64) error
}

// TxRunner runs fn inside a transaction, yielding a transaction-scoped view
// updater.
type TxRunner func(ctx context.Context, fn func(updater ViewUpdater) error) error

// ReconcileService periodically migrates cache-held view counts into the
// durable store. The cache value wins at flush time: each durable row is
// overwritten with the observed cache value, never incremented, which keeps
// repeated runs idempotent.
type ReconcileService struct {
	cache   port.CounterCache
	tx      TxRunner
	logger  *zap.Logger
	metrics ReconcileMetrics
	now     func() time.Time
}

// NewReconcileService constructs the reconciliation job.
func NewReconcileService(cache port.CounterCache, tx TxRunner) *ReconcileService {
	return &ReconcileService{
		cache:  cache,
		tx:     tx,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

// WithLogger attaches a structured logger to the job.
func (s *ReconcileService) WithLogger(logger *zap.Logger) *ReconcileService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithMetrics wires telemetry observers for reconciliation runs.
func (s *ReconcileService) WithMetrics(metrics ReconcileMetrics) *ReconcileService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithNow overrides the clock, primarily for deterministic testing.
func (s *ReconcileService) WithNow(now func() time.Time) *ReconcileService {
	if now != nil {
		s.now = now
	}
	return s
}

// Run executes one reconciliation pass: scan the counter keyspace, batch-read
// the values, and overwrite the durable rows inside a single transaction.
// Malformed entries and rows that vanished mid-run are logged and skipped;
// they never abort the batch. Run recovers from panics so a bad pass can
// only fail, never crash the scheduler.
func (s *ReconcileService) Run(ctx context.Context) (summary domain.ReconcileSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reconcile run panicked: %v", r)
			s.logger.Error("reconciliation panicked", zap.Any("panic", r))
		}
	}()

	summary.StartedAt = s.now().UTC()

	if s.metrics != nil {
		s.metrics.IncReconcileRun()
	}

	postIDs, err := s.cache.Scan(ctx)
	if err != nil {
		return summary, fmt.Errorf("scan view counters: %w", err)
	}
	summary.KeysFound = len(postIDs)

	if len(postIDs) == 0 {
		summary.FinishedAt = s.now().UTC()
		s.logSummary(summary)
		return summary, nil
	}

	counts, err := s.cache.GetMany(ctx, postIDs)
	if err != nil {
		return summary, fmt.Errorf("batch read view counters: %w", err)
	}

	// Entries dropped by GetMany (missing or unparseable) count as skipped.
	pairs := make([]domain.ViewCount, 0, len(counts))
	for _, postID := range postIDs {
		count, ok := counts[postID]
		if !ok {
			s.logger.Warn("skipping malformed or missing counter", zap.String("post_id", postID))
			summary.Skipped++
			continue
		}
		if count < 0 {
			s.logger.Warn("skipping negative counter value", zap.String("post_id", postID), zap.Int64("count", count))
			summary.Skipped++
			continue
		}
		pairs = append(pairs, domain.ViewCount{PostID: postID, Count: count})
	}

	if len(pairs) > 0 {
		txErr := s.tx(ctx, func(updater ViewUpdater) error {
			for _, pair := range pairs {
				summary.Attempted++
				if err := updater.UpdateViews(ctx, pair.PostID, pair.Count); err != nil {
					if errors.Is(err, repository.ErrNotFound) {
						// Content deleted between scan and flush; the cache
						// entry is cleaned up by the delete path.
						s.logger.Warn("post row missing during reconciliation", zap.String("post_id", pair.PostID))
						summary.Skipped++
						continue
					}
					return fmt.Errorf("update views for %s: %w", pair.PostID, err)
				}
				summary.Succeeded++
			}
			return nil
		})
		if txErr != nil {
			summary.FinishedAt = s.now().UTC()
			s.logSummary(summary)
			return summary, fmt.Errorf("apply view counts: %w", txErr)
		}
	}

	if s.metrics != nil {
		s.metrics.AddReconcileUpdated(summary.Succeeded)
		s.metrics.AddReconcileSkipped(summary.Skipped)
	}

	summary.FinishedAt = s.now().UTC()
	s.logSummary(summary)
	return summary, nil
}

func (s *ReconcileService) logSummary(summary domain.ReconcileSummary) {
	s.logger.Info("reconciliation completed",
		zap.Int("keys_found", summary.KeysFound),
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
}
