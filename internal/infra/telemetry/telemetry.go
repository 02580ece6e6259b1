package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus collectors for the counter/cache core.
type Metrics struct {
	ViewIncrements     prometheus.Counter
	CacheErrors        prometheus.Counter
	CacheSeeds         prometheus.Counter
	RateLimitFailOpens prometheus.Counter
	ReconcileRuns      prometheus.Counter
	ReconcileUpdated   prometheus.Counter
	ReconcileSkipped   prometheus.Counter
}

// NewMetrics registers the core collectors on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		ViewIncrements: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "blog",
			Name:      "view_increments_total",
			Help:      "Total number of view counter increments",
		}),
		CacheErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "blog",
			Name:      "cache_errors_total",
			Help:      "Total number of swallowed cache-store errors",
		}),
		CacheSeeds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "blog",
			Name:      "cache_seeds_total",
			Help:      "Total number of counters seeded from the durable store",
		}),
		RateLimitFailOpens: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "blog",
			Name:      "rate_limit_fail_opens_total",
			Help:      "Total number of rate-limit checks that failed open",
		}),
		ReconcileRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "blog",
			Name:      "reconcile_runs_total",
			Help:      "Total number of reconciliation job runs",
		}),
		ReconcileUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "blog",
			Name:      "reconcile_updated_total",
			Help:      "Total number of durable rows updated by reconciliation",
		}),
		ReconcileSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "blog",
			Name:      "reconcile_skipped_total",
			Help:      "Total number of keys skipped by reconciliation",
		}),
	}
}

// IncViewIncrement counts a successful cached view increment.
func (m *Metrics) IncViewIncrement() { m.ViewIncrements.Inc() }

// IncCacheError counts a swallowed cache-store error.
func (m *Metrics) IncCacheError() { m.CacheErrors.Inc() }

// IncCacheSeed counts a counter seeded from the durable store.
func (m *Metrics) IncCacheSeed() { m.CacheSeeds.Inc() }

// IncRateLimitFailOpen counts a rate-limit check that failed open.
func (m *Metrics) IncRateLimitFailOpen() { m.RateLimitFailOpens.Inc() }

// IncReconcileRun counts a reconciliation pass.
func (m *Metrics) IncReconcileRun() { m.ReconcileRuns.Inc() }

// AddReconcileUpdated counts durable rows overwritten in a pass.
func (m *Metrics) AddReconcileUpdated(n int) { m.ReconcileUpdated.Add(float64(n)) }

// AddReconcileSkipped counts keys skipped in a pass.
func (m *Metrics) AddReconcileSkipped(n int) { m.ReconcileSkipped.Add(float64(n)) }
