package domain

import "time"

// ViewCount pairs a post identifier with its cached view counter value.
type ViewCount struct {
	PostID string
	Count  int64
}

// TrendingEntry is one row of a trending ranking query.
type TrendingEntry struct {
	PostID string
	Score  float64
}

// RateLimitDecision is the outcome of a sliding-window admission check.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// ReconcileSummary captures the outcome of one reconciliation run.
type ReconcileSummary struct {
	KeysFound  int
	Attempted  int
	Succeeded  int
	Skipped    int
	StartedAt  time.Time
	FinishedAt time.Time
}
