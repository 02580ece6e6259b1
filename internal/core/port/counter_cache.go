package port

import "context"

// CounterCache defines the cache-store operations backing the view counter.
// All mutating operations must be atomic at the store level; callers never
// perform read-modify-write cycles.
type CounterCache interface {
	// Increment atomically adds 1 to the counter for postID, creating it at 1
	// when absent, and returns the new value.
	Increment(ctx context.Context, postID string) (int64, error)
	// Get returns the cached counter value. The boolean is false when no
	// cached value exists for postID.
	Get(ctx context.Context, postID string) (int64, bool, error)
	// Set seeds the counter with an absolute value, typically from the
	// durable store on a cold read.
	Set(ctx context.Context, postID string, count int64) error
	// Scan enumerates all post identifiers currently holding a counter.
	Scan(ctx context.Context) ([]string, error)
	// GetMany batch-reads counters for the provided post identifiers in a
	// single round trip. Missing entries are absent from the result.
	GetMany(ctx context.Context, postIDs []string) (map[string]int64, error)
	// Invalidate removes cached entries for an exact post identifier or a
	// trailing-* glob pattern.
	Invalidate(ctx context.Context, pattern string) error
}
