package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arklim/blog-platform/internal/core/domain"
	"github.com/arklim/blog-platform/internal/repository"
)

// fakeCounterCache is an in-memory stand-in for the Redis counter store.
type fakeCounterCache struct {
	mu     sync.Mutex
	counts map[string]int64

	incrErr    error
	getErr     error
	setErr     error
	scanErr    error
	getManyErr error
	invErr     error

	invalidated []string
}

func newFakeCounterCache() *fakeCounterCache {
	return &fakeCounterCache{counts: make(map[string]int64)}
}

func (f *fakeCounterCache) Increment(_ context.Context, postID string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[postID]++
	return f.counts[postID], nil
}

func (f *fakeCounterCache) Get(_ context.Context, postID string) (int64, bool, error) {
	if f.getErr != nil {
		return 0, false, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	count, ok := f.counts[postID]
	return count, ok, nil
}

func (f *fakeCounterCache) Set(_ context.Context, postID string, count int64) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[postID] = count
	return nil
}

func (f *fakeCounterCache) Scan(_ context.Context) ([]string, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.counts))
	for id := range f.counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeCounterCache) GetMany(_ context.Context, postIDs []string) (map[string]int64, error) {
	if f.getManyErr != nil {
		return nil, f.getManyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64, len(postIDs))
	for _, id := range postIDs {
		if count, ok := f.counts[id]; ok {
			out[id] = count
		}
	}
	return out, nil
}

func (f *fakeCounterCache) Invalidate(_ context.Context, pattern string) error {
	if f.invErr != nil {
		return f.invErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, pattern)
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		for id := range f.counts {
			if strings.HasPrefix(id, prefix) {
				delete(f.counts, id)
			}
		}
		return nil
	}
	delete(f.counts, pattern)
	return nil
}

// fakeTrendingStore keeps scores in a map.
type fakeTrendingStore struct {
	mu      sync.Mutex
	scores  map[string]float64
	adjErr  error
	topErr  error
	remErr  error
	removed []string
}

func newFakeTrendingStore() *fakeTrendingStore {
	return &fakeTrendingStore{scores: make(map[string]float64)}
}

func (f *fakeTrendingStore) AdjustScore(_ context.Context, postID string, delta float64) (float64, error) {
	if f.adjErr != nil {
		return 0, f.adjErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[postID] += delta
	return f.scores[postID], nil
}

func (f *fakeTrendingStore) Top(_ context.Context, limit int) ([]domain.TrendingEntry, error) {
	if f.topErr != nil {
		return nil, f.topErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]domain.TrendingEntry, 0, len(f.scores))
	for id, score := range f.scores {
		entries = append(entries, domain.TrendingEntry{PostID: id, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeTrendingStore) Remove(_ context.Context, postID string) error {
	if f.remErr != nil {
		return f.remErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scores, postID)
	f.removed = append(f.removed, postID)
	return nil
}

// fakeRateLimitStore models the sliding window with a slice of attempt times.
type fakeRateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time

	trimErr   error
	countErr  error
	recordErr error
	oldestErr error
}

func newFakeRateLimitStore() *fakeRateLimitStore {
	return &fakeRateLimitStore{attempts: make(map[string][]time.Time)}
}

func (f *fakeRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	if f.trimErr != nil {
		return f.trimErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := reference.Add(-window)
	kept := f.attempts[identifier][:0]
	for _, at := range f.attempts[identifier] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	f.attempts[identifier] = kept
	return nil
}

func (f *fakeRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := reference.Add(-window)
	count := 0
	for _, at := range f.attempts[identifier] {
		if at.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (f *fakeRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[identifier] = append(f.attempts[identifier], at)
	return nil
}

func (f *fakeRateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if f.oldestErr != nil {
		return time.Time{}, false, f.oldestErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := reference.Add(-window)
	var oldest time.Time
	found := false
	for _, at := range f.attempts[identifier] {
		if at.After(cutoff) && (!found || at.Before(oldest)) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu      sync.Mutex
	viewed  []domain.PostViewedEvent
	liked   []domain.PostLikedEvent
	updated []domain.PostUpdatedEvent
	deleted []domain.PostDeletedEvent
	err     error
}

func (f *fakePublisher) PublishPostViewed(_ context.Context, event domain.PostViewedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewed = append(f.viewed, event)
	return nil
}

func (f *fakePublisher) PublishPostLiked(_ context.Context, event domain.PostLikedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liked = append(f.liked, event)
	return nil
}

func (f *fakePublisher) PublishPostUpdated(_ context.Context, event domain.PostUpdatedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, event)
	return nil
}

func (f *fakePublisher) PublishPostDeleted(_ context.Context, event domain.PostDeletedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, event)
	return nil
}

// fakePostRepository stores posts in memory and mimics the version-check
// update semantics of the SQL implementation.
type fakePostRepository struct {
	mu    sync.Mutex
	posts map[string]*domain.Post
}

func newFakePostRepository() *fakePostRepository {
	return &fakePostRepository{posts: make(map[string]*domain.Post)}
}

func (f *fakePostRepository) Create(_ context.Context, post domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := post
	f.posts[post.ID] = &copied
	return nil
}

func (f *fakePostRepository) GetByID(_ context.Context, id string, includeDeleted bool) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok || (!includeDeleted && post.DeletedAt != nil) {
		return nil, repository.ErrNotFound
	}
	copied := *post
	return &copied, nil
}

func (f *fakePostRepository) List(_ context.Context, filter domain.PostFilter) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Post, 0, len(f.posts))
	for _, post := range f.posts {
		if post.DeletedAt != nil {
			continue
		}
		if filter.AuthorID != "" && post.AuthorID != filter.AuthorID {
			continue
		}
		if filter.Status != "" && post.Status != filter.Status {
			continue
		}
		out = append(out, *post)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakePostRepository) UpdateWithVersionCheck(_ context.Context, id string, update domain.PostUpdate) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok || post.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	if post.Version != update.ExpectedVersion {
		return nil, repository.ErrVersionConflict
	}
	if update.Title != nil {
		post.Title = *update.Title
	}
	if update.Content != nil {
		post.Content = *update.Content
	}
	if update.CoverImage != nil {
		post.CoverImage = update.CoverImage
	}
	if update.Status != nil {
		post.Status = *update.Status
	}
	post.Version++
	post.UpdatedAt = time.Now().UTC()
	copied := *post
	return &copied, nil
}

func (f *fakePostRepository) UpdateViews(_ context.Context, id string, count int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok || post.DeletedAt != nil {
		return repository.ErrNotFound
	}
	post.ViewCount = count
	return nil
}

func (f *fakePostRepository) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok || post.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	post.DeletedAt = &now
	return nil
}

// countingMetrics tallies the metric hooks for assertions.
type countingMetrics struct {
	mu                sync.Mutex
	viewIncrements    int
	cacheErrors       int
	cacheSeeds        int
	rateLimitFailOpen int
	reconcileRuns     int
	reconcileUpdated  int
	reconcileSkipped  int
}

func (m *countingMetrics) IncViewIncrement() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewIncrements++
}

func (m *countingMetrics) IncCacheError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheErrors++
}

func (m *countingMetrics) IncCacheSeed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheSeeds++
}

func (m *countingMetrics) IncRateLimitFailOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimitFailOpen++
}

func (m *countingMetrics) IncReconcileRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileRuns++
}

func (m *countingMetrics) AddReconcileUpdated(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileUpdated += n
}

func (m *countingMetrics) AddReconcileSkipped(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileSkipped += n
}
