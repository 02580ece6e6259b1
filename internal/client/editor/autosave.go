package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/arklim/blog-platform/internal/core/domain"
)

// SaveState labels where the autosave machine currently sits.
type SaveState int

const (
	// StateIdle means there are no pending writes or saves.
	StateIdle SaveState = iota
	// StatePendingLocalWrite means an edit is waiting for the local
	// snapshot debounce to elapse.
	StatePendingLocalWrite
	// StatePendingRemoteSave means the local snapshot is written and the
	// remote debounce is counting down.
	StatePendingRemoteSave
	// StateSaving means a remote save is in flight.
	StateSaving
	// StateRetrying means the last save failed transiently and a backoff
	// timer is armed.
	StateRetrying
)

func (s SaveState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingLocalWrite:
		return "pending_local_write"
	case StatePendingRemoteSave:
		return "pending_remote_save"
	case StateSaving:
		return "saving"
	case StateRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// DocumentState is the editable payload the scheduler debounces and saves.
type DocumentState struct {
	Title      string
	Content    string
	CoverImage *string
	Status     domain.PostStatus
}

// AutosaveCallbacks notify the editing surface of save outcomes. All
// callbacks are optional and invoked outside the scheduler lock.
type AutosaveCallbacks struct {
	// OnSaved fires after a successful save with the acknowledged result.
	OnSaved func(SaveResult)
	// OnConflict fires when the server rejects the save as stale. The
	// conflict is terminal: the scheduler stops retrying and the edits stay
	// dirty until the caller reloads and resolves.
	OnConflict func()
	// OnSaveFailed fires when retries are exhausted on a transient failure.
	OnSaveFailed func(error)
}

// AutosaveOptions tunes the debounce and retry schedule.
type AutosaveOptions struct {
	// LocalDelay debounces local snapshot writes. Default 500ms.
	LocalDelay time.Duration
	// RemoteDelay debounces remote saves. Each edit restarts it, so a save
	// happens only after a quiet gap of this length. Default 3s.
	RemoteDelay time.Duration
	// MaxRetries bounds transient-failure retries per save cycle. Default 5.
	MaxRetries int
	// InitialRetryDelay seeds the exponential backoff. Default 1s.
	InitialRetryDelay time.Duration
	// MaxRetryDelay caps the exponential backoff. Default 10s.
	MaxRetryDelay time.Duration
}

func (o AutosaveOptions) withDefaults() AutosaveOptions {
	if o.LocalDelay <= 0 {
		o.LocalDelay = 500 * time.Millisecond
	}
	if o.RemoteDelay <= 0 {
		o.RemoteDelay = 3 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
	if o.InitialRetryDelay <= 0 {
		o.InitialRetryDelay = time.Second
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = 10 * time.Second
	}
	return o
}

// AutosaveScheduler drives the save lifecycle for one open document. Local
// snapshot writes and remote saves are debounced independently; rapid edits
// coalesce into one remote save carrying the latest state. At most one save
// is in flight at a time: an edit arriving mid-flight never cancels the call
// but schedules a follow-up save once it completes.
type AutosaveScheduler struct {
	postID   string
	draftKey string

	saver  RemoteSaver
	drafts *DraftManager
	clock  Clock
	logger *zap.Logger
	opts   AutosaveOptions
	cbs    AutosaveCallbacks

	mu          sync.Mutex
	state       SaveState
	version     int64
	pending     DocumentState
	dirty       bool
	editSeq     uint64
	followUp    bool
	retries     int
	backoff     *backoff.ExponentialBackOff
	localTimer  Timer
	remoteTimer Timer
	retryTimer  Timer
	closed      bool
}

// NewAutosaveScheduler constructs a scheduler for the given post, seeded
// with the version the editor loaded.
func NewAutosaveScheduler(postID string, version int64, saver RemoteSaver, drafts *DraftManager, opts AutosaveOptions, cbs AutosaveCallbacks) *AutosaveScheduler {
	opts = opts.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.InitialRetryDelay
	bo.MaxInterval = opts.MaxRetryDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	return &AutosaveScheduler{
		postID:   postID,
		draftKey: "post:" + postID,
		saver:    saver,
		drafts:   drafts,
		clock:    NewRealClock(),
		logger:   zap.NewNop(),
		opts:     opts,
		cbs:      cbs,
		state:    StateIdle,
		version:  version,
		backoff:  bo,
	}
}

// WithLogger attaches a structured logger to the scheduler.
func (a *AutosaveScheduler) WithLogger(logger *zap.Logger) *AutosaveScheduler {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithClock overrides the timer source, primarily for deterministic testing.
func (a *AutosaveScheduler) WithClock(clock Clock) *AutosaveScheduler {
	if clock != nil {
		a.clock = clock
	}
	return a
}

// State reports the current machine state.
func (a *AutosaveScheduler) State() SaveState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Dirty reports whether edits exist that the server has not acknowledged.
func (a *AutosaveScheduler) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Version returns the last server-acknowledged version.
func (a *AutosaveScheduler) Version() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// ScheduleAutosave records an edit and restarts both debounce timers. The
// local snapshot lands after a short quiet gap; the remote save only after a
// longer one, so a burst of edits produces one save with the final state.
func (a *AutosaveScheduler) ScheduleAutosave(doc DocumentState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.pending = doc
	a.dirty = true
	a.editSeq++

	a.stopTimer(&a.localTimer)
	a.localTimer = a.clock.AfterFunc(a.opts.LocalDelay, a.onLocalTimer)

	if a.state == StateSaving {
		// Do not cancel the in-flight call; run again when it settles.
		a.followUp = true
		return
	}

	a.stopTimer(&a.remoteTimer)
	a.stopTimer(&a.retryTimer)
	a.retries = 0
	a.backoff.Reset()
	a.state = StatePendingLocalWrite
	a.remoteTimer = a.clock.AfterFunc(a.opts.RemoteDelay, a.onRemoteTimer)
}

// SaveNow flushes the pending edits immediately, bypassing the remote
// debounce. It blocks until the save settles.
func (a *AutosaveScheduler) SaveNow(ctx context.Context) {
	a.mu.Lock()
	if a.closed || !a.dirty {
		a.mu.Unlock()
		return
	}
	if a.state == StateSaving {
		a.followUp = true
		a.mu.Unlock()
		return
	}
	a.stopTimer(&a.remoteTimer)
	a.stopTimer(&a.retryTimer)
	a.writeSnapshotLocked()
	a.mu.Unlock()

	a.save(ctx)
}

// CancelSave stops all pending timers without clearing the dirty flag. An
// in-flight save is not interrupted.
func (a *AutosaveScheduler) CancelSave() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopTimer(&a.localTimer)
	a.stopTimer(&a.remoteTimer)
	a.stopTimer(&a.retryTimer)
	a.followUp = false
	if a.state != StateSaving {
		a.state = StateIdle
	}
}

// Close cancels all pending work; the scheduler accepts no further edits.
func (a *AutosaveScheduler) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.stopTimer(&a.localTimer)
	a.stopTimer(&a.remoteTimer)
	a.stopTimer(&a.retryTimer)
}

func (a *AutosaveScheduler) stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (a *AutosaveScheduler) onLocalTimer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.localTimer = nil
	a.writeSnapshotLocked()
	if a.state == StatePendingLocalWrite {
		a.state = StatePendingRemoteSave
	}
}

// writeSnapshotLocked persists the pending edits to the local backup. The
// caller holds the lock; DraftManager swallows its own failures.
func (a *AutosaveScheduler) writeSnapshotLocked() {
	if a.drafts == nil || !a.dirty {
		return
	}
	cover := ""
	if a.pending.CoverImage != nil {
		cover = *a.pending.CoverImage
	}
	a.drafts.Save(a.draftKey, domain.DraftSnapshot{
		PostID:     a.postID,
		Title:      a.pending.Title,
		Content:    a.pending.Content,
		CoverImage: cover,
		Status:     a.pending.Status,
		Version:    a.version,
	})
}

func (a *AutosaveScheduler) onRemoteTimer() {
	a.mu.Lock()
	if a.closed || a.state == StateSaving {
		a.mu.Unlock()
		return
	}
	a.remoteTimer = nil
	a.mu.Unlock()

	a.save(context.Background())
}

func (a *AutosaveScheduler) onRetryTimer() {
	a.mu.Lock()
	if a.closed || a.state != StateRetrying {
		a.mu.Unlock()
		return
	}
	a.retryTimer = nil
	a.mu.Unlock()

	a.save(context.Background())
}

// save performs one remote save attempt and routes the outcome. The network
// call runs outside the lock.
func (a *AutosaveScheduler) save(ctx context.Context) {
	a.mu.Lock()
	if a.closed || !a.dirty {
		a.state = StateIdle
		a.mu.Unlock()
		return
	}
	doc := a.pending
	seq := a.editSeq
	version := a.version
	a.state = StateSaving
	a.mu.Unlock()

	req := SaveRequest{
		Title:      &doc.Title,
		Content:    &doc.Content,
		CoverImage: doc.CoverImage,
		Status:     doc.Status,
		Version:    version,
	}

	result, err := a.saver.SavePost(ctx, a.postID, req)

	switch {
	case err == nil:
		a.handleSaved(seq, result)
	case errors.Is(err, ErrVersionConflict):
		a.handleConflict()
	default:
		a.handleFailure(err)
	}
}

func (a *AutosaveScheduler) handleSaved(seq uint64, result *SaveResult) {
	a.mu.Lock()

	// A response that raced with a newer acknowledgement is stale; never
	// move the version backwards.
	if result.Version > a.version {
		a.version = result.Version
	}
	a.retries = 0
	a.backoff.Reset()

	if a.editSeq == seq {
		// Nothing changed while the save was in flight; the local backup
		// is now redundant.
		a.dirty = false
		a.followUp = false
		a.state = StateIdle
		if a.drafts != nil {
			a.drafts.Remove(a.draftKey)
		}
	} else {
		// Edits arrived mid-flight; debounce the follow-up save.
		a.followUp = false
		a.state = StatePendingRemoteSave
		a.stopTimer(&a.remoteTimer)
		a.remoteTimer = a.clock.AfterFunc(a.opts.RemoteDelay, a.onRemoteTimer)
	}

	cb := a.cbs.OnSaved
	acked := *result
	a.mu.Unlock()

	if cb != nil {
		cb(acked)
	}
}

func (a *AutosaveScheduler) handleConflict() {
	a.mu.Lock()
	// Conflicts are terminal: retrying with the same stale version can
	// never succeed. Edits stay dirty until the caller resolves.
	a.state = StateIdle
	a.followUp = false
	a.retries = 0
	a.backoff.Reset()
	a.stopTimer(&a.remoteTimer)
	a.stopTimer(&a.retryTimer)
	cb := a.cbs.OnConflict
	a.mu.Unlock()

	a.logger.Warn("autosave rejected with version conflict", zap.String("post_id", a.postID))
	if cb != nil {
		cb()
	}
}

func (a *AutosaveScheduler) handleFailure(err error) {
	a.mu.Lock()

	a.retries++
	if a.retries > a.opts.MaxRetries {
		a.state = StateIdle
		a.retries = 0
		a.backoff.Reset()
		cb := a.cbs.OnSaveFailed
		a.mu.Unlock()

		a.logger.Warn("autosave gave up after retries", zap.String("post_id", a.postID), zap.Error(err))
		if cb != nil {
			cb(err)
		}
		return
	}

	delay := a.backoff.NextBackOff()
	a.state = StateRetrying
	a.stopTimer(&a.retryTimer)
	a.retryTimer = a.clock.AfterFunc(delay, a.onRetryTimer)
	attempt := a.retries
	a.mu.Unlock()

	a.logger.Warn("autosave failed, retrying",
		zap.String("post_id", a.postID),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(err),
	)
}

// ResolveConflict adopts the server's authoritative version after the caller
// has reloaded and merged. Pending edits remain dirty and can be saved again
// against the new version.
func (a *AutosaveScheduler) ResolveConflict(version int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if version > a.version {
		a.version = version
	}
}
