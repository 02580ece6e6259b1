package editor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// fakeClock drives timers deterministically: Advance fires due callbacks in
// deadline order on the calling goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	fn       func()
	stopped  bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, timer)
	return timer
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Advance moves the clock forward, firing each due timer in order. Callbacks
// may schedule new timers; those fire too when they fall inside the window.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, timer := range c.timers {
			if timer.stopped || timer.deadline.After(target) {
				continue
			}
			if next == nil || timer.deadline.Before(next.deadline) {
				next = timer
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.stopped = true
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		fn := next.fn
		c.mu.Unlock()

		fn()
	}
}

// recordingSaver captures save attempts and replies from a scripted queue.
type recordingSaver struct {
	mu      sync.Mutex
	calls   []SaveRequest
	callAt  []time.Time
	clock   *fakeClock
	results []savedReply
}

type savedReply struct {
	result *SaveResult
	err    error
}

func (s *recordingSaver) SavePost(_ context.Context, postID string, req SaveRequest) (*SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.clock != nil {
		s.callAt = append(s.callAt, s.clock.Now())
	}
	if len(s.results) == 0 {
		return &SaveResult{PostID: postID, Version: req.Version + 1}, nil
	}
	reply := s.results[0]
	s.results = s.results[1:]
	return reply.result, reply.err
}

func newTestScheduler(t *testing.T, saver RemoteSaver, clock *fakeClock, cbs AutosaveCallbacks) (*AutosaveScheduler, *DraftManager) {
	t.Helper()

	store, err := OpenDraftStore(filepath.Join(t.TempDir(), "drafts.db"))
	if err != nil {
		t.Fatalf("OpenDraftStore: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	drafts := NewDraftManager(store, DraftManagerOptions{}).
		WithLogger(zaptest.NewLogger(t)).
		WithNow(clock.Now)

	scheduler := NewAutosaveScheduler("post-1", 1, saver, drafts, AutosaveOptions{}, cbs).
		WithLogger(zaptest.NewLogger(t)).
		WithClock(clock)
	t.Cleanup(scheduler.Close)

	return scheduler, drafts
}

func TestAutosaveCoalescesRapidEdits(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	saver := &recordingSaver{clock: clock}

	scheduler, _ := newTestScheduler(t, saver, clock, AutosaveCallbacks{})
	start := clock.Now()

	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "a"})
	clock.Advance(500 * time.Millisecond)
	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "ab"})
	clock.Advance(500 * time.Millisecond)
	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "abc"})

	clock.Advance(5 * time.Second)

	if len(saver.calls) != 1 {
		t.Fatalf("expected rapid edits to coalesce into 1 save, got %d", len(saver.calls))
	}
	if got := *saver.calls[0].Content; got != "abc" {
		t.Fatalf("expected the final content to be saved, got %q", got)
	}

	// The save fires one remote-debounce interval after the last edit.
	wantAt := start.Add(1*time.Second + 3*time.Second)
	if !saver.callAt[0].Equal(wantAt) {
		t.Fatalf("expected save at %v, got %v", wantAt, saver.callAt[0])
	}

	if scheduler.Dirty() {
		t.Fatal("expected clean state after acknowledged save")
	}
	if scheduler.Version() != 2 {
		t.Fatalf("expected adopted version 2, got %d", scheduler.Version())
	}
}

func TestAutosaveWritesLocalSnapshotBeforeRemoteSave(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	saver := &recordingSaver{clock: clock}

	scheduler, drafts := newTestScheduler(t, saver, clock, AutosaveCallbacks{})

	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "body"})

	clock.Advance(600 * time.Millisecond)

	snapshot, ok := drafts.Load("post:post-1")
	if !ok {
		t.Fatal("expected a local snapshot after the local debounce")
	}
	if snapshot.Content != "body" {
		t.Fatalf("unexpected snapshot content %q", snapshot.Content)
	}
	if len(saver.calls) != 0 {
		t.Fatal("remote save must not fire before its debounce elapses")
	}

	clock.Advance(3 * time.Second)

	if len(saver.calls) != 1 {
		t.Fatalf("expected 1 save, got %d", len(saver.calls))
	}
	// An acknowledged save makes the local backup redundant.
	if _, ok := drafts.Load("post:post-1"); ok {
		t.Fatal("expected the local snapshot to be removed after a successful save")
	}
}

func TestAutosaveEditDuringFlightSchedulesFollowUp(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	saver := &recordingSaver{clock: clock}
	var scheduler *AutosaveScheduler

	// The first save's acknowledgement races with a new edit: inject the
	// edit while the call is in flight.
	editDuringFlight := &editInjectingSaver{inner: saver, edit: func() {
		scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "newer"})
	}}

	scheduler, _ = newTestScheduler(t, editDuringFlight, clock, AutosaveCallbacks{})

	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "old"})
	clock.Advance(4 * time.Second)

	if len(saver.calls) != 1 {
		t.Fatalf("expected 1 save so far, got %d", len(saver.calls))
	}
	if !scheduler.Dirty() {
		t.Fatal("mid-flight edit must keep the document dirty")
	}

	// The follow-up save carries the newer content after another debounce.
	clock.Advance(4 * time.Second)

	if len(saver.calls) != 2 {
		t.Fatalf("expected a follow-up save, got %d calls", len(saver.calls))
	}
	if got := *saver.calls[1].Content; got != "newer" {
		t.Fatalf("expected follow-up to carry latest content, got %q", got)
	}
	if scheduler.Dirty() {
		t.Fatal("expected clean state after the follow-up save")
	}
}

type editInjectingSaver struct {
	inner *recordingSaver
	edit  func()
	fired bool
}

func (s *editInjectingSaver) SavePost(ctx context.Context, postID string, req SaveRequest) (*SaveResult, error) {
	if !s.fired {
		s.fired = true
		s.edit()
	}
	return s.inner.SavePost(ctx, postID, req)
}

func TestAutosaveConflictIsTerminal(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	saver := &recordingSaver{clock: clock, results: []savedReply{{err: ErrVersionConflict}}}

	conflicts := 0
	scheduler, _ := newTestScheduler(t, saver, clock, AutosaveCallbacks{
		OnConflict: func() { conflicts++ },
	})

	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "x"})
	clock.Advance(4 * time.Second)

	if conflicts != 1 {
		t.Fatalf("expected 1 conflict callback, got %d", conflicts)
	}
	if !scheduler.Dirty() {
		t.Fatal("conflicted edits must stay dirty until resolved")
	}

	// No retry may fire with the same stale version.
	clock.Advance(time.Minute)
	if len(saver.calls) != 1 {
		t.Fatalf("expected no retries after a conflict, got %d calls", len(saver.calls))
	}
}

func TestAutosaveRetriesTransientFailuresWithBackoff(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	saver := &recordingSaver{clock: clock, results: []savedReply{
		{err: errors.New("gateway timeout")},
		{err: errors.New("gateway timeout")},
	}}

	var saved []SaveResult
	scheduler, _ := newTestScheduler(t, saver, clock, AutosaveCallbacks{
		OnSaved: func(result SaveResult) { saved = append(saved, result) },
	})

	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "x"})

	// First attempt fires at +3s when the remote debounce elapses; stop just
	// short of the +4s retry deadline before asserting.
	clock.Advance(3500 * time.Millisecond)
	if len(saver.calls) != 1 {
		t.Fatalf("expected first attempt, got %d calls", len(saver.calls))
	}

	// Crosses the +4s deadline of the 1s-backoff retry.
	clock.Advance(time.Second)
	if len(saver.calls) != 2 {
		t.Fatalf("expected first retry after 1s, got %d calls", len(saver.calls))
	}

	// Crosses the +6s deadline of the 2s-backoff retry, which succeeds.
	clock.Advance(2 * time.Second)
	if len(saver.calls) != 3 {
		t.Fatalf("expected second retry after 2s, got %d calls", len(saver.calls))
	}

	if len(saved) != 1 {
		t.Fatalf("expected eventual success, got %d saved callbacks", len(saved))
	}
	if scheduler.Dirty() {
		t.Fatal("expected clean state after the retry succeeded")
	}
}

func TestAutosaveGivesUpAfterMaxRetries(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	replies := make([]savedReply, 0, 6)
	for i := 0; i < 6; i++ {
		replies = append(replies, savedReply{err: errors.New("unreachable")})
	}
	saver := &recordingSaver{clock: clock, results: replies}

	var failures []error
	scheduler, _ := newTestScheduler(t, saver, clock, AutosaveCallbacks{
		OnSaveFailed: func(err error) { failures = append(failures, err) },
	})

	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "x"})
	clock.Advance(time.Minute)

	if len(failures) != 1 {
		t.Fatalf("expected 1 give-up callback, got %d", len(failures))
	}
	// Initial attempt plus the bounded retries, nothing more.
	if len(saver.calls) != 6 {
		t.Fatalf("expected 6 attempts, got %d", len(saver.calls))
	}
	if !scheduler.Dirty() {
		t.Fatal("unsaved edits must stay dirty after giving up")
	}
}

func TestAutosaveNeverMovesVersionBackwards(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	saver := &recordingSaver{clock: clock, results: []savedReply{
		{result: &SaveResult{PostID: "post-1", Version: 9}},
		{result: &SaveResult{PostID: "post-1", Version: 3}},
	}}

	scheduler, _ := newTestScheduler(t, saver, clock, AutosaveCallbacks{})

	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "a"})
	clock.Advance(4 * time.Second)

	if scheduler.Version() != 9 {
		t.Fatalf("expected version 9, got %d", scheduler.Version())
	}

	// A stale acknowledgement must be discarded.
	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "b"})
	clock.Advance(4 * time.Second)

	if scheduler.Version() != 9 {
		t.Fatalf("expected version to stay at 9, got %d", scheduler.Version())
	}
}

func TestSaveNowBypassesDebounce(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	saver := &recordingSaver{clock: clock}

	scheduler, _ := newTestScheduler(t, saver, clock, AutosaveCallbacks{})

	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "now"})
	scheduler.SaveNow(context.Background())

	if len(saver.calls) != 1 {
		t.Fatalf("expected immediate save, got %d calls", len(saver.calls))
	}
	if scheduler.Dirty() {
		t.Fatal("expected clean state after explicit save")
	}

	// The debounced timers were cancelled; nothing else fires.
	clock.Advance(time.Minute)
	if len(saver.calls) != 1 {
		t.Fatalf("expected no further saves, got %d", len(saver.calls))
	}
}

func TestCancelSaveKeepsEditsDirty(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	saver := &recordingSaver{clock: clock}

	scheduler, _ := newTestScheduler(t, saver, clock, AutosaveCallbacks{})

	scheduler.ScheduleAutosave(DocumentState{Title: "draft", Content: "kept"})
	scheduler.CancelSave()

	clock.Advance(time.Minute)

	if len(saver.calls) != 0 {
		t.Fatalf("expected no saves after cancel, got %d", len(saver.calls))
	}
	if !scheduler.Dirty() {
		t.Fatal("cancel must not discard pending edits")
	}
}

func TestSaveStateString(t *testing.T) {
	want := map[SaveState]string{
		StateIdle:              "idle",
		StatePendingLocalWrite: "pending_local_write",
		StatePendingRemoteSave: "pending_remote_save",
		StateSaving:            "saving",
		StateRetrying:          "retrying",
	}
	for state, name := range want {
		if got := state.String(); got != name {
			t.Fatalf("expected %q, got %q", name, got)
		}
	}
}
