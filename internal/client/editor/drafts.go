package editor

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/arklim/blog-platform/internal/core/domain"
	"github.com/arklim/blog-platform/internal/core/port"
)

const draftBucket = "drafts"

// BoltDraftStore is a file-backed scratch space for draft snapshots.
type BoltDraftStore struct {
	db *bbolt.DB
}

// OpenDraftStore opens the local draft database at the provided path.
func OpenDraftStore(path string) (*BoltDraftStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("draft store path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open draft store: %w", err)
	}

	store := &BoltDraftStore{db: db}
	if err := store.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *BoltDraftStore) ensureBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(draftBucket)); err != nil {
			return fmt.Errorf("create draft bucket: %w", err)
		}
		return nil
	})
}

// Put persists a snapshot under key.
func (s *BoltDraftStore) Put(key string, snapshot domain.DraftSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode draft snapshot: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucket))
		if bucket == nil {
			return fmt.Errorf("draft bucket missing")
		}
		if err := bucket.Put([]byte(key), data); err != nil {
			return fmt.Errorf("put draft snapshot: %w", err)
		}
		return nil
	})
}

// Get returns the snapshot stored under key, or nil when absent.
func (s *BoltDraftStore) Get(key string) (*domain.DraftSnapshot, error) {
	var snapshot *domain.DraftSnapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucket))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return nil
		}

		var decoded domain.DraftSnapshot
		if err := json.Unmarshal(data, &decoded); err != nil {
			return fmt.Errorf("decode draft snapshot: %w", err)
		}
		snapshot = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// Delete removes the snapshot under key; deleting an absent key is a no-op.
func (s *BoltDraftStore) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucket))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

// Keys lists every stored snapshot key.
func (s *BoltDraftStore) Keys() ([]string, error) {
	keys := make([]string, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftBucket))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list draft keys: %w", err)
	}

	return keys, nil
}

// Close closes the underlying database.
func (s *BoltDraftStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ port.DraftStore = (*BoltDraftStore)(nil)

// DraftManager keeps a bounded set of local backup snapshots so unsynced
// edits survive a crashed session. Backups are advisory: every failure here
// is logged and swallowed, never surfaced to the editing flow.
type DraftManager struct {
	store     port.DraftStore
	logger    *zap.Logger
	now       func() time.Time
	maxDrafts int
	evictTo   int
}

// DraftManagerOptions bounds the snapshot set.
type DraftManagerOptions struct {
	// MaxDrafts caps the number of retained snapshots. Default 50.
	MaxDrafts int
	// EvictTo is the size the set is trimmed to when a write fails under
	// storage pressure. Default 10.
	EvictTo int
}

// NewDraftManager constructs a draft manager over the provided store.
func NewDraftManager(store port.DraftStore, opts DraftManagerOptions) *DraftManager {
	maxDrafts := opts.MaxDrafts
	if maxDrafts <= 0 {
		maxDrafts = 50
	}
	evictTo := opts.EvictTo
	if evictTo <= 0 || evictTo > maxDrafts {
		evictTo = 10
	}

	return &DraftManager{
		store:     store,
		logger:    zap.NewNop(),
		now:       time.Now,
		maxDrafts: maxDrafts,
		evictTo:   evictTo,
	}
}

// WithLogger attaches a structured logger to the manager.
func (m *DraftManager) WithLogger(logger *zap.Logger) *DraftManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithNow overrides the clock, primarily for deterministic testing.
func (m *DraftManager) WithNow(now func() time.Time) *DraftManager {
	if now != nil {
		m.now = now
	}
	return m
}

// Save writes the snapshot with a current modification timestamp. A write
// failure triggers one eviction pass of the least-recently-modified
// snapshots and a single retry; a residual failure is swallowed.
func (m *DraftManager) Save(key string, snapshot domain.DraftSnapshot) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}

	snapshot.Key = key
	snapshot.ModifiedAt = m.now().UTC()

	if err := m.store.Put(key, snapshot); err != nil {
		m.logger.Warn("draft write failed, evicting old snapshots", zap.String("key", key), zap.Error(err))
		m.evict(m.evictTo)
		if err := m.store.Put(key, snapshot); err != nil {
			m.logger.Warn("draft write failed after eviction", zap.String("key", key), zap.Error(err))
			return
		}
	}

	m.enforceCap()
}

// Load returns the snapshot for key, or false when none exists. Load never
// surfaces storage errors; a broken backup reads as absent.
func (m *DraftManager) Load(key string) (*domain.DraftSnapshot, bool) {
	snapshot, err := m.store.Get(key)
	if err != nil {
		m.logger.Warn("draft read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if snapshot == nil {
		return nil, false
	}
	return snapshot, true
}

// Remove deletes the snapshot; removing an absent key is a no-op.
func (m *DraftManager) Remove(key string) {
	if err := m.store.Delete(key); err != nil {
		m.logger.Warn("draft delete failed", zap.String("key", key), zap.Error(err))
	}
}

// HasNewerDraft reports whether a stored snapshot was modified strictly
// after the reference time, used to offer a restore prompt on load.
func (m *DraftManager) HasNewerDraft(key string, reference time.Time) bool {
	snapshot, ok := m.Load(key)
	if !ok {
		return false
	}
	return snapshot.ModifiedAt.After(reference)
}

// enforceCap trims the snapshot set down to the configured maximum, evicting
// the least-recently-modified first.
func (m *DraftManager) enforceCap() {
	m.evict(m.maxDrafts)
}

// evict removes least-recently-modified snapshots until at most keep remain.
// Storage is ground truth: keys that fail to load are skipped.
func (m *DraftManager) evict(keep int) {
	keys, err := m.store.Keys()
	if err != nil {
		m.logger.Warn("draft key listing failed during eviction", zap.Error(err))
		return
	}
	if len(keys) <= keep {
		return
	}

	type entry struct {
		key        string
		modifiedAt time.Time
	}

	entries := make([]entry, 0, len(keys))
	for _, key := range keys {
		snapshot, err := m.store.Get(key)
		if err != nil || snapshot == nil {
			continue
		}
		entries = append(entries, entry{key: key, modifiedAt: snapshot.ModifiedAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modifiedAt.Before(entries[j].modifiedAt)
	})

	excess := len(entries) - keep
	for i := 0; i < excess; i++ {
		if err := m.store.Delete(entries[i].key); err != nil {
			m.logger.Warn("draft eviction failed", zap.String("key", entries[i].key), zap.Error(err))
		}
	}
}
