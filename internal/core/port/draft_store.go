package port

import (
	"github.com/arklim/blog-platform/internal/core/domain"
)

// DraftStore is the client-local scratch space backing draft snapshots.
// Storage is quota-bounded; a failed Put signals pressure and the draft
// manager responds by evicting old snapshots and retrying once.
type DraftStore interface {
	Put(key string, snapshot domain.DraftSnapshot) error
	Get(key string) (*domain.DraftSnapshot, error)
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}
