// Package session preserves notifier engine state across remounts. A single
// slot caches the most recent session's snapshot keyed by collection slug;
// revisiting the same collection restores it, switching collections discards
// it.
package session

import (
	"sync"

	"github.com/opencompute/supersea/internal/filter"
	"github.com/opencompute/supersea/internal/model"
)

// Snapshot is the full engine state captured for one collection session.
type Snapshot struct {
	CollectionSlug   string
	Rules            []model.Rule
	MatchIndex       filter.MatchIndex
	Rarities         *model.RarityData
	PollCursor       string
	Seen             map[string]bool
	MatchedAssets    []model.MatchedAsset
	PlaySound        bool
	SendNotification bool
}

// Cache is a single-slot snapshot store. Only one collection's state is
// retained at a time; storing a snapshot for a different slug replaces the
// previous one. The zero value is ready to use.
type Cache struct {
	mu   sync.Mutex
	snap *Snapshot
}

// NewCache creates an empty session cache.
func NewCache() *Cache {
	return &Cache{}
}

// Store replaces the cached snapshot. Snapshots are stored whole
// (snapshot-then-swap), never partially updated.
func (c *Cache) Store(snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
}

// Restore returns the cached snapshot if it belongs to the given collection.
func (c *Cache) Restore(collectionSlug string) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil || c.snap.CollectionSlug != collectionSlug {
		return nil, false
	}
	return c.snap, true
}
