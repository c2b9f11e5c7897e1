package stmtcache

import (
	"sync"

	"github.com/roach88/webstorage/internal/ir"
)

// Holder is the client-side handle of a prepared statement.
type Holder struct {
	StatementID      ir.SharedStateID
	NumFreeVariables int
	// CategoryID is the endpoint's id for the statement's category.
	CategoryID ir.SharedStateID
}

// Lookup is the read surface shared by Cache, Snapshot and ExpirableView.
type Lookup interface {
	// Get returns the holder prepared for desc.
	Get(desc ir.StatementDescriptor) (Holder, bool)
	// GetByID returns the descriptor whose statement has id.
	GetByID(id ir.SharedStateID) (ir.StatementDescriptor, bool)
}

// Cache maps descriptors to prepared-statement holders and back.
//
// Invariant: byID[h.StatementID] == d if and only if byDesc[d] == h.
// Mutations and Snapshot take the write lock; lookups share the read lock,
// so the invariant is never observed broken.
type Cache struct {
	mu     sync.RWMutex
	byDesc map[ir.StatementDescriptor]Holder
	byID   map[ir.SharedStateID]ir.StatementDescriptor
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		byDesc: make(map[ir.StatementDescriptor]Holder),
		byID:   make(map[ir.SharedStateID]ir.StatementDescriptor),
	}
}

// Put inserts or overwrites the holder for desc.
//
// The reverse entry of a previous holder for desc is removed first so its
// stale id no longer resolves. If holder's id was mapped to a different
// descriptor, that descriptor's entry is dropped as well.
func (c *Cache) Put(desc ir.StatementDescriptor, holder Holder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.byDesc[desc]; ok {
		delete(c.byID, old.StatementID)
	}
	if other, ok := c.byID[holder.StatementID]; ok && other != desc {
		delete(c.byDesc, other)
	}
	c.byDesc[desc] = holder
	c.byID[holder.StatementID] = desc
}

// Get implements Lookup.
func (c *Cache) Get(desc ir.StatementDescriptor) (Holder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.byDesc[desc]
	return h, ok
}

// GetByID implements Lookup. The full compound id is compared.
func (c *Cache) GetByID(id ir.SharedStateID) (ir.StatementDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byID[id]
	return d, ok
}

// Remove deletes both entries associated with id.
// Removing an unknown id is a no-op.
func (c *Cache) Remove(id ir.SharedStateID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	desc, ok := c.byID[id]
	if !ok {
		return
	}
	delete(c.byID, id)
	if h, ok := c.byDesc[desc]; ok && h.StatementID == id {
		delete(c.byDesc, desc)
	}
}

// Len returns the number of cached statements.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byDesc)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.byDesc)
	clear(c.byID)
}

// Snapshot returns an immutable copy of the current state. Later mutation
// of the cache is not visible through the snapshot.
func (c *Cache) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Snapshot{
		byDesc: make(map[ir.StatementDescriptor]Holder, len(c.byDesc)),
		byID:   make(map[ir.SharedStateID]ir.StatementDescriptor, len(c.byID)),
	}
	for d, h := range c.byDesc {
		s.byDesc[d] = h
	}
	for id, d := range c.byID {
		s.byID[id] = d
	}
	return s
}

// Snapshot is a point-in-time, read-only copy of a Cache.
// A nil *Snapshot is empty.
type Snapshot struct {
	byDesc map[ir.StatementDescriptor]Holder
	byID   map[ir.SharedStateID]ir.StatementDescriptor
}

// Get implements Lookup.
func (s *Snapshot) Get(desc ir.StatementDescriptor) (Holder, bool) {
	if s == nil {
		return Holder{}, false
	}
	h, ok := s.byDesc[desc]
	return h, ok
}

// GetByID implements Lookup.
func (s *Snapshot) GetByID(id ir.SharedStateID) (ir.StatementDescriptor, bool) {
	if s == nil {
		return ir.StatementDescriptor{}, false
	}
	d, ok := s.byID[id]
	return d, ok
}

// Len returns the number of statements in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byDesc)
}
