// Package statecache is a small in-memory cache of the state-variable
// values a control point has observed via NOTIFY, keyed by subscription
// ID.
package statecache

import (
	"sync"
	"time"
)

// Entry is one subscription's last-known state-variable values.
type Entry struct {
	SID       string
	Vars      map[string]string
	UpdatedAt time.Time
}

// StateCache provides thread-safe caching of NOTIFY-derived
// state-variable values, read by diagnostics and application code.
type StateCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	hits   int64
	misses int64
}

// New creates an empty StateCache.
func New() *StateCache {
	return &StateCache{entries: make(map[string]*Entry)}
}

// Update records a single state-variable change delivered by a NOTIFY
// for subscription sid.
func (c *StateCache) Update(sid, varName, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sid]
	if !ok {
		e = &Entry{SID: sid, Vars: make(map[string]string)}
		c.entries[sid] = e
	}
	e.Vars[varName] = value
	e.UpdatedAt = time.Now()
}

// Get returns a copy of the cached variables for sid, or nil if sid has
// never been observed.
func (c *StateCache) Get(sid string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sid]
	if !ok {
		c.misses++
		return nil
	}
	c.hits++
	cp := make(map[string]string, len(e.Vars))
	for k, v := range e.Vars {
		cp[k] = v
	}
	return cp
}

// Remove drops sid's cached state, called when a subscription ends.
func (c *StateCache) Remove(sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sid)
}

// List returns every cached entry, for diagnostics.
func (c *StateCache) List() []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		cp := *e
		cp.Vars = make(map[string]string, len(e.Vars))
		for k, v := range e.Vars {
			cp.Vars[k] = v
		}
		result = append(result, &cp)
	}
	return result
}

// Stats returns cache hit/miss/size counters.
func (c *StateCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.entries)
}
