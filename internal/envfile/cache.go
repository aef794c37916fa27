package envfile

import (
	"maps"
	"sync"
	"time"
)

// Cache stores parsed file contents keyed by path and modification time.
type Cache interface {
	Get(path string, modTime time.Time) (map[string]string, bool)
	Put(path string, modTime time.Time, values map[string]string)
	Invalidate(path string)
	Clear()
}

type cacheEntry struct {
	modTime time.Time
	values  map[string]string
}

// MemoryCache keeps parsed files in-memory and guards access with a RWMutex.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewMemoryCache initialises an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
	}
}

// Get returns a defensive copy of the cached values for path while modTime is
// not newer than the cached modification time.
func (c *MemoryCache) Get(path string, modTime time.Time) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[path]
	if !ok || modTime.After(entry.modTime) {
		return nil, false
	}
	return maps.Clone(entry.values), true
}

// Put stores a copy of values for path.
func (c *MemoryCache) Put(path string, modTime time.Time, values map[string]string) {
	c.mu.Lock()
	c.entries[path] = cacheEntry{modTime: modTime, values: maps.Clone(values)}
	c.mu.Unlock()
}

// Invalidate drops the entry for path.
func (c *MemoryCache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len reports the number of cached files.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
