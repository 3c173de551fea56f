package schema

import (
	"sync"
	"time"

	"github.com/leapstack-labs/dbkit/pkg/core"
)

// snapshotCache is a TTL cache for assembled snapshots. Entries expire
// lazily on read; explicit invalidation removes them eagerly.
type snapshotCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	snapshot *core.SchemaSnapshot
	expires  time.Time
}

func newSnapshotCache() *snapshotCache {
	return &snapshotCache{entries: make(map[string]cacheEntry)}
}

func (c *snapshotCache) get(key string) (*core.SchemaSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.snapshot, true
}

func (c *snapshotCache) put(key string, snap *core.SchemaSnapshot, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{snapshot: snap, expires: time.Now().Add(ttl)}
}

func (c *snapshotCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *snapshotCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
