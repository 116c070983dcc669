// pkg/keyset/cache.go
package keyset

import (
	"sync"
	"time"
)

// Cache holds fetched key sets per instance URL. Safe for concurrent use.
// Invalidation may race with a fetch for the same instance; the loser
// performs a redundant fetch, which is harmless.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	ks      KeySet
	expires time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, entries: map[string]cacheEntry{}}
}

func (c *Cache) Get(instanceURL string) (KeySet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[instanceURL]
	if !ok || time.Now().After(e.expires) {
		return KeySet{}, false
	}
	return e.ks, true
}

func (c *Cache) Put(instanceURL string, ks KeySet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[instanceURL] = cacheEntry{ks: ks, expires: time.Now().Add(c.ttl)}
}

// Invalidate drops the entry for an instance so the next resolve refetches.
func (c *Cache) Invalidate(instanceURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, instanceURL)
}
