// pkg/features/cached.go
package features

import (
	"context"
	"sync"
	"time"
)

type cachedFlags struct {
	loadedAt time.Time
	flags    map[string]bool
}

// Cached wraps a flag store with a short read cache so the reconcile path
// does not hammer the backend on every mutating request. Writes go straight
// through and drop the cached entry.
type Cached struct {
	inner FlagStore
	ttl   time.Duration
	mu    sync.RWMutex
	byURL map[string]cachedFlags
}

func NewCached(inner FlagStore, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cached{inner: inner, ttl: ttl, byURL: map[string]cachedFlags{}}
}

func (c *Cached) Get(ctx context.Context, instanceURL string) (map[string]bool, error) {
	c.mu.RLock()
	e, ok := c.byURL[instanceURL]
	if ok && time.Since(e.loadedAt) < c.ttl {
		c.mu.RUnlock()
		return e.flags, nil
	}
	c.mu.RUnlock()
	flags, err := c.inner.Get(ctx, instanceURL)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.byURL[instanceURL] = cachedFlags{loadedAt: time.Now(), flags: flags}
	c.mu.Unlock()
	return flags, nil
}

func (c *Cached) Set(ctx context.Context, instanceURL string, flags map[string]bool) error {
	if err := c.inner.Set(ctx, instanceURL, flags); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.byURL, instanceURL)
	c.mu.Unlock()
	return nil
}

func (c *Cached) Delete(ctx context.Context, instanceURL string) error {
	if err := c.inner.Delete(ctx, instanceURL); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.byURL, instanceURL)
	c.mu.Unlock()
	return nil
}
