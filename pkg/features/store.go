// pkg/features/store.go
package features

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// FlagStore persists per-instance feature flags. Get returns an empty map
// for an instance that never saved anything; callers fall back to each
// feature's declared default. Set replaces the stored set wholesale.
type FlagStore interface {
	Get(ctx context.Context, instanceURL string) (map[string]bool, error)
	Set(ctx context.Context, instanceURL string, flags map[string]bool) error
	Delete(ctx context.Context, instanceURL string) error
}

type memFlags struct {
	log *zap.SugaredLogger
	mu  sync.RWMutex
	m   map[string]map[string]bool
}

// NewMemory returns an in-process flag store for dev and tests.
func NewMemory(log *zap.SugaredLogger) FlagStore {
	return &memFlags{log: log, m: map[string]map[string]bool{}}
}

func (s *memFlags) Get(ctx context.Context, instanceURL string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]bool{}
	for k, v := range s.m[instanceURL] {
		out[k] = v
	}
	return out, nil
}

func (s *memFlags) Set(ctx context.Context, instanceURL string, flags map[string]bool) error {
	cp := map[string]bool{}
	for k, v := range flags {
		cp[k] = v
	}
	s.mu.Lock()
	s.m[instanceURL] = cp
	s.mu.Unlock()
	return nil
}

func (s *memFlags) Delete(ctx context.Context, instanceURL string) error {
	s.mu.Lock()
	delete(s.m, instanceURL)
	s.mu.Unlock()
	return nil
}
