// pkg/authstore/memory.go
package authstore

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"
)

type memStore struct {
	log   *zap.SugaredLogger
	mu    sync.RWMutex
	byURL map[string]Record
}

// NewMemory returns an empty in-process store.
func NewMemory(log *zap.SugaredLogger) Store {
	return &memStore{log: log, byURL: map[string]Record{}}
}

// NewMemoryFromEnv seeds an in-process store from AUTH_SEED_JSON, an array
// of records. Useful for local bring-up without a database.
func NewMemoryFromEnv(log *zap.SugaredLogger) Store {
	s := &memStore{log: log, byURL: map[string]Record{}}
	if seed := os.Getenv("AUTH_SEED_JSON"); seed != "" {
		var entries []Record
		_ = json.Unmarshal([]byte(seed), &entries)
		for _, e := range entries {
			if e.InstanceURL != "" {
				s.byURL[e.InstanceURL] = e
			}
		}
		if len(s.byURL) > 0 {
			log.Infow("seeded auth records", "count", len(s.byURL))
		}
	}
	return s
}

func (s *memStore) Get(ctx context.Context, appID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.byURL {
		if r.AppID == appID {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *memStore) GetByURL(ctx context.Context, instanceURL string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.byURL[instanceURL]; ok {
		return r, nil
	}
	return Record{}, ErrNotFound
}

func (s *memStore) Set(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byURL[rec.InstanceURL] = rec
	return nil
}

func (s *memStore) Delete(ctx context.Context, instanceURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byURL[instanceURL]; !ok {
		return ErrNotFound
	}
	delete(s.byURL, instanceURL)
	return nil
}

func (s *memStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.byURL))
	for _, r := range s.byURL {
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) Ready(ctx context.Context) error { return nil }
