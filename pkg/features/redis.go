// pkg/features/redis.go
package features

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

type redisFlags struct {
	rdb *redis.Client
}

// NewRedis returns a flag store backed by redis, keyed per instance.
func NewRedis(rdb *redis.Client) FlagStore {
	return &redisFlags{rdb: rdb}
}

func flagKey(instanceURL string) string { return "features:flags:" + instanceURL }

func (s *redisFlags) Get(ctx context.Context, instanceURL string) (map[string]bool, error) {
	raw, err := s.rdb.Get(ctx, flagKey(instanceURL)).Bytes()
	if err == redis.Nil {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := map[string]bool{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *redisFlags) Set(ctx context.Context, instanceURL string, flags map[string]bool) error {
	raw, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, flagKey(instanceURL), raw, 0).Err()
}

func (s *redisFlags) Delete(ctx context.Context, instanceURL string) error {
	return s.rdb.Del(ctx, flagKey(instanceURL)).Err()
}
