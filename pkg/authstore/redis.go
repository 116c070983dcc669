// pkg/authstore/redis.go
package authstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	recKeyPrefix = "auth:rec:" // instance URL -> record JSON
	appKeyPrefix = "auth:app:" // app ID -> instance URL
	urlSetKey    = "auth:urls" // set of known instance URLs
)

type redisStore struct {
	rdb    *redis.Client
	cipher *Cipher
	log    *zap.SugaredLogger
}

// NewRedis returns a Redis-backed store. cipher may be nil.
func NewRedis(rdb *redis.Client, cipher *Cipher, log *zap.SugaredLogger) Store {
	return &redisStore{rdb: rdb, cipher: cipher, log: log}
}

func (s *redisStore) encode(rec Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if s.cipher != nil {
		return s.cipher.Seal(b)
	}
	return b, nil
}

func (s *redisStore) decode(blob []byte) (Record, error) {
	if s.cipher != nil {
		plain, err := s.cipher.Open(blob)
		if err != nil {
			return Record{}, err
		}
		blob = plain
	}
	var rec Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *redisStore) Get(ctx context.Context, appID string) (Record, error) {
	url, err := s.rdb.Get(ctx, appKeyPrefix+appID).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	rec, err := s.GetByURL(ctx, url)
	if err != nil {
		return Record{}, err
	}
	// A re-install rotates the app ID; a stale index entry must not
	// resolve to the new record.
	if rec.AppID != appID {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *redisStore) GetByURL(ctx context.Context, instanceURL string) (Record, error) {
	blob, err := s.rdb.Get(ctx, recKeyPrefix+instanceURL).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return s.decode(blob)
}

func (s *redisStore) Set(ctx context.Context, rec Record) error {
	blob, err := s.encode(rec)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, recKeyPrefix+rec.InstanceURL, blob, 0)
	pipe.Set(ctx, appKeyPrefix+rec.AppID, rec.InstanceURL, 0)
	pipe.SAdd(ctx, urlSetKey, rec.InstanceURL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) Delete(ctx context.Context, instanceURL string) error {
	rec, err := s.GetByURL(ctx, instanceURL)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, recKeyPrefix+instanceURL)
	pipe.Del(ctx, appKeyPrefix+rec.AppID)
	pipe.SRem(ctx, urlSetKey, instanceURL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) List(ctx context.Context) ([]Record, error) {
	urls, err := s.rdb.SMembers(ctx, urlSetKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(urls))
	for _, u := range urls {
		rec, err := s.GetByURL(ctx, u)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *redisStore) Ready(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
