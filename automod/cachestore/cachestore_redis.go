package cachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisCacheStore shares cached values between warden processes through redis, with a small in-process TinyLFU in front.
//
// A purge only clears the local cache of the process doing it. Other processes may serve their local copy until it expires, so the local TTL is capped.
type RedisCacheStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

const maxLocalTTL = 10 * time.Second

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	local := min(ttl, maxLocalTTL)
	if local <= 0 {
		local = maxLocalTTL
	}
	return &RedisCacheStore{
		cache: cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(10_000, local),
		}),
		ttl: ttl,
	}, nil
}

func redisKey(name, key string) string {
	return "warden/cache/" + entryKey(name, key)
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	var val string
	err := s.cache.Get(ctx, redisKey(name, key), &val)
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", nil
	}
	return val, err
}

func (s *RedisCacheStore) Set(ctx context.Context, name, key string, val string) error {
	return s.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisKey(name, key),
		Value: val,
		TTL:   s.ttl,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	err := s.cache.Delete(ctx, redisKey(name, key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
