package countstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisCountPrefix string = "count/"

type RedisCountStore struct {
	Client *redis.Client
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	rcs := RedisCountStore{
		Client: rdb,
	}
	return &rcs, nil
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	key := redisCountPrefix + periodBucket(name, val, period)
	c, err := s.Client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string) error {

	var key string

	// increment multiple counters in a single redis round-trip
	multi := s.Client.Pipeline()

	key = redisCountPrefix + periodBucket(name, val, PeriodHour)
	multi.Incr(ctx, key)
	multi.Expire(ctx, key, 2*time.Hour)

	key = redisCountPrefix + periodBucket(name, val, PeriodDay)
	multi.Incr(ctx, key)
	multi.Expire(ctx, key, 48*time.Hour)

	key = redisCountPrefix + periodBucket(name, val, PeriodTotal)
	multi.Incr(ctx, key)
	// no expiration for total

	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisCountStore) Decrement(ctx context.Context, name, val string) error {
	return s.Client.Decr(ctx, redisCountPrefix+periodBucket(name, val, PeriodTotal)).Err()
}

func (s *RedisCountStore) Reset(ctx context.Context, name, val string) error {
	keys := make([]string, 0, len(Periods))
	for _, p := range Periods {
		keys = append(keys, redisCountPrefix+periodBucket(name, val, p))
	}
	return s.Client.Del(ctx, keys...).Err()
}

func (s *RedisCountStore) Claim(ctx context.Context, name, val string) (bool, error) {
	return s.Client.SetNX(ctx, redisCountPrefix+claimBucket(name, val), 1, 48*time.Hour).Result()
}

func (s *RedisCountStore) Release(ctx context.Context, name, val string) error {
	return s.Client.Del(ctx, redisCountPrefix+claimBucket(name, val)).Err()
}
