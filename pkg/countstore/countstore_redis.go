package countstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisCountPrefix = "wall/count/"

// счётчик без событий неделю считается сброшенным
const redisCountTTL = 7 * 24 * time.Hour

type RedisCountStore struct {
	Client *redis.Client
}

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisCountStore{Client: rdb}, nil
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string) (int, error) {
	key := redisCountPrefix + bucket(name, val)
	multi := s.Client.TxPipeline()
	incr := multi.Incr(ctx, key)
	multi.Expire(ctx, key, redisCountTTL)
	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *RedisCountStore) Reset(ctx context.Context, name, val string) error {
	return s.Client.Del(ctx, redisCountPrefix+bucket(name, val)).Err()
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val string) (int, error) {
	c, err := s.Client.Get(ctx, redisCountPrefix+bucket(name, val)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}
