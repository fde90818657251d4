package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "backtestplot:figure:"

// Redis is a figure cache shared between service instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr string, db int, ttl time.Duration) *Redis {
	return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: addr, DB: db}), ttl)
}

func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	img, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return img, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, img []byte) error {
	return r.client.Set(ctx, keyPrefix+key, img, r.ttl).Err()
}

func (r *Redis) Close() error { return r.client.Close() }
