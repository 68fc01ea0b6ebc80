package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/metrics"
)

var _ domain.Cache = (*RedisCache)(nil)

// RedisCache implements domain.Cache on top of Redis.
type RedisCache struct {
	client redis.Cmdable
}

// NewRedis creates the cache.
func NewRedis(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

// Once runs fn if the key is not set yet. The key is removed again when fn fails.
func (c *RedisCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	start := time.Now()
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", "cache", start, err)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return err
	}
	return nil
}

// Set stores a value.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Get returns a value, or redis.Nil when it is missing.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.client.Get(ctx, key).Bytes()
}
