package domain

import (
	"context"
	"time"
)

// Cache is a small TTL store.
type Cache interface {
	// Once runs fn only if key is not set yet. The key is released when fn fails.
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Clock returns the current time.
type Clock func() time.Time
