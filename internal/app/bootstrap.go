// Package app opens the storage, cache and queue backends selected by configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"nova-xfinity/internal/adapters/repo"
	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/cache"
	"nova-xfinity/internal/infra/config"
	"nova-xfinity/internal/infra/db"
	"nova-xfinity/internal/infra/queue"
)

// Storage is implemented by both the Postgres and the SQLite repositories.
type Storage interface {
	domain.FeedbackRepo
	domain.SubscriptionRepo
	domain.UsageRepo
	domain.AlertJobStatusRepo
	domain.BusinessMetricRepo
	UpsertSubscription(ctx context.Context, sub domain.Subscription) error
}

var (
	_ Storage = (*repo.Postgres)(nil)
	_ Storage = (*repo.SQLite)(nil)
)

// ErrRedisRequired is returned when a component needs Redis but REDIS_ADDR is empty.
var ErrRedisRequired = errors.New("REDIS_ADDR is required")

// OpenStorage connects to the configured database and ensures its schema.
func OpenStorage(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (Storage, func(), error) {
	if cfg.UsesSQLite() {
		store, err := repo.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("path", store.Path()).Msg("storage: sqlite opened")
		return store, func() { _ = store.Close() }, nil
	}

	if cfg.Storage.PGDSN == "" {
		return nil, nil, errors.New("PG_DSN is required for the postgres storage driver")
	}
	pool, err := db.Connect(ctx, cfg.Storage.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := repo.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("storage: postgres connected")
	return store, pool.Close, nil
}

// OpenRedis returns nil without an error when REDIS_ADDR is not set.
func OpenRedis(ctx context.Context, cfg config.AppConfig) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Caches picks Redis-backed stores when a client is given and in-process ones otherwise.
func Caches(client *redis.Client, sessionTTL time.Duration) (domain.Cache, domain.SessionStore) {
	if client == nil {
		return cache.NewMemory(), cache.NewMemorySessionStore()
	}
	return cache.NewRedis(client), cache.NewRedisSessionStore(client, sessionTTL)
}

// OpenAlertQueue opens the configured alert queue.
func OpenAlertQueue(cfg config.AppConfig, client *redis.Client) (domain.AlertQueue, func(), error) {
	if cfg.UsesRabbit() {
		if cfg.Queue.RabbitURL == "" {
			return nil, nil, errors.New("RABBITMQ_URL is required for the rabbitmq queue driver")
		}
		q, err := queue.NewRabbitAlertQueue(cfg.Queue.RabbitURL, cfg.Queue.RabbitQueue, cfg.Queue.RabbitPrefetch)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil
	}
	if client == nil {
		return nil, nil, ErrRedisRequired
	}
	return queue.NewRedisAlertQueue(client, cfg.Queue.AlertKey), func() {}, nil
}
