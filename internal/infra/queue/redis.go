package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/metrics"
)

var _ domain.AlertQueue = (*RedisAlertQueue)(nil)

// RedisAlertQueue implements the alert queue on Redis lists. A received job
// sits in a processing list until it is acked; a negative ack pushes it back.
type RedisAlertQueue struct {
	client     redis.Cmdable
	key        string
	processing string
}

// NewRedisAlertQueue creates a queue under the given key.
func NewRedisAlertQueue(client redis.Cmdable, key string) *RedisAlertQueue {
	return &RedisAlertQueue{client: client, key: key, processing: key + ":processing"}
}

// Enqueue publishes a job.
func (q *RedisAlertQueue) Enqueue(ctx context.Context, job domain.QuotaAlertJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive blocks until a job is available or ctx is done.
func (q *RedisAlertQueue) Receive(ctx context.Context) (domain.QuotaAlertJob, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.QuotaAlertJob{}, nil, err
		}

		raw, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", time.Second).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.QuotaAlertJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.QuotaAlertJob{}, nil, err
		}
		var job domain.QuotaAlertJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// an undecodable payload would be redelivered forever
			decodeErr := fmt.Errorf("decode job: %w", err)
			if remErr := q.drop(raw); remErr != nil {
				return domain.QuotaAlertJob{}, nil, errors.Join(decodeErr, remErr)
			}
			return domain.QuotaAlertJob{}, nil, decodeErr
		}
		return job, q.ackFunc(raw), nil
	}
}

// drop removes a payload from the processing list.
func (q *RedisAlertQueue) drop(raw string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	err := q.client.LRem(ctx, q.processing, 1, raw).Err()
	metrics.ObserveNetworkRequest("redis", "lrem", q.processing, start, err)
	if err != nil {
		return fmt.Errorf("drop undecodable job: %w", err)
	}
	return nil
}

func (q *RedisAlertQueue) ackFunc(raw string) domain.AckFunc {
	return func(success bool) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.processing, 1, raw)
			if !success {
				pipe.RPush(ctx, q.key, raw)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("ack job: %w", err)
		}
		return nil
	}
}

// Requeue moves jobs left in the processing list by a crashed consumer back to the queue.
func (q *RedisAlertQueue) Requeue(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.key, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("requeue: %w", err)
		}
		moved++
	}
}
