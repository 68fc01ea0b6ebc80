package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/metrics"
)

var _ domain.AlertQueue = (*RabbitAlertQueue)(nil)

// RabbitAlertQueue implements the alert queue over AMQP 0.9.1. Jobs are
// published persistent to a durable queue and consumed with manual acks.
type RabbitAlertQueue struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	prefetch int

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitAlertQueue dials the broker and declares the queue.
func NewRabbitAlertQueue(amqpURL, queue string, prefetch int) (*RabbitAlertQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitAlertQueue{conn: conn, ch: ch, queue: queue, prefetch: prefetch}, nil
}

// Enqueue publishes a job.
func (q *RabbitAlertQueue) Enqueue(ctx context.Context, job domain.QuotaAlertJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.RequestedAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive blocks until a job is delivered or ctx is done.
func (q *RabbitAlertQueue) Receive(ctx context.Context) (domain.QuotaAlertJob, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.QuotaAlertJob{}, nil, err
	}
	select {
	case <-ctx.Done():
		return domain.QuotaAlertJob{}, nil, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			return domain.QuotaAlertJob{}, nil, errors.New("rabbitmq: delivery channel closed")
		}
		var job domain.QuotaAlertJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			_ = d.Reject(false)
			return domain.QuotaAlertJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return d.Ack(false)
			}
			return d.Nack(false, true)
		}
		return job, ack, nil
	}
}

func (q *RabbitAlertQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close closes the channel and the connection.
func (q *RabbitAlertQueue) Close() error {
	chErr := q.ch.Close()
	connErr := q.conn.Close()
	return errors.Join(chErr, connErr)
}
