package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/metrics"
)

// MaxDeliveryAttempts bounds how often a failing alert is redelivered.
const MaxDeliveryAttempts = 5

// Worker delivers quota alerts from the queue to the operations chat.
type Worker struct {
	queue     domain.AlertQueue
	statuses  domain.AlertJobStatusRepo
	notifier  domain.Notifier
	analytics domain.BusinessMetricRepo
	log       zerolog.Logger
	backoff   time.Duration
}

// NewWorker creates the delivery worker. analytics may be nil.
func NewWorker(queue domain.AlertQueue, statuses domain.AlertJobStatusRepo, notifier domain.Notifier, analytics domain.BusinessMetricRepo, logger zerolog.Logger) *Worker {
	return &Worker{
		queue:     queue,
		statuses:  statuses,
		notifier:  notifier,
		analytics: analytics,
		log:       logger,
		backoff:   time.Second,
	}
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("notifier: queue receive failed")
			w.sleep(ctx)
			continue
		}
		w.Process(ctx, job, ack)
	}
}

// Process handles a single job and acknowledges it.
func (w *Worker) Process(ctx context.Context, job domain.QuotaAlertJob, ack domain.AckFunc) {
	jobLog := w.log.With().
		Str("job_id", job.ID).
		Str("user", job.UserID).
		Str("feature", string(job.Quota.Feature)).
		Str("level", string(job.Level)).
		Logger()

	if job.ID == "" {
		jobLog.Error().Msg("notifier: job without id, acknowledging and skipping")
		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("notifier: ack of job without id failed")
		}
		return
	}

	delivered, attempt, err := w.statuses.EnsureAlertJob(ctx, job.ID)
	if err != nil {
		jobLog.Error().Err(err).Msg("notifier: register job failed")
		if ackErr := ack(false); ackErr != nil {
			jobLog.Error().Err(ackErr).Msg("notifier: requeue failed")
		}
		w.sleep(ctx)
		return
	}
	jobLog = jobLog.With().Int("attempt", attempt).Logger()

	if delivered {
		jobLog.Info().Msg("notifier: job already delivered, acknowledging")
		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("notifier: ack of delivered job failed")
		}
		return
	}

	sendErr := w.notifier.Notify(ctx, domain.AlertText(job))
	if sendErr != nil {
		metrics.IncNotifierError()
		if attempt < MaxDeliveryAttempts {
			jobLog.Warn().Err(sendErr).Msg("notifier: delivery failed, will retry")
			if err := ack(false); err != nil {
				jobLog.Error().Err(err).Msg("notifier: requeue after failure failed")
			}
			return
		}
		jobLog.Error().Err(sendErr).Msg("notifier: attempts exhausted, marking job as done")
	}

	if err := w.statuses.MarkAlertJobDelivered(ctx, job.ID); err != nil {
		jobLog.Error().Err(err).Msg("notifier: mark delivered failed")
		if ackErr := ack(false); ackErr != nil {
			jobLog.Error().Err(ackErr).Msg("notifier: requeue after status failure failed")
		}
		w.sleep(ctx)
		return
	}

	if sendErr == nil {
		metrics.IncAlertDelivered()
		w.record(ctx, job, attempt)
	}
	if err := ack(true); err != nil {
		jobLog.Error().Err(err).Msg("notifier: ack failed")
	}
}

func (w *Worker) record(ctx context.Context, job domain.QuotaAlertJob, attempt int) {
	if w.analytics == nil {
		return
	}
	metric := domain.BusinessMetric{
		Event:  domain.BusinessMetricQuotaAlertDelivered,
		UserID: job.UserID,
		Metadata: map[string]any{
			"job_id":       job.ID,
			"feature":      job.Quota.Feature,
			"level":        job.Level,
			"attempt":      attempt,
			"requested_at": job.RequestedAt,
		},
	}
	if err := w.analytics.RecordBusinessMetric(ctx, metric); err != nil {
		w.log.Error().Err(err).Str("event", metric.Event).Msg("notifier: business metric not saved")
	}
}

func (w *Worker) sleep(ctx context.Context) {
	t := time.NewTimer(w.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
