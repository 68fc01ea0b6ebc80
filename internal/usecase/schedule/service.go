package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/metrics"
)

// DedupTTL keeps an alert key long enough to cover a whole billing month.
const DedupTTL = 32 * 24 * time.Hour

// AlertSource lists the quota alerts that are currently due.
type AlertSource interface {
	Alerts(ctx context.Context, warnPercent int) ([]domain.QuotaAlertJob, error)
}

// Service periodically checks quotas and enqueues alerts, at most once per
// user, feature, level and month.
type Service struct {
	source      AlertSource
	queue       domain.AlertQueue
	cache       domain.Cache
	analytics   domain.BusinessMetricRepo
	log         zerolog.Logger
	warnPercent int
}

// NewService creates the scheduler service. analytics may be nil.
func NewService(source AlertSource, queue domain.AlertQueue, cache domain.Cache, analytics domain.BusinessMetricRepo, logger zerolog.Logger, warnPercent int) *Service {
	return &Service{
		source:      source,
		queue:       queue,
		cache:       cache,
		analytics:   analytics,
		log:         logger,
		warnPercent: warnPercent,
	}
}

// RunOnce performs a single quota check and returns how many alerts were enqueued.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	jobs, err := s.source.Alerts(ctx, s.warnPercent)
	if err != nil {
		return 0, fmt.Errorf("collect alerts: %w", err)
	}
	enqueued := 0
	for _, job := range jobs {
		job.ID = uuid.NewString()
		sent := false
		err := s.cache.Once(ctx, job.DedupKey(), DedupTTL, func() error {
			if err := s.queue.Enqueue(ctx, job); err != nil {
				return err
			}
			sent = true
			return nil
		})
		if err != nil {
			s.log.Error().Err(err).Str("user", job.UserID).Str("feature", string(job.Quota.Feature)).Msg("scheduler: failed to enqueue quota alert")
			continue
		}
		if !sent {
			continue
		}
		enqueued++
		metrics.IncQuotaAlert(job.Level)
		s.record(ctx, job)
	}
	return enqueued, nil
}

// Run checks quotas every interval until ctx is done. The first check runs immediately.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := s.RunOnce(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("scheduler: quota check failed")
		} else {
			s.log.Info().Int("enqueued", n).Msg("scheduler: quota check done")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) record(ctx context.Context, job domain.QuotaAlertJob) {
	if s.analytics == nil {
		return
	}
	metric := domain.BusinessMetric{
		Event:  domain.BusinessMetricQuotaAlertEnqueued,
		UserID: job.UserID,
		Metadata: map[string]any{
			"job_id":     job.ID,
			"feature":    job.Quota.Feature,
			"level":      job.Level,
			"used":       job.Quota.Used,
			"limit":      job.Quota.Limit,
			"percentage": job.Quota.Percentage,
		},
	}
	if err := s.analytics.RecordBusinessMetric(ctx, metric); err != nil {
		s.log.Error().Err(err).Str("event", metric.Event).Msg("scheduler: failed to store business metric")
	}
}
