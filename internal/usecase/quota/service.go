package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/metrics"
)

// ExceededError carries the quota state that caused a refusal.
type ExceededError struct {
	Plan  domain.PlanName
	Quota domain.FeatureQuota
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s for %s", domain.ErrQuotaExceeded, e.Quota.Feature)
}

func (e *ExceededError) Unwrap() error { return domain.ErrQuotaExceeded }

// Service reports and meters per-period feature usage.
type Service struct {
	subs      domain.SubscriptionRepo
	usage     domain.UsageRepo
	analytics domain.BusinessMetricRepo
	log       zerolog.Logger
	now       domain.Clock
}

// NewService creates the usage service. analytics may be nil.
func NewService(subs domain.SubscriptionRepo, usage domain.UsageRepo, analytics domain.BusinessMetricRepo, logger zerolog.Logger) *Service {
	return &Service{
		subs:      subs,
		usage:     usage,
		analytics: analytics,
		log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Subscription returns the user's subscription; users without one are on FREE.
func (s *Service) Subscription(ctx context.Context, userID string) (domain.Subscription, error) {
	sub, err := s.subs.GetSubscription(ctx, userID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return domain.FreeSubscription(userID), nil
	}
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// Report returns the usage of every feature in the current month.
func (s *Service) Report(ctx context.Context, userID string) (domain.UsageReport, error) {
	sub, err := s.Subscription(ctx, userID)
	if err != nil {
		return domain.UsageReport{}, err
	}
	period := domain.MonthPeriod(s.now())
	record, err := s.usage.GetOrCreateUsage(ctx, userID, period)
	if err != nil {
		return domain.UsageReport{}, fmt.Errorf("get usage: %w", err)
	}
	return buildReport(sub.Plan, record), nil
}

func buildReport(planName domain.PlanName, record domain.UsageRecord) domain.UsageReport {
	plan := domain.PlanFor(planName)
	report := domain.UsageReport{
		Plan:     plan.Name,
		Period:   record.Period,
		Features: make(map[domain.Feature]domain.QuotaUsage, len(domain.Features)),
	}
	for _, f := range domain.Features {
		report.Features[f] = domain.NewQuotaUsage(record.Used(f), plan.Limit(f))
	}
	return report
}

// Check classifies one feature of the user's current usage.
func (s *Service) Check(ctx context.Context, userID string, f domain.Feature) (domain.FeatureQuota, domain.PlanName, error) {
	report, err := s.Report(ctx, userID)
	if err != nil {
		return domain.FeatureQuota{}, "", err
	}
	return domain.CheckFeature(report, f), report.Plan, nil
}

// Consume records amount units of a feature. It refuses with an *ExceededError
// when the feature is already at its limit. Tokens are checked against the
// projected total instead, so one large charge cannot overshoot the limit.
func (s *Service) Consume(ctx context.Context, userID string, f domain.Feature, amount int) (domain.UsageReport, error) {
	if amount <= 0 {
		amount = 1
	}
	sub, err := s.Subscription(ctx, userID)
	if err != nil {
		return domain.UsageReport{}, err
	}
	period := domain.MonthPeriod(s.now())
	record, err := s.usage.GetOrCreateUsage(ctx, userID, period)
	if err != nil {
		return domain.UsageReport{}, fmt.Errorf("get usage: %w", err)
	}
	limit := domain.PlanFor(sub.Plan).Limit(f)
	allowed := domain.WithinLimit(record.Used(f), limit)
	if f == domain.FeatureTokens {
		allowed = domain.FitsLimit(record.Used(f), amount, limit)
	}
	if !allowed {
		report := buildReport(sub.Plan, record)
		metrics.IncQuotaRejected(f)
		return report, &ExceededError{Plan: report.Plan, Quota: domain.CheckFeature(report, f)}
	}
	record, err = s.usage.IncrementUsage(ctx, userID, period, f, amount)
	if err != nil {
		return domain.UsageReport{}, fmt.Errorf("increment usage: %w", err)
	}
	s.record(ctx, domain.BusinessMetric{
		Event:    domain.BusinessMetricUsageConsumed,
		UserID:   userID,
		Metadata: map[string]any{"feature": f, "amount": amount, "used": record.Used(f)},
	})
	return buildReport(sub.Plan, record), nil
}

// Alerts returns one job per feature of an active subscription that has reached
// warnPercent of its limit or exceeded it. Unlimited features, zero limits and
// unused features are skipped.
func (s *Service) Alerts(ctx context.Context, warnPercent int) ([]domain.QuotaAlertJob, error) {
	if warnPercent <= 0 {
		warnPercent = domain.AlertWarningPercent
	}
	subs, err := s.subs.ListActiveSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	now := s.now()
	period := domain.MonthPeriod(now)
	var jobs []domain.QuotaAlertJob
	for _, sub := range subs {
		record, err := s.usage.GetOrCreateUsage(ctx, sub.UserID, period)
		if err != nil {
			s.log.Error().Err(err).Str("user", sub.UserID).Msg("quota: failed to load usage")
			continue
		}
		report := buildReport(sub.Plan, record)
		for _, f := range domain.Features {
			usage := report.Features[f]
			level, ok := domain.AlertLevelFor(usage.Used, usage.Limit, warnPercent)
			if !ok {
				continue
			}
			jobs = append(jobs, domain.QuotaAlertJob{
				UserID:      sub.UserID,
				Plan:        report.Plan,
				Level:       level,
				Quota:       domain.CheckFeature(report, f),
				PeriodStart: period.Start,
				RequestedAt: now,
			})
		}
	}
	return jobs, nil
}

func (s *Service) record(ctx context.Context, metric domain.BusinessMetric) {
	if s.analytics == nil {
		return
	}
	if err := s.analytics.RecordBusinessMetric(ctx, metric); err != nil {
		s.log.Error().Err(err).Str("event", metric.Event).Msg("quota: failed to store business metric")
	}
}
