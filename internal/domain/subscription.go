package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrQuotaExceeded        = errors.New("usage limit exceeded")
)

// SubscriptionStatus is the billing state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
)

// Subscription ties a user to a plan.
type Subscription struct {
	UserID             string             `json:"userId"`
	Plan               PlanName           `json:"plan"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart *time.Time         `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time         `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool               `json:"cancelAtPeriodEnd"`
}

// FreeSubscription is assumed for users without a stored subscription.
func FreeSubscription(userID string) Subscription {
	return Subscription{UserID: userID, Plan: PlanFree, Status: SubscriptionActive}
}

// MonthPeriod returns the calendar month containing t, in UTC.
func MonthPeriod(t time.Time) UsagePeriod {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Millisecond)
	return UsagePeriod{Start: start, End: end}
}

// UsageRecord holds one user's counters for one period.
type UsageRecord struct {
	UserID   string
	Period   UsagePeriod
	Counters map[Feature]int
}

// Used returns the counter of a feature.
func (r UsageRecord) Used(f Feature) int {
	return r.Counters[f]
}

// SubscriptionRepo reads subscriptions.
type SubscriptionRepo interface {
	// GetSubscription returns ErrSubscriptionNotFound when the user has none.
	GetSubscription(ctx context.Context, userID string) (Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]Subscription, error)
}

// UsageRepo stores per-period usage counters.
type UsageRepo interface {
	// GetOrCreateUsage returns the record of the period, creating a zeroed one on first access.
	GetOrCreateUsage(ctx context.Context, userID string, period UsagePeriod) (UsageRecord, error)
	// IncrementUsage adds amount to a feature counter and returns the updated record.
	IncrementUsage(ctx context.Context, userID string, period UsagePeriod, f Feature, amount int) (UsageRecord, error)
}
