package domain

import (
	"context"
	"fmt"
	"time"
)

// AlertLevel is how close a user is to a quota limit.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertExceeded AlertLevel = "exceeded"
)

// AlertWarningPercent is the default usage share that triggers a warning alert.
const AlertWarningPercent = 80

// AlertLevelFor decides whether usage deserves an alert. Unlimited and zero limits
// never alert, and neither does a feature that was not used.
func AlertLevelFor(used, limit, warnPercent int) (AlertLevel, bool) {
	if limit == Unlimited || limit <= 0 || used <= 0 {
		return "", false
	}
	if used >= limit {
		return AlertExceeded, true
	}
	if used*100 >= warnPercent*limit {
		return AlertWarning, true
	}
	return "", false
}

// QuotaAlertJob asks the notifier to deliver a quota alert.
type QuotaAlertJob struct {
	ID          string       `json:"job_id,omitempty"`
	UserID      string       `json:"user_id"`
	Plan        PlanName     `json:"plan"`
	Level       AlertLevel   `json:"level"`
	Quota       FeatureQuota `json:"quota"`
	PeriodStart time.Time    `json:"period_start"`
	RequestedAt time.Time    `json:"requested_at"`
}

// DedupKey is stable for one user, feature, level and period.
func (j QuotaAlertJob) DedupKey() string {
	return fmt.Sprintf("quota_alert:%s:%s:%s:%s", j.UserID, j.Quota.Feature, j.Level, j.PeriodStart.Format("2006-01"))
}

// AlertQueue carries quota alert jobs from the scheduler to the notifier.
type AlertQueue interface {
	Enqueue(ctx context.Context, job QuotaAlertJob) error
	Receive(ctx context.Context) (QuotaAlertJob, AckFunc, error)
}

// AckFunc confirms a job or asks for redelivery.
type AckFunc func(success bool) error

// AlertJobStatusRepo tracks delivery attempts of alert jobs.
type AlertJobStatusRepo interface {
	// EnsureAlertJob registers an attempt and returns whether the job was already delivered
	// together with the current attempt number.
	EnsureAlertJob(ctx context.Context, jobID string) (delivered bool, attempt int, err error)
	MarkAlertJobDelivered(ctx context.Context, jobID string) error
}

// AlertText renders the message sent to the operations chat.
func AlertText(j QuotaAlertJob) string {
	q := j.Quota
	name := q.Feature.DisplayName()
	var body string
	if j.Level == AlertExceeded {
		body = fmt.Sprintf("Reached the %s quota limit (%d/%d).", name, q.Used, q.Limit)
	} else {
		body = fmt.Sprintf("Using %d%% of the %s quota (%d/%d, %d remaining).", q.Percentage, name, q.Used, q.Limit, q.Remaining)
	}
	return fmt.Sprintf("Quota %s\nUser: %s\nPlan: %s\nPeriod: %s\n%s",
		j.Level, j.UserID, j.Plan, j.PeriodStart.Format("2006-01"), body)
}

// Notifier delivers a text to the operations channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
