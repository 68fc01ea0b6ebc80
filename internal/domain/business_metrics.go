package domain

import (
	"context"
	"time"
)

// BusinessMetric is a product event stored for later analysis.
type BusinessMetric struct {
	Event      string
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricFeedbackSubmitted records a stored feedback.
	BusinessMetricFeedbackSubmitted = "feedback_submitted"
	// BusinessMetricRecommendationServed records a recommendation response.
	BusinessMetricRecommendationServed = "recommendation_served"
	// BusinessMetricUsageConsumed records a metered usage increment.
	BusinessMetricUsageConsumed = "usage_consumed"
	// BusinessMetricQuotaAlertEnqueued records an alert handed to the queue.
	BusinessMetricQuotaAlertEnqueued = "quota_alert_enqueued"
	// BusinessMetricQuotaAlertDelivered records an alert sent to the operations chat.
	BusinessMetricQuotaAlertDelivered = "quota_alert_delivered"
	// BusinessMetricSessionCleared records a "clear chat" action.
	BusinessMetricSessionCleared = "assistant_session_cleared"
)

// BusinessMetricRepo stores business events.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
