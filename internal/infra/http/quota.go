package http

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"nova-xfinity/internal/domain"
)

// QuotaChecker classifies a feature of the user's current usage.
type QuotaChecker interface {
	Check(ctx context.Context, userID string, f domain.Feature) (domain.FeatureQuota, domain.PlanName, error)
}

// QuotaDetails is sent with a QUOTA_EXCEEDED error.
type QuotaDetails struct {
	Feature      domain.Feature  `json:"feature"`
	CurrentUsage int             `json:"currentUsage"`
	Limit        int             `json:"limit"`
	Remaining    int             `json:"remaining"`
	Plan         domain.PlanName `json:"plan"`
}

// QuotaExceededMessage is the message of every QUOTA_EXCEEDED error.
const QuotaExceededMessage = "Quota exceeded. Upgrade your plan to continue."

// NewQuotaDetails builds the error details of an exhausted feature.
func NewQuotaDetails(plan domain.PlanName, q domain.FeatureQuota) QuotaDetails {
	return QuotaDetails{
		Feature:      q.Feature,
		CurrentUsage: q.Used,
		Limit:        q.Limit,
		Remaining:    domain.Remaining(q.Used, q.Limit),
		Plan:         plan,
	}
}

// WriteQuotaExceeded sends the 403 QUOTA_EXCEEDED envelope.
func WriteQuotaExceeded(w http.ResponseWriter, plan domain.PlanName, q domain.FeatureQuota) {
	WriteError(w, http.StatusForbidden, CodeQuotaExceeded, QuotaExceededMessage, NewQuotaDetails(plan, q))
}

// RequireQuota lets a request through only while the feature is within the
// user's plan limit. It must run after JWTAuth.
func RequireQuota(checker QuotaChecker, f domain.Feature, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserID(r.Context())
			if userID == "" {
				WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "Authentication required", nil)
				return
			}
			q, plan, err := checker.Check(r.Context(), userID, f)
			if err != nil {
				logger.Error().Err(err).Str("user", userID).Str("feature", string(f)).Msg("http: quota check failed")
				WriteError(w, http.StatusInternalServerError, CodeQuotaCheck, "Failed to check quota. Please try again.", nil)
				return
			}
			if !q.Allowed {
				WriteQuotaExceeded(w, plan, q)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
