package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"nova-xfinity/internal/domain"
	httpinfra "nova-xfinity/internal/infra/http"
	"nova-xfinity/internal/usecase/assistant"
	"nova-xfinity/internal/usecase/feedback"
	"nova-xfinity/internal/usecase/quota"
	"nova-xfinity/internal/usecase/settings"
)

// FeedbackService is the feedback use case as seen by the API.
type FeedbackService interface {
	Submit(ctx context.Context, userID string, in domain.FeedbackInput) (domain.Feedback, error)
	Stats(ctx context.Context, q feedback.StatsQuery) (domain.FeedbackStats, error)
	Recommend(ctx context.Context, contentType domain.ContentType, userID string, minRating float64) (domain.Recommendation, error)
	History(ctx context.Context, userID string, limit, offset int) (domain.FeedbackPage, error)
}

// UsageService is the quota use case as seen by the API.
type UsageService interface {
	httpinfra.QuotaChecker
	Subscription(ctx context.Context, userID string) (domain.Subscription, error)
	Report(ctx context.Context, userID string) (domain.UsageReport, error)
	Consume(ctx context.Context, userID string, f domain.Feature, amount int) (domain.UsageReport, error)
}

// AssistantService tracks assistant sessions.
type AssistantService interface {
	AddTurn(ctx context.Context, userID, sessionID string, msgs []domain.ChatMessage) (assistant.TurnResult, error)
	Usage(ctx context.Context, userID, sessionID string) (assistant.SessionUsage, error)
	Conversation(ctx context.Context, userID, sessionID string) ([]domain.ChatMessage, error)
	Clear(ctx context.Context, userID, sessionID string) error
}

// SettingsService owns the platform settings.
type SettingsService interface {
	Get() domain.SettingsView
	Apply(ctx context.Context, u settings.Update) (domain.SettingsView, error)
}

// Handler serves the REST API.
type Handler struct {
	feedback  FeedbackService
	usage     UsageService
	assistant AssistantService
	settings  SettingsService
	log       zerolog.Logger

	windowDays int
	minRating  float64
}

func NewHandler(fb FeedbackService, usage UsageService, as AssistantService, st SettingsService, logger zerolog.Logger) *Handler {
	return &Handler{
		feedback:   fb,
		usage:      usage,
		assistant:  as,
		settings:   st,
		log:        logger,
		windowDays: feedback.DefaultWindowDays,
		minRating:  domain.DefaultMinRating,
	}
}

// WithFeedbackDefaults overrides the stats window and recommendation threshold
// used when a request does not pass them. Non-positive values are ignored.
func (h *Handler) WithFeedbackDefaults(windowDays int, minRating float64) *Handler {
	if windowDays > 0 {
		h.windowDays = windowDays
	}
	if minRating > 0 {
		h.minRating = minRating
	}
	return h
}

// Routes mounts the authenticated API on r.
func (h *Handler) Routes(r chi.Router, jwtSecret string) {
	r.Group(func(r chi.Router) {
		r.Use(httpinfra.JWTAuth(jwtSecret))

		r.Route("/api/feedback", func(r chi.Router) {
			r.Post("/", h.submitFeedback)
			r.Get("/stats", h.feedbackStats)
			r.Get("/recommend", h.recommend)
			r.Get("/history", h.feedbackHistory)
		})

		r.Route("/api/subscription", func(r chi.Router) {
			r.Get("/status", h.subscriptionStatus)
			r.Get("/usage", h.usageReport)
			r.Post("/usage/{feature}", h.consumeUsage)
		})

		r.Route("/api/assistant/sessions/{sessionID}", func(r chi.Router) {
			r.With(httpinfra.RequireQuota(h.usage, domain.FeatureTokens, h.log)).Post("/turns", h.addTurn)
			r.Get("/tokens", h.sessionTokens)
			r.Get("/conversation", h.conversation)
			r.Delete("/", h.clearSession)
		})

		r.Route("/api/admin/settings", func(r chi.Router) {
			r.Get("/", h.getSettings)
			r.Put("/", h.putSettings)
		})
	})
}

// writeServiceError maps use case errors to the response envelope.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	var exceeded *quota.ExceededError
	switch {
	case errors.As(err, &verr):
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeValidation, verr.Message, nil)
	case errors.As(err, &exceeded):
		httpinfra.WriteQuotaExceeded(w, exceeded.Plan, exceeded.Quota)
	case errors.Is(err, domain.ErrQuotaExceeded):
		httpinfra.WriteError(w, http.StatusForbidden, httpinfra.CodeQuotaExceeded, httpinfra.QuotaExceededMessage, nil)
	case errors.Is(err, domain.ErrUnknownFeature):
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeValidation, "Invalid feature. Must be one of: "+featureList(), nil)
	case errors.Is(err, assistant.ErrEmptyTurn):
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeValidation, "messages must not be empty", nil)
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrSubscriptionNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, httpinfra.CodeNotFound, err.Error(), nil)
	default:
		h.log.Error().Err(err).
			Str("request_id", httpinfra.RequestID(r)).
			Str("path", r.URL.Path).
			Msg("api: request failed")
		httpinfra.WriteError(w, http.StatusInternalServerError, httpinfra.CodeInternal, "Internal server error", nil)
	}
}

func featureList() string {
	names := make([]string, len(domain.Features))
	for i, f := range domain.Features {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, httpinfra.CodeValidation, "invalid request body", nil)
		return false
	}
	return true
}

// queryInt parses a positive integer query parameter; anything else yields def.
func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// queryFloat parses a non-zero float query parameter; anything else yields def.
func queryFloat(r *http.Request, key string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get(key)), 64)
	if err != nil || f == 0 || math.IsNaN(f) {
		return def
	}
	return f
}
