package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"nova-xfinity/internal/domain"
)

var (
	FeedbackSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_submitted_total",
		Help: "Feedback records stored",
	}, []string{"provider", "content_type"})

	RecommendationsServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendations_served_total",
		Help: "Provider recommendations returned",
	}, []string{"reason", "provider"})

	QuotaRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_rejected_total",
		Help: "Usage requests refused because the quota was exhausted",
	}, []string{"feature"})

	QuotaAlertsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_alerts_enqueued_total",
		Help: "Quota alerts put on the queue",
	}, []string{"level"})

	QuotaAlertsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quota_alerts_delivered_total",
		Help: "Quota alerts delivered to the operations chat",
	})

	NotifierSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_send_errors_total",
		Help: "Errors while sending alert messages",
	})

	AssistantTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assistant_estimated_tokens_total",
		Help: "Estimated tokens added to assistant sessions",
	})

	AssistantSessionsCleared = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assistant_sessions_cleared_total",
		Help: "Assistant sessions reset by users",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Duration of outgoing network requests",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Number of outgoing network requests",
	}, []string{"component", "operation", "target", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of served API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
)

// MustRegister registers all collectors.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FeedbackSubmitted,
		RecommendationsServed,
		QuotaRejected,
		QuotaAlertsEnqueued,
		QuotaAlertsDelivered,
		NotifierSendErrors,
		AssistantTokens,
		AssistantSessionsCleared,
		NetworkRequestDuration,
		NetworkRequestTotal,
		HTTPRequestDuration,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer runs a standalone /metrics endpoint until ctx is done.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest records duration and status of an outgoing request.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveHTTPRequest records a served API request.
func ObserveHTTPRequest(route, method string, code int, start time.Time) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(time.Since(start).Seconds())
}

func IncFeedbackSubmitted(provider domain.Provider, contentType domain.ContentType) {
	FeedbackSubmitted.WithLabelValues(string(provider), string(contentType)).Inc()
}

func IncRecommendation(reason domain.RecommendationReason, provider domain.Provider) {
	RecommendationsServed.WithLabelValues(string(reason), string(provider)).Inc()
}

func IncQuotaRejected(f domain.Feature) {
	QuotaRejected.WithLabelValues(string(f)).Inc()
}

func IncQuotaAlert(level domain.AlertLevel) {
	QuotaAlertsEnqueued.WithLabelValues(string(level)).Inc()
}

func IncAlertDelivered() {
	QuotaAlertsDelivered.Inc()
}

func IncNotifierError() {
	NotifierSendErrors.Inc()
}

// AddAssistantTokens counts estimated assistant tokens.
func AddAssistantTokens(n int) {
	if n > 0 {
		AssistantTokens.Add(float64(n))
	}
}

func IncSessionCleared() {
	AssistantSessionsCleared.Inc()
}
