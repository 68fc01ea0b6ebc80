package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/metrics"
)

// ErrEmptyTurn is returned when a turn carries no messages.
var ErrEmptyTurn = errors.New("turn has no messages")

// UsageMeter charges metered features against the user's plan.
type UsageMeter interface {
	Consume(ctx context.Context, userID string, f domain.Feature, amount int) (domain.UsageReport, error)
	Report(ctx context.Context, userID string) (domain.UsageReport, error)
}

// TurnResult is the outcome of AddTurn.
type TurnResult struct {
	Tokens        int    `json:"tokens"`
	SessionTokens int    `json:"sessionTokens"`
	Route         string `json:"route,omitempty"`
}

// SessionUsage combines the session total with the monthly token quota.
type SessionUsage struct {
	SessionTokens int               `json:"sessionTokens"`
	Monthly       domain.QuotaUsage `json:"monthly"`
}

// Service tracks estimated tokens of assistant sessions.
type Service struct {
	store     domain.SessionStore
	meter     UsageMeter
	analytics domain.BusinessMetricRepo
	log       zerolog.Logger
}

// NewService creates the session service. meter and analytics may be nil.
func NewService(store domain.SessionStore, meter UsageMeter, analytics domain.BusinessMetricRepo, logger zerolog.Logger) *Service {
	return &Service{store: store, meter: meter, analytics: analytics, log: logger}
}

// sessionKey scopes a client session id to its user.
func sessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// AddTurn estimates the messages of a turn, charges them against the monthly
// token quota and adds them to the session total. When the quota refuses the
// charge the session is left untouched.
func (s *Service) AddTurn(ctx context.Context, userID, sessionID string, msgs []domain.ChatMessage) (TurnResult, error) {
	if len(msgs) == 0 {
		return TurnResult{}, ErrEmptyTurn
	}
	tokens := EstimateConversation(msgs)
	if s.meter != nil {
		if _, err := s.meter.Consume(ctx, userID, domain.FeatureTokens, tokens); err != nil {
			return TurnResult{}, err
		}
	}
	key := sessionKey(userID, sessionID)
	total, err := s.store.AddTokens(ctx, key, tokens)
	if err != nil {
		return TurnResult{}, fmt.Errorf("add session tokens: %w", err)
	}
	if err := s.store.AppendConversation(ctx, key, msgs); err != nil {
		// transcript is best effort
		s.log.Warn().Err(err).Str("session", sessionID).Msg("assistant: failed to store conversation")
	}
	metrics.AddAssistantTokens(tokens)

	result := TurnResult{Tokens: tokens, SessionTokens: total}
	if tool := lastTool(msgs); tool != "" {
		result.Route = RouteFor(tool)
	}
	return result, nil
}

func lastTool(msgs []domain.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if tool := strings.TrimSpace(msgs[i].Tool); tool != "" {
			return tool
		}
	}
	return ""
}

// Usage returns the session total and the monthly token quota.
func (s *Service) Usage(ctx context.Context, userID, sessionID string) (SessionUsage, error) {
	total, err := s.store.Tokens(ctx, sessionKey(userID, sessionID))
	if err != nil {
		return SessionUsage{}, fmt.Errorf("get session tokens: %w", err)
	}
	usage := SessionUsage{SessionTokens: total}
	if s.meter != nil {
		report, err := s.meter.Report(ctx, userID)
		if err != nil {
			return SessionUsage{}, err
		}
		usage.Monthly = report.Features[domain.FeatureTokens]
	}
	return usage, nil
}

// Conversation returns the stored transcript of a session.
func (s *Service) Conversation(ctx context.Context, userID, sessionID string) ([]domain.ChatMessage, error) {
	msgs, err := s.store.Conversation(ctx, sessionKey(userID, sessionID))
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}

// Clear resets the session total to zero and drops the transcript.
func (s *Service) Clear(ctx context.Context, userID, sessionID string) error {
	if err := s.store.Clear(ctx, sessionKey(userID, sessionID)); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	metrics.IncSessionCleared()
	if s.analytics != nil {
		metric := domain.BusinessMetric{
			Event:    domain.BusinessMetricSessionCleared,
			UserID:   userID,
			Metadata: map[string]any{"session_id": sessionID},
		}
		if err := s.analytics.RecordBusinessMetric(ctx, metric); err != nil {
			s.log.Error().Err(err).Str("event", metric.Event).Msg("assistant: failed to store business metric")
		}
	}
	return nil
}
