package feedback

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nova-xfinity/internal/adapters/ranker"
	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/metrics"
)

// DefaultHistoryLimit is the page size of History when the caller passes none.
const DefaultHistoryLimit = 20

// Service stores feedback and turns it into statistics and provider recommendations.
type Service struct {
	repo      domain.FeedbackRepo
	ranker    domain.ProviderRanker
	analytics domain.BusinessMetricRepo
	log       zerolog.Logger
	now       domain.Clock
}

// NewService creates the feedback service. analytics may be nil.
func NewService(repo domain.FeedbackRepo, rnk domain.ProviderRanker, analytics domain.BusinessMetricRepo, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		ranker:    rnk,
		analytics: analytics,
		log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates and stores a feedback record.
func (s *Service) Submit(ctx context.Context, userID string, in domain.FeedbackInput) (domain.Feedback, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Feedback{}, domain.ErrFeedbackUserEmpty
	}
	if err := domain.ValidateRating(in.Rating); err != nil {
		return domain.Feedback{}, err
	}
	contentType, err := domain.ParseContentType(in.ContentType)
	if err != nil {
		return domain.Feedback{}, err
	}
	provider, err := domain.ParseProvider(in.Provider)
	if err != nil {
		return domain.Feedback{}, err
	}

	fb := domain.Feedback{
		ID:          uuid.NewString(),
		UserID:      userID,
		ContentType: contentType,
		Provider:    provider,
		Model:       strings.TrimSpace(in.Model),
		Rating:      in.Rating,
		Comment:     strings.TrimSpace(in.Comment),
		ContentID:   strings.TrimSpace(in.ContentID),
		Metadata:    in.Metadata,
		CreatedAt:   s.now(),
	}
	saved, err := s.repo.CreateFeedback(ctx, fb)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("save feedback: %w", err)
	}

	metrics.IncFeedbackSubmitted(saved.Provider, saved.ContentType)
	s.record(ctx, domain.BusinessMetric{
		Event:  domain.BusinessMetricFeedbackSubmitted,
		UserID: userID,
		Metadata: map[string]any{
			"feedback_id":  saved.ID,
			"provider":     saved.Provider,
			"content_type": saved.ContentType,
			"rating":       saved.Rating,
		},
	})
	return saved, nil
}

// StatsQuery selects the records Stats aggregates. Empty fields match everything.
type StatsQuery struct {
	UserID      string
	ContentType domain.ContentType
	Days        int
}

// Stats aggregates the feedback matching q over its window.
func (s *Service) Stats(ctx context.Context, q StatsQuery) (domain.FeedbackStats, error) {
	if q.Days <= 0 {
		q.Days = DefaultWindowDays
	}
	now := s.now()
	records, err := s.repo.ListFeedback(ctx, domain.FeedbackFilter{
		UserID:      q.UserID,
		ContentType: q.ContentType,
		Since:       now.AddDate(0, 0, -q.Days),
	})
	if err != nil {
		return domain.FeedbackStats{}, fmt.Errorf("list feedback: %w", err)
	}
	return Aggregate(records, now, q.Days), nil
}

// Recommend picks the provider and model with the best feedback for a content type.
// A zero or NaN threshold means DefaultMinRating; negative thresholds are kept.
func (s *Service) Recommend(ctx context.Context, contentType domain.ContentType, userID string, minRating float64) (domain.Recommendation, error) {
	if minRating == 0 || math.IsNaN(minRating) {
		minRating = domain.DefaultMinRating
	}
	stats, err := s.Stats(ctx, StatsQuery{UserID: userID, ContentType: contentType, Days: DefaultWindowDays})
	if err != nil {
		return domain.Recommendation{}, err
	}
	rec := s.recommendFrom(stats, minRating)

	metrics.IncRecommendation(rec.Reason, rec.Provider)
	s.record(ctx, domain.BusinessMetric{
		Event:  domain.BusinessMetricRecommendationServed,
		UserID: userID,
		Metadata: map[string]any{
			"content_type": contentType,
			"provider":     rec.Provider,
			"model":        rec.Model,
			"reason":       rec.Reason,
			"confidence":   rec.Confidence,
		},
	})
	return rec, nil
}

func (s *Service) recommendFrom(stats domain.FeedbackStats, minRating float64) domain.Recommendation {
	if stats.TotalFeedback == 0 {
		return domain.NoFeedbackRecommendation()
	}

	ranked := s.ranker.Rank(stats.ProviderStats, minRating)
	if len(ranked) == 0 {
		all := s.ranker.Rank(stats.ProviderStats, 0)
		if len(all) == 0 {
			s.log.Warn().Int("total_feedback", stats.TotalFeedback).Msg("feedback: no provider to rank, using default")
			return domain.NoFeedbackRecommendation()
		}
		best := all[0]
		return domain.Recommendation{
			Provider:   best.Provider,
			Model:      domain.DefaultModel(best.Provider),
			Reason:     domain.ReasonBestAvailable,
			Confidence: best.Stats.AverageRating / 5,
			Warning:    domain.WarningBelowThreshold,
		}
	}

	best := ranked[0]
	model := domain.DefaultModel(best.Provider)
	if m, ok := ranker.BestModel(stats.ModelsFor(best.Provider), minRating); ok {
		model = m.Model
	}
	return domain.Recommendation{
		Provider:   best.Provider,
		Model:      model,
		Reason:     domain.ReasonFeedbackBased,
		Confidence: best.Stats.AverageRating / 5,
		Stats: &domain.RecommendationStats{
			AverageRating: best.Stats.AverageRating,
			PositiveRate:  best.Stats.PositiveRate,
			TotalFeedback: best.Stats.Total,
		},
	}
}

// History returns a page of the user's feedback, newest first.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) (domain.FeedbackPage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.repo.ListUserFeedback(ctx, userID, limit, offset)
	if err != nil {
		return domain.FeedbackPage{}, fmt.Errorf("list user feedback: %w", err)
	}
	if items == nil {
		items = []domain.Feedback{}
	}
	return domain.FeedbackPage{
		Feedback: items,
		Pagination: domain.Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+limit < total,
		},
	}, nil
}

func (s *Service) record(ctx context.Context, metric domain.BusinessMetric) {
	if s.analytics == nil {
		return
	}
	if err := s.analytics.RecordBusinessMetric(ctx, metric); err != nil {
		s.log.Error().Err(err).Str("event", metric.Event).Msg("feedback: failed to store business metric")
	}
}
