package domain

// RecommendationReason explains how a recommendation was reached.
type RecommendationReason string

const (
	// ReasonNoFeedback means there was nothing to rank and the default was returned.
	ReasonNoFeedback RecommendationReason = "no_feedback"
	// ReasonBestAvailable means every provider was below the threshold.
	ReasonBestAvailable RecommendationReason = "best_available"
	// ReasonFeedbackBased means the provider cleared the threshold.
	ReasonFeedbackBased RecommendationReason = "feedback_based"
)

const (
	// DefaultProvider is recommended when there is no feedback at all.
	DefaultProvider = ProviderGemini
	// DefaultMinRating is the threshold applied when the caller passes none.
	DefaultMinRating = 3.0
	// WarningBelowThreshold accompanies best_available recommendations.
	WarningBelowThreshold = "All providers below threshold"
)

var defaultModels = map[Provider]string{
	ProviderGemini:    "gemini-3-pro-preview",
	ProviderOpenAI:    "gpt-4o",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
	ProviderLlama:     "llama-3.3-70b-versatile",
}

// DefaultModel returns the static model for a provider, falling back to the Gemini default.
func DefaultModel(p Provider) string {
	if model, ok := defaultModels[p]; ok {
		return model
	}
	return defaultModels[DefaultProvider]
}

// RecommendationStats is attached to feedback based recommendations.
type RecommendationStats struct {
	AverageRating float64 `json:"averageRating"`
	PositiveRate  float64 `json:"positiveRate"`
	TotalFeedback int     `json:"totalFeedback"`
}

// Recommendation is the provider/model the platform suggests for a content type.
type Recommendation struct {
	Provider   Provider             `json:"provider"`
	Model      string               `json:"model"`
	Reason     RecommendationReason `json:"reason"`
	Confidence float64              `json:"confidence"`
	Stats      *RecommendationStats `json:"stats,omitempty"`
	Warning    string               `json:"warning,omitempty"`
}

// NoFeedbackRecommendation is the hardcoded default.
func NoFeedbackRecommendation() Recommendation {
	return Recommendation{
		Provider:   DefaultProvider,
		Model:      DefaultModel(DefaultProvider),
		Reason:     ReasonNoFeedback,
		Confidence: 0,
	}
}

// ScoredProvider is a provider together with its ranking score.
type ScoredProvider struct {
	Provider Provider
	Stats    RatingStats
	Score    float64
}

// ProviderRanker orders providers by how well they were rated.
type ProviderRanker interface {
	// Rank returns providers with averageRating >= minRating, best first.
	Rank(stats map[Provider]RatingStats, minRating float64) []ScoredProvider
}
