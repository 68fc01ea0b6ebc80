package domain

import "time"

// RatingStats is the aggregate of one group of feedback ratings.
type RatingStats struct {
	Total         int     `json:"total"`
	Positive      int     `json:"positive"`
	Negative      int     `json:"negative"`
	AverageRating float64 `json:"averageRating"`
	PositiveRate  float64 `json:"positiveRate"`
	NegativeRate  float64 `json:"negativeRate"`
}

// ModelStats is RatingStats for a single provider:model pair.
type ModelStats struct {
	Provider Provider `json:"provider"`
	Model    string   `json:"model"`
	RatingStats
}

// StatsPeriod is the time window a FeedbackStats was computed over.
type StatsPeriod struct {
	Days      int       `json:"days"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// FeedbackStats is derived on every query and never persisted.
type FeedbackStats struct {
	ProviderStats map[Provider]RatingStats `json:"providerStats"`
	ModelStats    []ModelStats             `json:"modelStats"`
	TotalFeedback int                      `json:"totalFeedback"`
	Period        StatsPeriod              `json:"period"`
}

// ModelsFor returns the model stats of a provider, keeping their order.
func (s FeedbackStats) ModelsFor(provider Provider) []ModelStats {
	var out []ModelStats
	for _, m := range s.ModelStats {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}
