package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nova-xfinity/internal/domain"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func rec(p domain.Provider, model string, rating int, age time.Duration) domain.Feedback {
	return domain.Feedback{
		Provider:    p,
		Model:       model,
		Rating:      rating,
		ContentType: domain.ContentArticle,
		CreatedAt:   testNow.Add(-age),
	}
}

func TestAggregateStarsAndThumbsUpWithoutDown(t *testing.T) {
	stats := Aggregate([]domain.Feedback{
		rec(domain.ProviderGemini, "", 5, time.Hour),
		rec(domain.ProviderGemini, "", 1, time.Hour),
	}, testNow, 30)

	g := stats.ProviderStats[domain.ProviderGemini]
	assert.Equal(t, 2, g.Total)
	assert.InDelta(t, 3.0, g.AverageRating, 1e-9)
	assert.Equal(t, 2, g.Positive)
	assert.Equal(t, 0, g.Negative)
	assert.InDelta(t, 1.0, g.PositiveRate, 1e-9)
}

func TestAggregateThumbsNormalization(t *testing.T) {
	stats := Aggregate([]domain.Feedback{
		rec(domain.ProviderOpenAI, "gpt-4o", -1, time.Hour),
		rec(domain.ProviderOpenAI, "gpt-4o", 1, time.Hour),
	}, testNow, 30)

	o := stats.ProviderStats[domain.ProviderOpenAI]
	assert.InDelta(t, 3.0, o.AverageRating, 1e-9)
	assert.InDelta(t, 0.5, o.PositiveRate, 1e-9)
	assert.InDelta(t, 0.5, o.NegativeRate, 1e-9)
	require.Len(t, stats.ModelStats, 1)
	assert.Equal(t, "gpt-4o", stats.ModelStats[0].Model)
	assert.InDelta(t, 3.0, stats.ModelStats[0].AverageRating, 1e-9)
}

func TestAggregateNormalizationIsPerGroup(t *testing.T) {
	// The -1 sits on another model, so the model group keeps its 1 as-is
	// while the provider group promotes it to 4.
	stats := Aggregate([]domain.Feedback{
		rec(domain.ProviderLlama, "a", -1, time.Hour),
		rec(domain.ProviderLlama, "b", 1, time.Hour),
	}, testNow, 30)

	assert.InDelta(t, 3.0, stats.ProviderStats[domain.ProviderLlama].AverageRating, 1e-9)
	require.Len(t, stats.ModelStats, 2)
	assert.InDelta(t, 2.0, stats.ModelStats[0].AverageRating, 1e-9)
	assert.InDelta(t, 1.0, stats.ModelStats[1].AverageRating, 1e-9)
}

func TestAggregateWindowAndUnknownModel(t *testing.T) {
	stats := Aggregate([]domain.Feedback{
		rec(domain.ProviderAnthropic, "", 4, 24*time.Hour),
		rec(domain.ProviderAnthropic, "claude", 2, 31*24*time.Hour),
		rec(domain.ProviderGemini, "g", 3, 2*time.Hour),
	}, testNow, 30)

	assert.Equal(t, 2, stats.TotalFeedback)
	require.Len(t, stats.ModelStats, 2)
	assert.Equal(t, domain.ModelStats{
		Provider:    domain.ProviderAnthropic,
		Model:       "unknown",
		RatingStats: domain.RatingStats{Total: 1, Positive: 1, AverageRating: 4, PositiveRate: 1},
	}, stats.ModelStats[0])
	assert.Equal(t, "g", stats.ModelStats[1].Model)
	assert.Equal(t, 30, stats.Period.Days)
	assert.True(t, stats.Period.StartDate.Equal(testNow.AddDate(0, 0, -30)))
	assert.True(t, stats.Period.EndDate.Equal(testNow))
}

func TestAggregateLowStarsAreNegative(t *testing.T) {
	stats := Aggregate([]domain.Feedback{
		rec(domain.ProviderGemini, "", 2, time.Hour),
		rec(domain.ProviderGemini, "", 3, time.Hour),
	}, testNow, 7)

	g := stats.ProviderStats[domain.ProviderGemini]
	assert.Equal(t, 1, g.Positive)
	assert.Equal(t, 1, g.Negative)
	assert.InDelta(t, 2.5, g.AverageRating, 1e-9)
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil, testNow, 0)
	assert.Equal(t, 0, stats.TotalFeedback)
	assert.Empty(t, stats.ProviderStats)
	assert.Empty(t, stats.ModelStats)
	assert.Equal(t, DefaultWindowDays, stats.Period.Days)
}
