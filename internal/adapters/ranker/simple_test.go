package ranker

import (
	"testing"

	"nova-xfinity/internal/domain"
)

func TestRankOrdersByScore(t *testing.T) {
	stats := map[domain.Provider]domain.RatingStats{
		domain.ProviderOpenAI:    {Total: 2, AverageRating: 2.0, PositiveRate: 0},
		domain.ProviderAnthropic: {Total: 2, AverageRating: 4.5, PositiveRate: 1},
		domain.ProviderGemini:    {Total: 4, AverageRating: 4.0, PositiveRate: 0.75},
	}
	ranked := NewSimple().Rank(stats, 3.0)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 providers above threshold, got %d", len(ranked))
	}
	if ranked[0].Provider != domain.ProviderAnthropic || ranked[0].Score != 9 {
		t.Fatalf("unexpected top entry %+v", ranked[0])
	}
	if ranked[1].Provider != domain.ProviderGemini || ranked[1].Score != 7 {
		t.Fatalf("unexpected second entry %+v", ranked[1])
	}
}

func TestRankWithoutThresholdKeepsAll(t *testing.T) {
	stats := map[domain.Provider]domain.RatingStats{
		domain.ProviderLlama:  {Total: 1, AverageRating: 2.0},
		domain.ProviderOpenAI: {Total: 1, AverageRating: 2.0},
	}
	ranked := NewSimple().Rank(stats, 0)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(ranked))
	}
	if ranked[0].Provider != domain.ProviderOpenAI {
		t.Fatalf("ties must keep canonical provider order, got %s first", ranked[0].Provider)
	}
}

func TestBestModel(t *testing.T) {
	models := []domain.ModelStats{
		{Provider: domain.ProviderOpenAI, Model: "gpt-4o-mini", RatingStats: domain.RatingStats{AverageRating: 3.5}},
		{Provider: domain.ProviderOpenAI, Model: "gpt-4o", RatingStats: domain.RatingStats{AverageRating: 4.5}},
		{Provider: domain.ProviderOpenAI, Model: "unknown", RatingStats: domain.RatingStats{AverageRating: 2.0}},
	}
	best, ok := BestModel(models, 3.0)
	if !ok || best.Model != "gpt-4o" {
		t.Fatalf("unexpected best model %+v (ok=%v)", best, ok)
	}
	if _, ok := BestModel(models, 4.8); ok {
		t.Fatal("no model should pass a 4.8 threshold")
	}
}
