package ranker

import (
	"sort"

	"nova-xfinity/internal/domain"
)

// SimpleRanker scores providers as averageRating * (1 + positiveRate).
type SimpleRanker struct{}

var _ domain.ProviderRanker = SimpleRanker{}

// NewSimple creates the ranker.
func NewSimple() SimpleRanker {
	return SimpleRanker{}
}

// Score is the ranking score of one provider.
func Score(stats domain.RatingStats) float64 {
	return stats.AverageRating * (1 + stats.PositiveRate)
}

// Rank keeps providers whose averageRating reaches minRating and orders them by score.
// Equal scores keep the canonical provider order.
func (SimpleRanker) Rank(stats map[domain.Provider]domain.RatingStats, minRating float64) []domain.ScoredProvider {
	items := make([]domain.ScoredProvider, 0, len(stats))
	for _, p := range orderedProviders(stats) {
		s := stats[p]
		if s.AverageRating < minRating {
			continue
		}
		items = append(items, domain.ScoredProvider{Provider: p, Stats: s, Score: Score(s)})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	return items
}

// BestModel returns the highest rated model reaching minRating. Ties keep the input order.
func BestModel(models []domain.ModelStats, minRating float64) (domain.ModelStats, bool) {
	candidates := make([]domain.ModelStats, 0, len(models))
	for _, m := range models {
		if m.AverageRating >= minRating {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return domain.ModelStats{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].AverageRating > candidates[j].AverageRating
	})
	return candidates[0], true
}

func orderedProviders(stats map[domain.Provider]domain.RatingStats) []domain.Provider {
	out := make([]domain.Provider, 0, len(stats))
	known := make(map[domain.Provider]struct{}, len(domain.Providers))
	for _, p := range domain.Providers {
		known[p] = struct{}{}
		if _, ok := stats[p]; ok {
			out = append(out, p)
		}
	}
	var extra []domain.Provider
	for p := range stats {
		if _, ok := known[p]; !ok {
			extra = append(extra, p)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
