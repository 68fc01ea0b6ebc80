package feedback

import (
	"time"

	"nova-xfinity/internal/domain"
)

// DefaultWindowDays is the statistics window used when none is given.
const DefaultWindowDays = 30

const unknownModel = "unknown"

type group struct {
	stats   domain.RatingStats
	ratings []int
	hasDown bool
}

func (g *group) add(rating int) {
	g.stats.Total++
	switch {
	case rating >= 3 || rating == 1:
		g.stats.Positive++
	case rating < 3 || rating == -1:
		g.stats.Negative++
	}
	if rating == -1 {
		g.hasDown = true
	}
	g.ratings = append(g.ratings, rating)
}

// finish normalizes thumbs ratings onto the star axis and fills the averages.
// A thumbs down counts as 2. A 1 counts as 4 only when the group also holds a thumbs down.
func (g *group) finish() domain.RatingStats {
	s := g.stats
	if s.Total == 0 {
		return s
	}
	var sum float64
	for _, r := range g.ratings {
		switch {
		case r == -1:
			sum += 2
		case r == 1 && g.hasDown:
			sum += 4
		default:
			sum += float64(r)
		}
	}
	s.AverageRating = sum / float64(len(g.ratings))
	s.PositiveRate = float64(s.Positive) / float64(s.Total)
	s.NegativeRate = float64(s.Negative) / float64(s.Total)
	return s
}

// Aggregate computes provider and model statistics over records created in the last windowDays.
// Model stats keep the order in which each provider:model pair was first seen.
func Aggregate(records []domain.Feedback, now time.Time, windowDays int) domain.FeedbackStats {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	since := now.AddDate(0, 0, -windowDays)

	providers := make(map[domain.Provider]*group)
	models := make(map[string]int)
	var (
		modelKeys   []domain.ModelStats
		modelGroups []*group
		total       int
	)

	for _, fb := range records {
		if fb.CreatedAt.Before(since) {
			continue
		}
		total++

		pg, ok := providers[fb.Provider]
		if !ok {
			pg = &group{}
			providers[fb.Provider] = pg
		}
		pg.add(fb.Rating)

		model := fb.Model
		if model == "" {
			model = unknownModel
		}
		key := string(fb.Provider) + ":" + model
		idx, ok := models[key]
		if !ok {
			idx = len(modelGroups)
			models[key] = idx
			modelKeys = append(modelKeys, domain.ModelStats{Provider: fb.Provider, Model: model})
			modelGroups = append(modelGroups, &group{})
		}
		modelGroups[idx].add(fb.Rating)
	}

	out := domain.FeedbackStats{
		ProviderStats: make(map[domain.Provider]domain.RatingStats, len(providers)),
		ModelStats:    make([]domain.ModelStats, 0, len(modelGroups)),
		TotalFeedback: total,
		Period: domain.StatsPeriod{
			Days:      windowDays,
			StartDate: since,
			EndDate:   now,
		},
	}
	for p, g := range providers {
		out.ProviderStats[p] = g.finish()
	}
	for i, g := range modelGroups {
		ms := modelKeys[i]
		ms.RatingStats = g.finish()
		out.ModelStats = append(out.ModelStats, ms)
	}
	return out
}
