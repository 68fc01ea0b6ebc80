package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nova-xfinity/internal/domain"
)

var testNow = time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC)

type stubStore struct {
	subs   map[string]domain.Subscription
	usage  map[string]map[domain.Feature]int
	subErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		subs:  map[string]domain.Subscription{},
		usage: map[string]map[domain.Feature]int{},
	}
}

func (s *stubStore) GetSubscription(_ context.Context, userID string) (domain.Subscription, error) {
	if s.subErr != nil {
		return domain.Subscription{}, s.subErr
	}
	sub, ok := s.subs[userID]
	if !ok {
		return domain.Subscription{}, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *stubStore) ListActiveSubscriptions(context.Context) ([]domain.Subscription, error) {
	var out []domain.Subscription
	for _, id := range []string{"free", "pro", "ent"} {
		if sub, ok := s.subs[id]; ok && sub.Status == domain.SubscriptionActive {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *stubStore) GetOrCreateUsage(_ context.Context, userID string, period domain.UsagePeriod) (domain.UsageRecord, error) {
	counters, ok := s.usage[userID]
	if !ok {
		counters = map[domain.Feature]int{}
		s.usage[userID] = counters
	}
	copied := make(map[domain.Feature]int, len(counters))
	for k, v := range counters {
		copied[k] = v
	}
	return domain.UsageRecord{UserID: userID, Period: period, Counters: copied}, nil
}

func (s *stubStore) IncrementUsage(ctx context.Context, userID string, period domain.UsagePeriod, f domain.Feature, amount int) (domain.UsageRecord, error) {
	if _, err := s.GetOrCreateUsage(ctx, userID, period); err != nil {
		return domain.UsageRecord{}, err
	}
	s.usage[userID][f] += amount
	return s.GetOrCreateUsage(ctx, userID, period)
}

func newTestService(store *stubStore) *Service {
	svc := NewService(store, store, nil, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestReportDefaultsToFree(t *testing.T) {
	store := newStubStore()
	store.usage["u1"] = map[domain.Feature]int{domain.FeatureArticles: 4}
	svc := newTestService(store)

	report, err := svc.Report(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, report.Plan)
	assert.Equal(t, domain.QuotaUsage{Used: 4, Limit: 10, Remaining: 6}, report.Features[domain.FeatureArticles])
	assert.Equal(t, domain.QuotaUsage{Used: 0, Limit: 0, Remaining: 0}, report.Features[domain.FeatureVideos])
	assert.Len(t, report.Features, len(domain.Features))
	assert.True(t, report.Period.Start.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestReportSubscriptionError(t *testing.T) {
	store := newStubStore()
	store.subErr = errors.New("db down")
	_, err := newTestService(store).Report(context.Background(), "u1")
	require.Error(t, err)
}

func TestConsume(t *testing.T) {
	store := newStubStore()
	store.subs["pro"] = domain.Subscription{UserID: "pro", Plan: domain.PlanPro, Status: domain.SubscriptionActive}
	store.usage["pro"] = map[domain.Feature]int{domain.FeatureVideos: 19}
	svc := newTestService(store)
	ctx := context.Background()

	report, err := svc.Consume(ctx, "pro", domain.FeatureVideos, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.QuotaUsage{Used: 20, Limit: 20, Remaining: 0}, report.Features[domain.FeatureVideos])

	_, err = svc.Consume(ctx, "pro", domain.FeatureVideos, 1)
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, domain.PlanPro, exceeded.Plan)
	assert.Equal(t, 20, exceeded.Quota.Used)
	assert.Equal(t, 20, exceeded.Quota.Limit)
	assert.Equal(t, 0, exceeded.Quota.Remaining)
	assert.Equal(t, "usage limit exceeded for videos", err.Error())

	// research is unlimited on PRO
	for i := 0; i < 3; i++ {
		_, err = svc.Consume(ctx, "pro", domain.FeatureResearch, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.usage["pro"][domain.FeatureResearch])
}

func TestConsumeFreeVideosDenied(t *testing.T) {
	svc := newTestService(newStubStore())
	_, err := svc.Consume(context.Background(), "nobody", domain.FeatureVideos, 1)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestConsumeTokensChecksProjectedUsage(t *testing.T) {
	store := newStubStore()
	store.usage["u1"] = map[domain.Feature]int{domain.FeatureTokens: 99_990}
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.Consume(ctx, "u1", domain.FeatureTokens, 5000)
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 99_990, exceeded.Quota.Used)
	assert.Equal(t, 100_000, exceeded.Quota.Limit)
	assert.Equal(t, 99_990, store.usage["u1"][domain.FeatureTokens])

	report, err := svc.Consume(ctx, "u1", domain.FeatureTokens, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.QuotaUsage{Used: 100_000, Limit: 100_000, Remaining: 0}, report.Features[domain.FeatureTokens])

	// count-based features still accept the charge while under the limit
	store.usage["u1"][domain.FeatureArticles] = 9
	report, err = svc.Consume(ctx, "u1", domain.FeatureArticles, 5)
	require.NoError(t, err)
	assert.Equal(t, 14, report.Features[domain.FeatureArticles].Used)
}

func TestConsumeTokensUnlimited(t *testing.T) {
	store := newStubStore()
	store.subs["ent"] = domain.Subscription{UserID: "ent", Plan: domain.PlanEnterprise, Status: domain.SubscriptionActive}
	store.usage["ent"] = map[domain.Feature]int{domain.FeatureTokens: 50_000_000}

	_, err := newTestService(store).Consume(context.Background(), "ent", domain.FeatureTokens, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, 51_000_000, store.usage["ent"][domain.FeatureTokens])
}

func TestCheck(t *testing.T) {
	store := newStubStore()
	store.usage["u1"] = map[domain.Feature]int{domain.FeatureImages: 23}
	q, plan, err := newTestService(store).Check(context.Background(), "u1", domain.FeatureImages)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, plan)
	assert.True(t, q.Allowed)
	assert.True(t, q.Warning)
	assert.Equal(t, 92, q.Percentage)
	assert.Equal(t, 2, q.Remaining)
}

func TestAlerts(t *testing.T) {
	store := newStubStore()
	store.subs["free"] = domain.Subscription{UserID: "free", Plan: domain.PlanFree, Status: domain.SubscriptionActive}
	store.subs["pro"] = domain.Subscription{UserID: "pro", Plan: domain.PlanPro, Status: domain.SubscriptionActive}
	store.subs["ent"] = domain.Subscription{UserID: "ent", Plan: domain.PlanEnterprise, Status: domain.SubscriptionActive}
	store.usage["free"] = map[domain.Feature]int{
		domain.FeatureArticles: 8,  // 80% -> warning
		domain.FeatureImages:   25, // exceeded
		domain.FeatureResearch: 2,  // fine
		domain.FeatureVideos:   0,  // zero limit, never alerts
	}
	store.usage["pro"] = map[domain.Feature]int{domain.FeatureResearch: 10_000} // unlimited
	store.usage["ent"] = map[domain.Feature]int{domain.FeatureVideos: 100}

	jobs, err := newTestService(store).Alerts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, "free", jobs[0].UserID)
	assert.Equal(t, domain.FeatureArticles, jobs[0].Quota.Feature)
	assert.Equal(t, domain.AlertWarning, jobs[0].Level)
	assert.Equal(t, domain.FeatureImages, jobs[1].Quota.Feature)
	assert.Equal(t, domain.AlertExceeded, jobs[1].Level)
	assert.Equal(t, "ent", jobs[2].UserID)
	assert.Equal(t, domain.AlertExceeded, jobs[2].Level)
	for _, j := range jobs {
		assert.True(t, j.PeriodStart.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
		assert.True(t, j.RequestedAt.Equal(testNow))
	}
}
