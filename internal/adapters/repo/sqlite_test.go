package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nova-xfinity/internal/adapters/ranker"
	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/usecase/feedback"
	"nova-xfinity/internal/usecase/quota"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenSQLiteIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nova.db")
	db, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	version, err := schemaVersion(db.conn)
	require.NoError(t, err)
	assert.Equal(t, len(sqliteMigrations), version)
}

func TestFeedbackRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	for i, fb := range []domain.Feedback{
		{ID: "a", UserID: "u1", ContentType: domain.ContentArticle, Provider: domain.ProviderOpenAI, Rating: 5, CreatedAt: base},
		{ID: "b", UserID: "u1", ContentType: domain.ContentImage, Provider: domain.ProviderGemini, Rating: -1, CreatedAt: base.Add(time.Hour)},
		{ID: "c", UserID: "u2", ContentType: domain.ContentArticle, Provider: domain.ProviderAnthropic, Rating: 4,
			Metadata: map[string]any{"words": float64(900)}, CreatedAt: base.Add(2 * time.Hour)},
	} {
		_, err := db.CreateFeedback(ctx, fb)
		require.NoError(t, err, "record %d", i)
	}

	all, err := db.ListFeedback(ctx, domain.FeedbackFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, map[string]any{"words": float64(900)}, all[2].Metadata)

	articles, err := db.ListFeedback(ctx, domain.FeedbackFilter{ContentType: domain.ContentArticle, Since: base.Add(time.Minute)})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "c", articles[0].ID)
	assert.True(t, articles[0].CreatedAt.Equal(base.Add(2*time.Hour)))

	page, total, err := db.ListUserFeedback(ctx, "u1", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)

	page, _, err = db.ListUserFeedback(ctx, "u1", 10, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)
}

func TestFeedbackServiceOverSQLite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := feedback.NewService(db, ranker.NewSimple(), db, zerolog.Nop())

	for _, in := range []domain.FeedbackInput{
		{ContentType: "article", Provider: "openai", Rating: 5},
		{ContentType: "ARTICLE", Provider: "gemini", Rating: 2},
		{ContentType: "ARTICLE", Provider: "openai", Rating: 4},
	} {
		_, err := svc.Submit(ctx, "u1", in)
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx, feedback.StatsQuery{UserID: "u1", ContentType: domain.ContentArticle, Days: 30})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalFeedback)

	rec, err := svc.Recommend(ctx, domain.ContentArticle, "u1", domain.DefaultMinRating)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderOpenAI, rec.Provider)

	n, err := db.CountBusinessMetrics(ctx, domain.BusinessMetricFeedbackSubmitted)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSubscriptions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.GetSubscription(ctx, "nobody")
	assert.True(t, errors.Is(err, domain.ErrSubscriptionNotFound))

	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.UpsertSubscription(ctx, domain.Subscription{UserID: "u1", Plan: domain.PlanPro, CurrentPeriodEnd: &end}))
	require.NoError(t, db.UpsertSubscription(ctx, domain.Subscription{UserID: "u2", Plan: domain.PlanFree, Status: domain.SubscriptionCanceled}))
	require.NoError(t, db.UpsertSubscription(ctx, domain.Subscription{UserID: "u1", Plan: domain.PlanEnterprise, CurrentPeriodEnd: &end, CancelAtPeriodEnd: true}))

	sub, err := db.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanEnterprise, sub.Plan)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodEnd.Equal(end))
	assert.Nil(t, sub.CurrentPeriodStart)

	active, err := db.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "u1", active[0].UserID)
}

func TestUsageCounters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	period := domain.MonthPeriod(time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC))

	rec, err := db.GetOrCreateUsage(ctx, "u1", period)
	require.NoError(t, err)
	for _, f := range domain.Features {
		assert.Equal(t, 0, rec.Used(f), f)
	}

	_, err = db.IncrementUsage(ctx, "u1", period, domain.FeatureArticles, 2)
	require.NoError(t, err)
	rec, err = db.IncrementUsage(ctx, "u1", period, domain.FeatureArticles, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Used(domain.FeatureArticles))
	assert.Equal(t, 0, rec.Used(domain.FeatureImages))

	next := domain.MonthPeriod(time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC))
	rec, err = db.GetOrCreateUsage(ctx, "u1", next)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Used(domain.FeatureArticles))
}

func TestQuotaServiceOverSQLite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := quota.NewService(db, db, db, zerolog.Nop())

	report, err := svc.Consume(ctx, "u1", domain.FeatureArticles, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, report.Plan)
	assert.Equal(t, 1, report.Features[domain.FeatureArticles].Used)
	assert.Equal(t, 9, report.Features[domain.FeatureArticles].Remaining)

	_, err = svc.Consume(ctx, "u1", domain.FeatureVideos, 1)
	assert.True(t, errors.Is(err, domain.ErrQuotaExceeded))
}

func TestAlertJobStatuses(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	delivered, attempt, err := db.EnsureAlertJob(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.Equal(t, 1, attempt)

	delivered, attempt, err = db.EnsureAlertJob(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.Equal(t, 2, attempt)

	require.NoError(t, db.MarkAlertJobDelivered(ctx, "job-1"))
	delivered, attempt, err = db.EnsureAlertJob(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Equal(t, 3, attempt)
}

func TestRecordBusinessMetricSkipsUnnamed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordBusinessMetric(ctx, domain.BusinessMetric{}))
	require.NoError(t, db.RecordBusinessMetric(ctx, domain.BusinessMetric{Event: "x", Metadata: map[string]any{"k": 1}}))

	n, err := db.CountBusinessMetrics(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
