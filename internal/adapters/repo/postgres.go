package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/metrics"
)

// Postgres implements the repositories on top of pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.FeedbackRepo       = (*Postgres)(nil)
	_ domain.SubscriptionRepo   = (*Postgres)(nil)
	_ domain.UsageRepo          = (*Postgres)(nil)
	_ domain.AlertJobStatusRepo = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

// NewPostgres creates the database adapter.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS feedback (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    content_type TEXT NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL DEFAULT '',
    rating INTEGER NOT NULL,
    comment TEXT NOT NULL DEFAULT '',
    content_id TEXT NOT NULL DEFAULT '',
    metadata JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_feedback_user_created ON feedback(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_feedback_type_created ON feedback(content_type, created_at);

CREATE TABLE IF NOT EXISTS subscriptions (
    user_id TEXT PRIMARY KEY,
    plan TEXT NOT NULL,
    status TEXT NOT NULL,
    current_period_start TIMESTAMPTZ,
    current_period_end TIMESTAMPTZ,
    cancel_at_period_end BOOLEAN NOT NULL DEFAULT false,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usage_counters (
    user_id TEXT NOT NULL,
    period_start TIMESTAMPTZ NOT NULL,
    period_end TIMESTAMPTZ NOT NULL,
    feature TEXT NOT NULL,
    used INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, period_start, feature)
);

CREATE TABLE IF NOT EXISTS alert_job_statuses (
    job_id TEXT PRIMARY KEY,
    attempts INTEGER NOT NULL DEFAULT 0,
    delivered_at TIMESTAMPTZ,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS business_metrics (
    id BIGSERIAL PRIMARY KEY,
    event TEXT NOT NULL,
    user_id TEXT,
    metadata JSONB,
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_business_metrics_event ON business_metrics(event, occurred_at);
`

// Migrate creates the tables when they are missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, postgresSchema)
	metrics.ObserveNetworkRequest("postgres", "schema_migrate", "schema", start, err)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func metadataJSON(meta map[string]any) []byte {
	if len(meta) == 0 {
		return nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return data
}

// RecordBusinessMetric stores a business event in the database.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var userID sql.NullString
	if metric.UserID != "" {
		userID = sql.NullString{String: metric.UserID, Valid: true}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, user_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4)
`, metric.Event, userID, metadataJSON(metric.Metadata), metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}

// CreateFeedback stores a feedback record.
func (p *Postgres) CreateFeedback(ctx context.Context, fb domain.Feedback) (domain.Feedback, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO feedback (id, user_id, content_type, provider, model, rating, comment, content_id, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at
`, fb.ID, fb.UserID, string(fb.ContentType), string(fb.Provider), fb.Model, fb.Rating, fb.Comment, fb.ContentID,
		metadataJSON(fb.Metadata), fb.CreatedAt).Scan(&fb.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "feedback_insert", "feedback", start, err)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	fb.CreatedAt = fb.CreatedAt.UTC()
	return fb, nil
}

func collectFeedback(rows pgx.Rows) ([]domain.Feedback, error) {
	defer rows.Close()
	var out []domain.Feedback
	for rows.Next() {
		var (
			fb          domain.Feedback
			contentType string
			provider    string
			meta        []byte
		)
		if err := rows.Scan(&fb.ID, &fb.UserID, &contentType, &provider, &fb.Model, &fb.Rating, &fb.Comment, &fb.ContentID, &meta, &fb.CreatedAt); err != nil {
			return nil, err
		}
		fb.ContentType = domain.ContentType(contentType)
		fb.Provider = domain.Provider(provider)
		fb.CreatedAt = fb.CreatedAt.UTC()
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &fb.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", fb.ID, err)
			}
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// ListFeedback returns the records matching filter, oldest first.
func (p *Postgres) ListFeedback(ctx context.Context, filter domain.FeedbackFilter) ([]domain.Feedback, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.ContentType != "" {
		add("content_type = $%d", string(filter.ContentType))
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	query := "SELECT " + feedbackColumns + " FROM feedback"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "feedback_list", "feedback", start, err)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return collectFeedback(rows)
}

// ListUserFeedback returns one page of the user's feedback, newest first, and the total count.
func (p *Postgres) ListUserFeedback(ctx context.Context, userID string, limit, offset int) ([]domain.Feedback, int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var total int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM feedback WHERE user_id = $1`, userID).Scan(&total)
	metrics.ObserveNetworkRequest("postgres", "feedback_count", "feedback", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}

	start = time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+feedbackColumns+` FROM feedback
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	metrics.ObserveNetworkRequest("postgres", "feedback_history", "feedback", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("list user feedback: %w", err)
	}
	page, err := collectFeedback(rows)
	if err != nil {
		return nil, 0, err
	}
	if page == nil {
		page = []domain.Feedback{}
	}
	return page, total, nil
}

func scanPostgresSubscription(row pgx.Row) (domain.Subscription, error) {
	var (
		sub    domain.Subscription
		plan   string
		status string
	)
	if err := row.Scan(&sub.UserID, &plan, &status, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd); err != nil {
		return domain.Subscription{}, err
	}
	sub.Plan = domain.PlanName(plan)
	sub.Status = domain.SubscriptionStatus(status)
	return sub, nil
}

// GetSubscription returns the user's subscription or domain.ErrSubscriptionNotFound.
func (p *Postgres) GetSubscription(ctx context.Context, userID string) (domain.Subscription, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	sub, err := scanPostgresSubscription(p.pool.QueryRow(ctx, `
SELECT user_id, plan, status, current_period_start, current_period_end, cancel_at_period_end
FROM subscriptions WHERE user_id = $1
`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "subscriptions_get", "subscriptions", start, nil)
		return domain.Subscription{}, domain.ErrSubscriptionNotFound
	}
	metrics.ObserveNetworkRequest("postgres", "subscriptions_get", "subscriptions", start, err)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// ListActiveSubscriptions returns all subscriptions in ACTIVE status.
func (p *Postgres) ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, plan, status, current_period_start, current_period_end, cancel_at_period_end
FROM subscriptions WHERE status = $1
ORDER BY user_id
`, string(domain.SubscriptionActive))
	metrics.ObserveNetworkRequest("postgres", "subscriptions_list_active", "subscriptions", start, err)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		sub, err := scanPostgresSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// UpsertSubscription creates or replaces the user's subscription.
func (p *Postgres) UpsertSubscription(ctx context.Context, sub domain.Subscription) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if sub.Status == "" {
		sub.Status = domain.SubscriptionActive
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO subscriptions (user_id, plan, status, current_period_start, current_period_end, cancel_at_period_end, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (user_id) DO UPDATE
    SET plan = EXCLUDED.plan,
        status = EXCLUDED.status,
        current_period_start = EXCLUDED.current_period_start,
        current_period_end = EXCLUDED.current_period_end,
        cancel_at_period_end = EXCLUDED.cancel_at_period_end,
        updated_at = now()
`, sub.UserID, string(sub.Plan), string(sub.Status), sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_upsert", "subscriptions", start, err)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (p *Postgres) usageTx(ctx context.Context, userID string, period domain.UsagePeriod, fn func(tx pgx.Tx) error) (domain.UsageRecord, error) {
	var rec domain.UsageRecord
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, f := range domain.Features {
			batch.Queue(`
INSERT INTO usage_counters (user_id, period_start, period_end, feature, used)
VALUES ($1, $2, $3, $4, 0)
ON CONFLICT (user_id, period_start, feature) DO NOTHING
`, userID, period.Start, period.End, string(f))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		if fn != nil {
			if err := fn(tx); err != nil {
				return err
			}
		}

		rows, err := tx.Query(ctx, `
SELECT feature, used FROM usage_counters
WHERE user_id = $1 AND period_start = $2
`, userID, period.Start)
		if err != nil {
			return err
		}
		defer rows.Close()
		rec = domain.UsageRecord{UserID: userID, Period: period, Counters: make(map[domain.Feature]int, len(domain.Features))}
		for rows.Next() {
			var (
				feature string
				used    int
			)
			if err := rows.Scan(&feature, &used); err != nil {
				return err
			}
			rec.Counters[domain.Feature(feature)] = used
		}
		return rows.Err()
	})
	return rec, err
}

// GetOrCreateUsage returns the usage counters of the period, creating zeroed ones on first access.
func (p *Postgres) GetOrCreateUsage(ctx context.Context, userID string, period domain.UsagePeriod) (domain.UsageRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rec, err := p.usageTx(ctx, userID, period, nil)
	metrics.ObserveNetworkRequest("postgres", "usage_get_or_create", "usage_counters", start, err)
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("get usage: %w", err)
	}
	return rec, nil
}

// IncrementUsage adds amount to the feature counter of the period.
func (p *Postgres) IncrementUsage(ctx context.Context, userID string, period domain.UsagePeriod, f domain.Feature, amount int) (domain.UsageRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rec, err := p.usageTx(ctx, userID, period, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
UPDATE usage_counters SET used = used + $1
WHERE user_id = $2 AND period_start = $3 AND feature = $4
`, amount, userID, period.Start, string(f))
		return err
	})
	metrics.ObserveNetworkRequest("postgres", "usage_increment", "usage_counters", start, err)
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("increment usage: %w", err)
	}
	return rec, nil
}

// EnsureAlertJob registers a delivery attempt of the alert job.
func (p *Postgres) EnsureAlertJob(ctx context.Context, jobID string) (bool, int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		delivered sql.NullTime
		attempts  int
	)

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO alert_job_statuses (job_id, attempts, updated_at)
VALUES ($1, 1, now())
ON CONFLICT (job_id) DO UPDATE
    SET attempts = alert_job_statuses.attempts + 1,
        updated_at = now()
RETURNING delivered_at, attempts
`, jobID).Scan(&delivered, &attempts)
	metrics.ObserveNetworkRequest("postgres", "alert_job_statuses_upsert", "alert_job_statuses", start, err)
	if err != nil {
		return false, 0, err
	}

	return delivered.Valid, attempts, nil
}

// MarkAlertJobDelivered marks the job as delivered.
func (p *Postgres) MarkAlertJobDelivered(ctx context.Context, jobID string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE alert_job_statuses
SET delivered_at = COALESCE(delivered_at, now()),
    updated_at = now()
WHERE job_id = $1
`, jobID)
	metrics.ObserveNetworkRequest("postgres", "alert_job_statuses_mark_delivered", "alert_job_statuses", start, err)
	return err
}
