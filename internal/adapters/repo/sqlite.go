package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/metrics"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite implements the repositories on an embedded database file.
type SQLite struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

var (
	_ domain.FeedbackRepo       = (*SQLite)(nil)
	_ domain.SubscriptionRepo   = (*SQLite)(nil)
	_ domain.UsageRepo          = (*SQLite)(nil)
	_ domain.AlertJobStatusRepo = (*SQLite)(nil)
	_ domain.BusinessMetricRepo = (*SQLite)(nil)
)

// OpenSQLite creates or opens the database at path and migrates it.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent requests
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if err := migrateSQLite(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &SQLite{conn: conn, path: path, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func marshalMetadata(meta map[string]any) (sql.NullString, error) {
	if len(meta) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// CreateFeedback stores a feedback record.
func (s *SQLite) CreateFeedback(ctx context.Context, fb domain.Feedback) (domain.Feedback, error) {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = s.now().UTC()
	}
	meta, err := marshalMetadata(fb.Metadata)
	if err != nil {
		return domain.Feedback{}, err
	}

	start := time.Now()
	_, err = s.conn.ExecContext(ctx, `
INSERT INTO feedback (id, user_id, content_type, provider, model, rating, comment, content_id, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, fb.ID, fb.UserID, string(fb.ContentType), string(fb.Provider), fb.Model, fb.Rating, fb.Comment, fb.ContentID, meta, formatTime(fb.CreatedAt))
	metrics.ObserveNetworkRequest("sqlite", "feedback_insert", "feedback", start, err)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	fb.CreatedAt = fb.CreatedAt.UTC()
	return fb, nil
}

const feedbackColumns = `id, user_id, content_type, provider, model, rating, comment, content_id, metadata, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row rowScanner) (domain.Feedback, error) {
	var (
		fb          domain.Feedback
		contentType string
		provider    string
		meta        sql.NullString
		createdAt   string
	)
	if err := row.Scan(&fb.ID, &fb.UserID, &contentType, &provider, &fb.Model, &fb.Rating, &fb.Comment, &fb.ContentID, &meta, &createdAt); err != nil {
		return domain.Feedback{}, err
	}
	fb.ContentType = domain.ContentType(contentType)
	fb.Provider = domain.Provider(provider)
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &fb.Metadata); err != nil {
			return domain.Feedback{}, fmt.Errorf("decode metadata of %s: %w", fb.ID, err)
		}
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return domain.Feedback{}, err
	}
	fb.CreatedAt = t
	return fb, nil
}

// ListFeedback returns the records matching filter, oldest first.
func (s *SQLite) ListFeedback(ctx context.Context, filter domain.FeedbackFilter) ([]domain.Feedback, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ContentType != "" {
		where = append(where, "content_type = ?")
		args = append(args, string(filter.ContentType))
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	query := "SELECT " + feedbackColumns + " FROM feedback"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, query, args...)
	metrics.ObserveNetworkRequest("sqlite", "feedback_list", "feedback", start, err)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []domain.Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// ListUserFeedback returns one page of the user's feedback, newest first, and the total count.
func (s *SQLite) ListUserFeedback(ctx context.Context, userID string, limit, offset int) ([]domain.Feedback, int, error) {
	var total int
	start := time.Now()
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback WHERE user_id = ?`, userID).Scan(&total)
	metrics.ObserveNetworkRequest("sqlite", "feedback_count", "feedback", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}

	start = time.Now()
	rows, err := s.conn.QueryContext(ctx, `
SELECT `+feedbackColumns+` FROM feedback
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?
`, userID, limit, offset)
	metrics.ObserveNetworkRequest("sqlite", "feedback_history", "feedback", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("list user feedback: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Feedback, 0, limit)
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, fb)
	}
	return out, total, rows.Err()
}

func scanSubscription(row rowScanner) (domain.Subscription, error) {
	var (
		sub         domain.Subscription
		plan        string
		status      string
		periodStart sql.NullString
		periodEnd   sql.NullString
		cancel      int
	)
	if err := row.Scan(&sub.UserID, &plan, &status, &periodStart, &periodEnd, &cancel); err != nil {
		return domain.Subscription{}, err
	}
	sub.Plan = domain.PlanName(plan)
	sub.Status = domain.SubscriptionStatus(status)
	sub.CancelAtPeriodEnd = cancel != 0
	for _, p := range []struct {
		raw sql.NullString
		dst **time.Time
	}{{periodStart, &sub.CurrentPeriodStart}, {periodEnd, &sub.CurrentPeriodEnd}} {
		if !p.raw.Valid {
			continue
		}
		t, err := parseTime(p.raw.String)
		if err != nil {
			return domain.Subscription{}, err
		}
		*p.dst = &t
	}
	return sub, nil
}

// GetSubscription returns the user's subscription or domain.ErrSubscriptionNotFound.
func (s *SQLite) GetSubscription(ctx context.Context, userID string) (domain.Subscription, error) {
	start := time.Now()
	row := s.conn.QueryRowContext(ctx, `
SELECT user_id, plan, status, current_period_start, current_period_end, cancel_at_period_end
FROM subscriptions WHERE user_id = ?
`, userID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveNetworkRequest("sqlite", "subscriptions_get", "subscriptions", start, nil)
		return domain.Subscription{}, domain.ErrSubscriptionNotFound
	}
	metrics.ObserveNetworkRequest("sqlite", "subscriptions_get", "subscriptions", start, err)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// ListActiveSubscriptions returns all subscriptions in ACTIVE status.
func (s *SQLite) ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, `
SELECT user_id, plan, status, current_period_start, current_period_end, cancel_at_period_end
FROM subscriptions WHERE status = ?
ORDER BY user_id
`, string(domain.SubscriptionActive))
	metrics.ObserveNetworkRequest("sqlite", "subscriptions_list_active", "subscriptions", start, err)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// UpsertSubscription creates or replaces the user's subscription.
func (s *SQLite) UpsertSubscription(ctx context.Context, sub domain.Subscription) error {
	if sub.Status == "" {
		sub.Status = domain.SubscriptionActive
	}
	cancel := 0
	if sub.CancelAtPeriodEnd {
		cancel = 1
	}
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO subscriptions (user_id, plan, status, current_period_start, current_period_end, cancel_at_period_end, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE
    SET plan = excluded.plan,
        status = excluded.status,
        current_period_start = excluded.current_period_start,
        current_period_end = excluded.current_period_end,
        cancel_at_period_end = excluded.cancel_at_period_end,
        updated_at = excluded.updated_at
`, sub.UserID, string(sub.Plan), string(sub.Status), nullTime(sub.CurrentPeriodStart), nullTime(sub.CurrentPeriodEnd), cancel, formatTime(s.now()))
	metrics.ObserveNetworkRequest("sqlite", "subscriptions_upsert", "subscriptions", start, err)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func ensureUsageRows(ctx context.Context, tx *sql.Tx, userID string, period domain.UsagePeriod) error {
	for _, f := range domain.Features {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO usage_counters (user_id, period_start, period_end, feature, used)
VALUES (?, ?, ?, ?, 0)
ON CONFLICT (user_id, period_start, feature) DO NOTHING
`, userID, formatTime(period.Start), formatTime(period.End), string(f)); err != nil {
			return err
		}
	}
	return nil
}

func loadUsage(ctx context.Context, tx *sql.Tx, userID string, period domain.UsagePeriod) (domain.UsageRecord, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT feature, used FROM usage_counters
WHERE user_id = ? AND period_start = ?
`, userID, formatTime(period.Start))
	if err != nil {
		return domain.UsageRecord{}, err
	}
	defer rows.Close()

	rec := domain.UsageRecord{UserID: userID, Period: period, Counters: make(map[domain.Feature]int, len(domain.Features))}
	for rows.Next() {
		var (
			feature string
			used    int
		)
		if err := rows.Scan(&feature, &used); err != nil {
			return domain.UsageRecord{}, err
		}
		rec.Counters[domain.Feature(feature)] = used
	}
	return rec, rows.Err()
}

func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// GetOrCreateUsage returns the usage counters of the period, creating zeroed ones on first access.
func (s *SQLite) GetOrCreateUsage(ctx context.Context, userID string, period domain.UsagePeriod) (domain.UsageRecord, error) {
	var rec domain.UsageRecord
	start := time.Now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureUsageRows(ctx, tx, userID, period); err != nil {
			return err
		}
		var err error
		rec, err = loadUsage(ctx, tx, userID, period)
		return err
	})
	metrics.ObserveNetworkRequest("sqlite", "usage_get_or_create", "usage_counters", start, err)
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("get usage: %w", err)
	}
	return rec, nil
}

// IncrementUsage adds amount to the feature counter of the period.
func (s *SQLite) IncrementUsage(ctx context.Context, userID string, period domain.UsagePeriod, f domain.Feature, amount int) (domain.UsageRecord, error) {
	var rec domain.UsageRecord
	start := time.Now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureUsageRows(ctx, tx, userID, period); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE usage_counters SET used = used + ?
WHERE user_id = ? AND period_start = ? AND feature = ?
`, amount, userID, formatTime(period.Start), string(f)); err != nil {
			return err
		}
		var err error
		rec, err = loadUsage(ctx, tx, userID, period)
		return err
	})
	metrics.ObserveNetworkRequest("sqlite", "usage_increment", "usage_counters", start, err)
	if err != nil {
		return domain.UsageRecord{}, fmt.Errorf("increment usage: %w", err)
	}
	return rec, nil
}

// EnsureAlertJob registers a delivery attempt of the job.
func (s *SQLite) EnsureAlertJob(ctx context.Context, jobID string) (bool, int, error) {
	var (
		delivered sql.NullString
		attempts  int
	)
	start := time.Now()
	err := s.conn.QueryRowContext(ctx, `
INSERT INTO alert_job_statuses (job_id, attempts, updated_at)
VALUES (?, 1, ?)
ON CONFLICT (job_id) DO UPDATE
    SET attempts = alert_job_statuses.attempts + 1,
        updated_at = excluded.updated_at
RETURNING delivered_at, attempts
`, jobID, formatTime(s.now())).Scan(&delivered, &attempts)
	metrics.ObserveNetworkRequest("sqlite", "alert_job_statuses_upsert", "alert_job_statuses", start, err)
	if err != nil {
		return false, 0, fmt.Errorf("ensure alert job: %w", err)
	}
	return delivered.Valid, attempts, nil
}

// MarkAlertJobDelivered records the first successful delivery of the job.
func (s *SQLite) MarkAlertJobDelivered(ctx context.Context, jobID string) error {
	now := formatTime(s.now())
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
UPDATE alert_job_statuses
SET delivered_at = COALESCE(delivered_at, ?),
    updated_at = ?
WHERE job_id = ?
`, now, now, jobID)
	metrics.ObserveNetworkRequest("sqlite", "alert_job_statuses_mark_delivered", "alert_job_statuses", start, err)
	return err
}

// RecordBusinessMetric stores a product event. Events without a name are ignored.
func (s *SQLite) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = s.now()
	}
	var userID sql.NullString
	if metric.UserID != "" {
		userID = sql.NullString{String: metric.UserID, Valid: true}
	}
	meta, err := marshalMetadata(metric.Metadata)
	if err != nil {
		meta = sql.NullString{}
	}

	start := time.Now()
	_, err = s.conn.ExecContext(ctx, `
INSERT INTO business_metrics (event, user_id, metadata, occurred_at)
VALUES (?, ?, ?, ?)
`, metric.Event, userID, meta, formatTime(metric.OccurredAt))
	metrics.ObserveNetworkRequest("sqlite", "business_metrics_insert", "business_metrics", start, err)
	return err
}

// CountBusinessMetrics returns how many events with the given name were stored.
func (s *SQLite) CountBusinessMetrics(ctx context.Context, event string) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM business_metrics WHERE event = ?`, event).Scan(&n)
	return n, err
}
