package novaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"nova-xfinity/internal/domain"
)

// ErrUnauthorized is returned when the API rejects the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// Client is a typed client of the REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// APIError is an error envelope returned by the API.
type APIError struct {
	Status  int             `json:"-"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nova api error [%s] status=%d: %s", e.Code, e.Status, e.Message)
}

// Unwrap maps envelope codes to sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "QUOTA_EXCEEDED":
		return domain.ErrQuotaExceeded
	case "UNAUTHORIZED":
		return ErrUnauthorized
	}
	return nil
}

// QuotaDetails decodes the details of a QUOTA_EXCEEDED error.
func (e *APIError) QuotaDetails() (QuotaDetails, bool) {
	if e.Code != "QUOTA_EXCEEDED" || len(e.Details) == 0 {
		return QuotaDetails{}, false
	}
	var d QuotaDetails
	if err := json.Unmarshal(e.Details, &d); err != nil {
		return QuotaDetails{}, false
	}
	return d, true
}

// QuotaDetails mirrors the details object of a quota refusal.
type QuotaDetails struct {
	Feature      domain.Feature  `json:"feature"`
	CurrentUsage int             `json:"currentUsage"`
	Limit        int             `json:"limit"`
	Remaining    int             `json:"remaining"`
	Plan         domain.PlanName `json:"plan"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

// TurnResult is the response of AddTurn.
type TurnResult struct {
	Tokens        int    `json:"tokens"`
	SessionTokens int    `json:"sessionTokens"`
	Route         string `json:"route,omitempty"`
}

// SessionUsage is the response of SessionTokens.
type SessionUsage struct {
	SessionTokens int               `json:"sessionTokens"`
	Monthly       domain.QuotaUsage `json:"monthly"`
}

// SettingsUpdate is the body of UpdateSettings; nil fields are left unchanged.
type SettingsUpdate struct {
	Provider       *string           `json:"provider,omitempty"`
	FocusKeyphrase *string           `json:"focusKeyphrase,omitempty"`
	APIKeys        map[string]string `json:"apiKeys,omitempty"`
}

func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/api/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", out.Status)
	}
	return nil
}

func (c *Client) SubmitFeedback(ctx context.Context, in domain.FeedbackInput) (domain.Feedback, error) {
	var fb domain.Feedback
	if err := c.post(ctx, "/api/feedback", in, &fb); err != nil {
		return domain.Feedback{}, err
	}
	if fb.ID == "" {
		return domain.Feedback{}, errors.New("feedback response without id")
	}
	return fb, nil
}

// FeedbackStats fetches statistics; an empty contentType means all types, days <= 0 the server default.
func (c *Client) FeedbackStats(ctx context.Context, contentType domain.ContentType, days int) (domain.FeedbackStats, error) {
	q := url.Values{}
	if contentType != "" {
		q.Set("contentType", string(contentType))
	}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var stats domain.FeedbackStats
	if err := c.get(ctx, "/api/feedback/stats", q, &stats); err != nil {
		return domain.FeedbackStats{}, err
	}
	if stats.ProviderStats == nil {
		stats.ProviderStats = map[domain.Provider]domain.RatingStats{}
	}
	return stats, nil
}

func (c *Client) Recommend(ctx context.Context, contentType domain.ContentType, minRating float64) (domain.Recommendation, error) {
	q := url.Values{"contentType": {string(contentType)}}
	if minRating != 0 {
		q.Set("minRating", strconv.FormatFloat(minRating, 'f', -1, 64))
	}
	var rec domain.Recommendation
	if err := c.get(ctx, "/api/feedback/recommend", q, &rec); err != nil {
		return domain.Recommendation{}, err
	}
	if rec.Provider == "" || rec.Reason == "" {
		return domain.Recommendation{}, errors.New("recommendation response without provider or reason")
	}
	return rec, nil
}

func (c *Client) FeedbackHistory(ctx context.Context, limit, offset int) (domain.FeedbackPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var page domain.FeedbackPage
	if err := c.get(ctx, "/api/feedback/history", q, &page); err != nil {
		return domain.FeedbackPage{}, err
	}
	return page, nil
}

func (c *Client) Usage(ctx context.Context) (domain.UsageReport, error) {
	var report domain.UsageReport
	if err := c.get(ctx, "/api/subscription/usage", nil, &report); err != nil {
		return domain.UsageReport{}, err
	}
	if report.Plan == "" {
		return domain.UsageReport{}, errors.New("usage response without plan")
	}
	return report, nil
}

func (c *Client) Subscription(ctx context.Context) (domain.Subscription, error) {
	var sub domain.Subscription
	if err := c.get(ctx, "/api/subscription/status", nil, &sub); err != nil {
		return domain.Subscription{}, err
	}
	if sub.Plan == "" {
		return domain.Subscription{}, errors.New("subscription response without plan")
	}
	return sub, nil
}

func (c *Client) ConsumeUsage(ctx context.Context, f domain.Feature, amount int) (domain.UsageReport, error) {
	var report domain.UsageReport
	endpoint := "/api/subscription/usage/" + string(f)
	if err := c.post(ctx, endpoint, map[string]int{"amount": amount}, &report); err != nil {
		return domain.UsageReport{}, err
	}
	return report, nil
}

func (c *Client) AddTurn(ctx context.Context, sessionID string, msgs []domain.ChatMessage) (TurnResult, error) {
	var res TurnResult
	endpoint := "/api/assistant/sessions/" + sessionID + "/turns"
	if err := c.post(ctx, endpoint, map[string]any{"messages": msgs}, &res); err != nil {
		return TurnResult{}, err
	}
	return res, nil
}

func (c *Client) SessionTokens(ctx context.Context, sessionID string) (SessionUsage, error) {
	var usage SessionUsage
	if err := c.get(ctx, "/api/assistant/sessions/"+sessionID+"/tokens", nil, &usage); err != nil {
		return SessionUsage{}, err
	}
	return usage, nil
}

func (c *Client) Conversation(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	var out struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	if err := c.get(ctx, "/api/assistant/sessions/"+sessionID+"/conversation", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/assistant/sessions/"+sessionID, nil, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) Settings(ctx context.Context) (domain.SettingsView, error) {
	var view domain.SettingsView
	if err := c.get(ctx, "/api/admin/settings", nil, &view); err != nil {
		return domain.SettingsView{}, err
	}
	return view, nil
}

func (c *Client) UpdateSettings(ctx context.Context, u SettingsUpdate) (domain.SettingsView, error) {
	req, err := c.newRequest(ctx, http.MethodPut, "/api/admin/settings", nil, u)
	if err != nil {
		return domain.SettingsView{}, err
	}
	var view domain.SettingsView
	if err := c.do(req, &view); err != nil {
		return domain.SettingsView{}, err
	}
	return view, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, q, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, q url.Values, body any) (*http.Request, error) {
	resolved := *c.baseURL
	basePath := strings.TrimSuffix(c.baseURL.Path, "/")
	resolved.Path = path.Clean(basePath + endpoint)
	if len(q) > 0 {
		resolved.RawQuery = q.Encode()
	}
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends req once and decodes the envelope's data into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nova api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = &APIError{Message: http.StatusText(resp.StatusCode)}
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
