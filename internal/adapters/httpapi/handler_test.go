package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nova-xfinity/internal/adapters/ranker"
	"nova-xfinity/internal/adapters/repo"
	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/cache"
	httpinfra "nova-xfinity/internal/infra/http"
	filesettings "nova-xfinity/internal/infra/settings"
	"nova-xfinity/internal/usecase/assistant"
	"nova-xfinity/internal/usecase/feedback"
	"nova-xfinity/internal/usecase/quota"
	"nova-xfinity/internal/usecase/settings"
)

const testSecret = "handler-secret"

type testAPI struct {
	router http.Handler
	db     *repo.SQLite
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	dir := t.TempDir()
	db, err := repo.OpenSQLite(filepath.Join(dir, "nova.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zerolog.Nop()
	quotaSvc := quota.NewService(db, db, db, logger)
	settingsSvc, err := settings.NewService(context.Background(), filesettings.NewFileStore(filepath.Join(dir, "settings.yaml")), nil, logger)
	require.NoError(t, err)

	h := NewHandler(
		feedback.NewService(db, ranker.NewSimple(), db, logger),
		quotaSvc,
		assistant.NewService(cache.NewMemorySessionStore(), quotaSvc, db, logger),
		settingsSvc,
		logger,
	)
	r := chi.NewRouter()
	h.Routes(r, testSecret)

	token, err := httpinfra.IssueToken(testSecret, "user-1", time.Hour, time.Now())
	require.NoError(t, err)
	return &testAPI{router: r, db: db, token: token}
}

func (a *testAPI) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, httpinfra.Envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env httpinfra.Envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestRequiresToken(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/subscription/usage", nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitFeedback(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{name: "missing fields", body: `{"provider":"openai","rating":5}`, status: http.StatusBadRequest,
			message: "Missing required fields: contentType, provider, and rating are required"},
		{name: "bad rating", body: `{"contentType":"ARTICLE","provider":"openai","rating":7}`, status: http.StatusBadRequest,
			message: "Rating must be -1 (thumbs down), 1 (thumbs up), or 1-5 (stars)"},
		{name: "bad provider", body: `{"contentType":"ARTICLE","provider":"mistral","rating":4}`, status: http.StatusBadRequest,
			message: "Invalid provider. Must be one of: GEMINI, OPENAI, ANTHROPIC, LLAMA"},
		{name: "bad body", body: `{`, status: http.StatusBadRequest, message: "invalid request body"},
		{name: "ok", body: `{"contentType":"article","provider":"openai","model":"gpt-4o","rating":5}`, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := api.do(t, http.MethodPost, "/api/feedback", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				require.NotNil(t, env.Error)
				assert.Equal(t, httpinfra.CodeValidation, env.Error.Code)
				assert.Equal(t, tt.message, env.Error.Message)
				return
			}
			assert.True(t, env.Success)
			var fb domain.Feedback
			require.NoError(t, json.Unmarshal(env.Data, &fb))
			assert.Equal(t, domain.ContentArticle, fb.ContentType)
			assert.Equal(t, "user-1", fb.UserID)
		})
	}

	rec, env := api.do(t, http.MethodGet, "/api/feedback/history?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page domain.FeedbackPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Pagination.Total)
	assert.Equal(t, 10, page.Pagination.Limit)
	assert.False(t, page.Pagination.HasMore)
}

func TestRecommend(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodGet, "/api/feedback/recommend", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "contentType query parameter is required", env.Error.Message)

	rec, _ = api.do(t, http.MethodGet, "/api/feedback/recommend?contentType=PODCAST", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = api.do(t, http.MethodGet, "/api/feedback/recommend?contentType=IMAGE", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out domain.Recommendation
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, domain.ReasonNoFeedback, out.Reason)
	assert.Equal(t, domain.ProviderGemini, out.Provider)
	assert.Equal(t, "gemini-3-pro-preview", out.Model)

	api.do(t, http.MethodPost, "/api/feedback", `{"contentType":"VIDEO","provider":"llama","rating":-1}`)
	for query, want := range map[string]domain.RecommendationReason{
		"contentType=VIDEO":                domain.ReasonBestAvailable,
		"contentType=VIDEO&minRating=0":    domain.ReasonBestAvailable,
		"contentType=VIDEO&minRating=NaN":  domain.ReasonBestAvailable,
		"contentType=VIDEO&minRating=-1":   domain.ReasonFeedbackBased,
		"contentType=VIDEO&minRating=-0.5": domain.ReasonFeedbackBased,
	} {
		rec, env = api.do(t, http.MethodGet, "/api/feedback/recommend?"+query, "")
		require.Equal(t, http.StatusOK, rec.Code, query)
		out = domain.Recommendation{}
		require.NoError(t, json.Unmarshal(env.Data, &out))
		assert.Equal(t, want, out.Reason, query)
		assert.Equal(t, domain.ProviderLlama, out.Provider, query)
	}
}

func TestFeedbackStats(t *testing.T) {
	api := newTestAPI(t)
	api.do(t, http.MethodPost, "/api/feedback", `{"contentType":"VIDEO","provider":"llama","rating":-1}`)

	rec, _ := api.do(t, http.MethodGet, "/api/feedback/stats?contentType=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := api.do(t, http.MethodGet, "/api/feedback/stats?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats domain.FeedbackStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.TotalFeedback)
	assert.Equal(t, 7, stats.Period.Days)
	assert.InDelta(t, 2.0, stats.ProviderStats[domain.ProviderLlama].AverageRating, 1e-9)
}

func TestUsageAndConsume(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodPost, "/api/subscription/usage/articles", `{"amount":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report domain.UsageReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, domain.QuotaUsage{Used: 2, Limit: 10, Remaining: 8}, report.Features[domain.FeatureArticles])

	rec, env = api.do(t, http.MethodPost, "/api/subscription/usage/videos", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, httpinfra.CodeQuotaExceeded, env.Error.Code)
	assert.JSONEq(t, `{"feature":"videos","currentUsage":0,"limit":0,"remaining":0,"plan":"FREE"}`, string(mustJSON(t, env.Error.Details)))

	rec, _ = api.do(t, http.MethodPost, "/api/subscription/usage/podcasts", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/subscription/usage/articles", `{"amount":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = api.do(t, http.MethodGet, "/api/subscription/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Equal(t, domain.PlanFree, sub.Plan)
}

func TestAssistantSession(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodPost, "/api/assistant/sessions/s1/turns",
		`{"messages":[{"role":"user","content":"hello"},{"role":"assistant","tool":"web-search","content":{"summary":"found it"}}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var turn assistant.TurnResult
	require.NoError(t, json.Unmarshal(env.Data, &turn))
	assert.Equal(t, 100, turn.Tokens)
	assert.Equal(t, 100, turn.SessionTokens)
	assert.Equal(t, assistant.RouteFor("web-search"), turn.Route)

	rec, env = api.do(t, http.MethodGet, "/api/assistant/sessions/s1/tokens", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var usage assistant.SessionUsage
	require.NoError(t, json.Unmarshal(env.Data, &usage))
	assert.Equal(t, 100, usage.SessionTokens)
	assert.Equal(t, 100, usage.Monthly.Used)

	rec, _ = api.do(t, http.MethodPost, "/api/assistant/sessions/s1/turns", `{"messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodDelete, "/api/assistant/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = api.do(t, http.MethodGet, "/api/assistant/sessions/s1/conversation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, string(env.Data))
}

func TestSettings(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(t, http.MethodPut, "/api/admin/settings", `{"provider":"cohere"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httpinfra.CodeValidation, env.Error.Code)

	rec, env = api.do(t, http.MethodPut, "/api/admin/settings", `{"provider":"anthropic","apiKeys":{"ANTHROPIC":"sk-ant-123456"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view domain.SettingsView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, domain.ProviderAnthropic, view.Provider)
	assert.Equal(t, domain.KeyState{Configured: true, Masked: "********3456"}, view.Keys[domain.ProviderAnthropic])
	assert.NotContains(t, rec.Body.String(), "sk-ant")

	rec, env = api.do(t, http.MethodGet, "/api/admin/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, domain.ProviderAnthropic, view.Provider)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
