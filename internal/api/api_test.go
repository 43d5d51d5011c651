package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangsam/exprora/core"
	"github.com/huangsam/exprora/core/alloc"
	"github.com/huangsam/exprora/internal/datastore"
	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testKey = "expr_0123456789abcdef0123456789abcdef"

type testServer struct {
	router    *gin.Engine
	store     *datastore.MemoryStore
	accountID int64
}

func newTestServer(t *testing.T, cfg Config) testServer {
	t.Helper()
	store := datastore.NewMemoryStore()
	acct, err := store.CreateAccount(t.Context(), "acme", testKey)
	require.NoError(t, err)

	allocator := alloc.NewAllocator(store,
		alloc.WithMatcher(core.NewRuleMatcher()),
		alloc.WithSourceProvider(alloc.SharedProvider{Source: alloc.NewRandomSource(7)}),
	)
	engine := core.NewEngine(store, allocator)
	return testServer{router: NewRouter(cfg, NewHandler(engine, nil)), store: store, accountID: acct.ID}
}

func (s testServer) do(t *testing.T, method, path string, body any, key string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// runningExperiment creates a running experiment with a control and a treatment.
func (s testServer) runningExperiment(t *testing.T, body map[string]any) schema.Experiment {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/experiments", body, testKey)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	exp := decode[schema.Experiment](t, w)

	for _, v := range []map[string]any{
		{"name": "control", "type": "control", "traffic_percentage": 50},
		{"name": "treatment", "traffic_percentage": 50, "payload": map[string]any{"color": "green"}},
	} {
		w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/experiments/%d/variants", exp.ID), v, testKey)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/experiments/%d/status", exp.ID), map[string]any{"status": "running"}, testKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[schema.Experiment](t, w)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, Config{})

	w := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "exprora_http_requests_total")
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name    string
		key     string
		message string
	}{
		{"missing key", "", "API key required"},
		{"unknown key", "expr_nope", "invalid API key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/v1/experiments", nil, tt.key)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			body := decode[errorBody](t, w)
			assert.Equal(t, errs.CodeUnauthorized, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
			assert.NotEmpty(t, body.Error.RequestID)
			assert.Equal(t, body.Error.RequestID, w.Header().Get(HeaderRequestID))
		})
	}
}

func TestRequestID_Propagated(t *testing.T) {
	s := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
}

func TestExperimentLifecycle(t *testing.T) {
	s := newTestServer(t, Config{})
	exp := s.runningExperiment(t, map[string]any{"name": "checkout", "type": "ab_test", "primary_goal": "purchase"})
	assert.Equal(t, schema.RunningStatus, exp.Status)
	assert.Equal(t, 100, exp.TrafficAllocation)

	w := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/experiments/%d", exp.ID), nil, testKey)
	require.Equal(t, http.StatusOK, w.Code)
	full := decode[schema.RunningExperiment](t, w)
	require.Len(t, full.Variants, 2)
	assert.True(t, full.Variants[0].IsControl)

	w = s.do(t, http.MethodGet, "/api/v1/experiments?status=running", nil, testKey)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Experiments []schema.Experiment `json:"experiments"`
	}](t, w)
	assert.Len(t, list.Experiments, 1)

	w = s.do(t, http.MethodGet, "/api/v1/experiments?status=archived", nil, testKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActiveExperiments_Sticky(t *testing.T) {
	s := newTestServer(t, Config{})
	exp := s.runningExperiment(t, map[string]any{"name": "checkout", "type": "ab_test"})

	type active struct {
		Experiments []schema.ResolvedExperiment `json:"experiments"`
	}

	w := s.do(t, http.MethodGet, "/api/v1/experiments/active?visitor_id=v-1", nil, testKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[active](t, w)
	require.Len(t, first.Experiments, 1)
	assert.Equal(t, exp.ID, first.Experiments[0].ExperimentID)

	for range 5 {
		w = s.do(t, http.MethodGet, "/api/v1/experiments/active?visitor_id=v-1", nil, testKey)
		again := decode[active](t, w)
		require.Len(t, again.Experiments, 1)
		assert.Equal(t, first.Experiments[0].VariantID, again.Experiments[0].VariantID)
	}

	w = s.do(t, http.MethodGet, "/api/v1/experiments/active", nil, testKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, errs.CodeValidation, body.Error.Code)
}

func TestActiveExperiments_Targeting(t *testing.T) {
	s := newTestServer(t, Config{})
	s.runningExperiment(t, map[string]any{
		"name": "de-only",
		"type": "ab_test",
		"targeting_rules": []map[string]any{
			{"type": "country", "condition": "equals", "value": "DE"},
		},
	})

	get := func(country string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/experiments/active?visitor_id=v-"+country, nil)
		req.Header.Set(HeaderAPIKey, testKey)
		req.Header.Set(HeaderCountry, country)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		return len(decode[struct {
			Experiments []schema.ResolvedExperiment `json:"experiments"`
		}](t, w).Experiments)
	}

	assert.Equal(t, 0, get("FR"))
	assert.Equal(t, 1, get("DE"))
}

func TestActiveExperiments_CustomAttributes(t *testing.T) {
	s := newTestServer(t, Config{})
	s.runningExperiment(t, map[string]any{
		"name": "pro-plan",
		"type": "ab_test",
		"targeting_rules": []map[string]any{
			{"type": "custom", "condition": "equals", "key": "plan", "value": "pro"},
		},
	})

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"matching attribute", "visitor_id=v-pro&plan=pro", 1},
		{"other value", "visitor_id=v-free&plan=free", 0},
		{"missing attribute", "visitor_id=v-none", 0},
		{"reserved names are not attributes", "visitor_id=plan&url=https://example.com/pro", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/v1/experiments/active?"+tt.query, nil, testKey)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			got := decode[struct {
				Experiments []schema.ResolvedExperiment `json:"experiments"`
			}](t, w)
			assert.Len(t, got.Experiments, tt.want)
		})
	}
}

func TestEventsAndResults(t *testing.T) {
	s := newTestServer(t, Config{})
	exp := s.runningExperiment(t, map[string]any{"name": "checkout", "type": "ab_test"})

	type active struct {
		Experiments []schema.ResolvedExperiment `json:"experiments"`
	}
	for i := range 20 {
		visitor := fmt.Sprintf("v-%d", i)
		w := s.do(t, http.MethodGet, "/api/v1/experiments/active?visitor_id="+visitor, nil, testKey)
		resolved := decode[active](t, w).Experiments
		require.Len(t, resolved, 1)

		if i%4 == 0 {
			w = s.do(t, http.MethodPost, "/api/v1/events", map[string]any{
				"visitor_id":    visitor,
				"experiment_id": exp.ID,
				"variant_id":    resolved[0].VariantID,
				"event_type":    "conversion",
				"event_value":   10.0,
			}, testKey)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.JSONEq(t, `{"success":true}`, w.Body.String())
		}
	}

	w := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/experiments/%d/results", exp.ID), nil, testKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	results := decode[schema.ExperimentResults](t, w)
	require.Len(t, results.Variants, 2)
	assert.True(t, results.Variants[0].IsControl)
	assert.Nil(t, results.Variants[0].Statistics)
	assert.NotNil(t, results.Variants[1].Statistics)

	var visitors, conversions int64
	var revenue float64
	for _, v := range results.Variants {
		visitors += v.Visitors
		conversions += v.Conversions
		revenue += v.Revenue
	}
	assert.Equal(t, int64(20), visitors)
	assert.Equal(t, int64(5), conversions)
	assert.InDelta(t, 50.0, revenue, 1e-9)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/experiments/%d/results?start_date=2030-01-01T00:00:00Z", exp.ID), nil, testKey)
	require.Equal(t, http.StatusOK, w.Code)
	future := decode[schema.ExperimentResults](t, w)
	for _, v := range future.Variants {
		assert.Zero(t, v.Conversions)
	}
}

func TestResults_Errors(t *testing.T) {
	s := newTestServer(t, Config{})
	exp := s.runningExperiment(t, map[string]any{"name": "checkout", "type": "ab_test"})

	tests := []struct {
		name   string
		path   string
		status int
		code   errs.Code
	}{
		{"unknown experiment", "/api/v1/experiments/9999/results", http.StatusNotFound, errs.CodeNotFound},
		{"bad id", "/api/v1/experiments/abc/results", http.StatusBadRequest, errs.CodeValidation},
		{"bad date", fmt.Sprintf("/api/v1/experiments/%d/results?start_date=yesterday", exp.ID), http.StatusBadRequest, errs.CodeValidation},
		{"inverted range", fmt.Sprintf("/api/v1/experiments/%d/results?start_date=2024-02-01&end_date=2024-01-01", exp.ID), http.StatusBadRequest, errs.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, tt.path, nil, testKey)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode[errorBody](t, w).Error.Code)
		})
	}
}

func TestResults_OtherAccount(t *testing.T) {
	s := newTestServer(t, Config{})
	exp := s.runningExperiment(t, map[string]any{"name": "checkout", "type": "ab_test"})

	_, err := s.store.CreateAccount(t.Context(), "other", "expr_other")
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/experiments/%d/results", exp.ID), nil, "expr_other")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateExperiment_Validation(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing name", map[string]any{"type": "ab_test"}, "name"},
		{"bad type", map[string]any{"name": "x", "type": "bandit"}, "type"},
		{"zero allocation", map[string]any{"name": "x", "type": "ab_test", "traffic_allocation": 0}, "traffic_allocation"},
		{"allocation over 100", map[string]any{"name": "x", "type": "ab_test", "traffic_allocation": 101}, "traffic_allocation"},
		{"bad rule type", map[string]any{"name": "x", "type": "ab_test", "targeting_rules": []map[string]any{
			{"type": "weather", "condition": "equals", "value": "sunny"},
		}}, "type"},
		{"custom rule without key", map[string]any{"name": "x", "type": "ab_test", "targeting_rules": []map[string]any{
			{"type": "custom", "condition": "equals", "value": "pro"},
		}}, "key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/experiments", tt.body, testKey)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			body := decode[errorBody](t, w)
			assert.Equal(t, errs.CodeValidation, body.Error.Code)
			fields, ok := body.Error.Details["fields"].(map[string]any)
			require.True(t, ok, w.Body.String())
			assert.Contains(t, fields, tt.field)
		})
	}

	t.Run("inverted schedule", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/experiments", map[string]any{
			"name": "x", "type": "ab_test", "start_date": "2024-02-01T00:00:00Z", "end_date": "2024-01-01T00:00:00Z",
		}, testKey)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStatusTransitions(t *testing.T) {
	s := newTestServer(t, Config{})
	w := s.do(t, http.MethodPost, "/api/v1/experiments", map[string]any{"name": "x", "type": "ab_test"}, testKey)
	require.Equal(t, http.StatusCreated, w.Code)
	exp := decode[schema.Experiment](t, w)
	assert.Equal(t, schema.DraftStatus, exp.Status)
	path := fmt.Sprintf("/api/v1/experiments/%d/status", exp.ID)

	w = s.do(t, http.MethodPost, path, map[string]any{"status": "completed"}, testKey)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errs.CodeConflict, decode[errorBody](t, w).Error.Code)

	w = s.do(t, http.MethodPost, path, map[string]any{"status": "bogus"}, testKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, status := range []string{"running", "paused", "running", "completed"} {
		w = s.do(t, http.MethodPost, path, map[string]any{"status": status}, testKey)
		require.Equal(t, http.StatusOK, w.Code, "to %s: %s", status, w.Body.String())
	}

	w = s.do(t, http.MethodPost, path, map[string]any{"status": "running"}, testKey)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateExperiment(t *testing.T) {
	s := newTestServer(t, Config{})
	w := s.do(t, http.MethodPost, "/api/v1/experiments", map[string]any{
		"name": "x", "type": "ab_test", "description": "keep me", "traffic_allocation": 40,
	}, testKey)
	require.Equal(t, http.StatusCreated, w.Code)
	exp := decode[schema.Experiment](t, w)
	path := fmt.Sprintf("/api/v1/experiments/%d", exp.ID)

	w = s.do(t, http.MethodPatch, path, map[string]any{"name": "renamed", "status": "running"}, testKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[schema.Experiment](t, w)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "keep me", updated.Description)
	assert.Equal(t, 40, updated.TrafficAllocation)
	assert.Equal(t, schema.RunningStatus, updated.Status)

	w = s.do(t, http.MethodPatch, path, map[string]any{"status": "draft"}, testKey)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPatch, "/api/v1/experiments/9999", map[string]any{"name": "y"}, testKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddVariant(t *testing.T) {
	s := newTestServer(t, Config{})
	w := s.do(t, http.MethodPost, "/api/v1/experiments", map[string]any{"name": "x", "type": "ab_test"}, testKey)
	exp := decode[schema.Experiment](t, w)
	path := fmt.Sprintf("/api/v1/experiments/%d/variants", exp.ID)

	w = s.do(t, http.MethodPost, path, map[string]any{"name": "a"}, testKey)
	require.Equal(t, http.StatusCreated, w.Code)
	v := decode[schema.Variant](t, w)
	assert.Equal(t, schema.DefaultTrafficPercentage, v.TrafficPercentage)
	assert.False(t, v.IsControl)

	w = s.do(t, http.MethodPost, path, map[string]any{"name": "b", "traffic_percentage": 0}, testKey)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 0, decode[schema.Variant](t, w).TrafficPercentage)

	w = s.do(t, http.MethodPost, path, map[string]any{"name": "c", "traffic_percentage": 150}, testKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/experiments/9999/variants", map[string]any{"name": "d"}, testKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrackEvent_Validation(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing visitor", map[string]any{"event_type": "pageview"}},
		{"bad event type", map[string]any{"visitor_id": "v", "event_type": "scroll"}},
		{"bad url", map[string]any{"visitor_id": "v", "event_type": "pageview", "url": "not a url"}},
		{"non-positive experiment", map[string]any{"visitor_id": "v", "event_type": "pageview", "experiment_id": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/events", tt.body, testKey)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestVisitorInit(t *testing.T) {
	s := newTestServer(t, Config{})

	w := s.do(t, http.MethodPost, "/api/v1/visitor/init", map[string]any{"visitor_id": "v-1", "session_id": "s-1"}, testKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	status, err := s.store.GetStatus(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.TableSizes["exprora_visitors"])

	w = s.do(t, http.MethodPost, "/api/v1/visitor/init", map[string]any{"visitor_id": "v-1", "ip_address": "not-an-ip"}, testKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 2})

	for range 2 {
		w := s.do(t, http.MethodGet, "/api/v1/experiments", nil, testKey)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := s.do(t, http.MethodGet, "/api/v1/experiments", nil, testKey)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, errs.CodeRateLimited, decode[errorBody](t, w).Error.Code)

	// Unauthenticated requests are rejected before the limiter.
	w = s.do(t, http.MethodGet, "/api/v1/experiments", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Recovery(zap.NewNop()))
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, errs.CodeInternal, body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}
