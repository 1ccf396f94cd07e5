package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/dishcover/internal/auth"
	"github.com/kalambet/dishcover/internal/placecache"
	"github.com/kalambet/dishcover/internal/places"
	"github.com/kalambet/dishcover/internal/preferences"
	"github.com/kalambet/dishcover/internal/recommend"
	"github.com/kalambet/dishcover/internal/storage"
	"github.com/kalambet/dishcover/internal/summary"
)

// --- fakes ---

type fakeRecommender struct {
	mu    sync.Mutex
	resp  recommend.Response
	err   error
	calls []recommend.Request
}

func (f *fakeRecommender) Recommend(_ context.Context, req recommend.Request) (recommend.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.resp, f.err
}

type fakeFinder struct {
	results  []places.Place
	err      error
	panicMsg string
	searches []places.SearchParams
	details  map[string]places.Place
	detErr   error
}

func (f *fakeFinder) Search(_ context.Context, p places.SearchParams) ([]places.Place, error) {
	f.searches = append(f.searches, p)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.results, f.err
}

func (f *fakeFinder) Details(_ context.Context, id string) (places.Place, error) {
	if f.detErr != nil {
		return places.Place{}, f.detErr
	}
	p, ok := f.details[id]
	if !ok {
		return places.Place{}, &places.APIError{Status: http.StatusNotFound, Body: "not found"}
	}
	return p, nil
}

// --- helpers ---

type testEnv struct {
	store    *storage.Store
	cache    *placecache.Cache
	sessions *auth.Sessions
	rec      *fakeRecommender
	finder   *fakeFinder
	deps     Deps
	handler  http.Handler
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sessions, err := auth.NewSessions("api-test-secret", "", 0)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}

	env := &testEnv{
		store:    store,
		cache:    placecache.New(store, 0, 0),
		sessions: sessions,
		rec:      &fakeRecommender{},
		finder:   &fakeFinder{},
	}
	env.deps = Deps{
		Store:       store,
		Sessions:    sessions,
		Preferences: preferences.NewManager(store),
		Recommender: env.rec,
		Finder:      env.finder,
		Places:      env.cache,
		Summaries:   summary.NewSummarizer(store, env.cache),
	}
	for _, opt := range opts {
		opt(&env.deps)
	}
	env.handler = NewHandler(env.deps)
	return env
}

// do sends a request as userID. An empty userID sends no session.
func (e *testEnv) do(t *testing.T, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		tok, err := e.sessions.Issue(userID, time.Hour)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: e.sessions.CookieName(), Value: tok})
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decode(t, rec, &body)
	return body.Error.Message
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

// --- tests ---

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != `{"status":"ok"}` {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/health", "", "")

	rec := env.do(t, http.MethodGet, "/metrics", "", "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `dishcover_api_requests_total{method="GET",route="/health",status="200"}`) {
		t.Error("metrics output missing /health request counter")
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	routes := []struct{ method, path string }{
		{http.MethodPost, "/recommendations"},
		{http.MethodPost, "/search"},
		{http.MethodGet, "/places/details/p1"},
		{http.MethodPost, "/interactions"},
		{http.MethodGet, "/interactions"},
		{http.MethodGet, "/lists"},
		{http.MethodDelete, "/lists/l1"},
		{http.MethodGet, "/preferences"},
		{http.MethodPost, "/preferences/summary"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := env.do(t, rt.method, rt.path, "", "")
			expectStatus(t, rec, http.StatusUnauthorized)
			var body errorBody
			decode(t, rec, &body)
			if body.Error.Type != "authentication_error" {
				t.Errorf("type = %q", body.Error.Type)
			}
		})
	}
}

func TestAuth_BearerToken(t *testing.T) {
	env := newTestEnv(t)
	tok, _ := env.sessions.Issue("u1", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/lists", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)
}

func TestRecoverer(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	expectStatus(t, rec, http.StatusInternalServerError)
	if msg := errorMessage(t, rec); msg != "Internal server error" {
		t.Errorf("message = %q", msg)
	}
}

func TestMetrics_CountsRecoveredPanics(t *testing.T) {
	env := newTestEnv(t)
	env.finder.panicMsg = "boom"

	rec := env.do(t, http.MethodPost, "/search", `{"city":"Austin"}`, "u1")
	expectStatus(t, rec, http.StatusInternalServerError)

	rec = env.do(t, http.MethodGet, "/metrics", "", "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `dishcover_api_requests_total{method="POST",route="/search",status="500"}`) {
		t.Error("metrics output missing 500 counter for panicking /search")
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"limit=10", 10},
		{"limit=500", 200},
		{"limit=-1", 50},
		{"limit=abc", 50},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		if got := parseIntParam(r, "limit", 50, 200); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
