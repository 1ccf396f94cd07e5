package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/dishcover/internal/auth"
	"github.com/kalambet/dishcover/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Cookie string
}

type testServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		var cookie string
		if c, err := r.Cookie(auth.DefaultCookieName); err == nil {
			cookie = c.Value
		}

		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Cookie: cookie,
		})
		ts.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client(t *testing.T) *apiClient {
	t.Helper()
	c, err := newSessionClient(ts.server.URL, auth.DefaultCookieName, "test-token", 5*time.Second)
	if err != nil {
		t.Fatalf("newSessionClient: %v", err)
	}
	return c
}

// useServer points every command at ts for the duration of the test.
func (ts *testServer) useServer(t *testing.T) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(t), nil }
	t.Cleanup(func() { newAPIClient = old })
}

func (ts *testServer) last(t *testing.T) recordedRequest {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.requests) == 0 {
		t.Fatal("no requests recorded")
	}
	return ts.requests[len(ts.requests)-1]
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	return rootCmd.Execute()
}

var ctx = context.Background()

func TestAPIClient_SendsSessionCookie(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	resp, err := ts.client(t).get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if got := ts.last(t).Cookie; got != "test-token" {
		t.Errorf("cookie = %q, want test-token", got)
	}
}

func TestNewAPIClient_MintsVerifiableToken(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("DISHCOVER_SESSION_SECRET", "cli-secret")
	t.Setenv("DISHCOVER_TOKEN", "")

	old := asUser
	asUser = "alice"
	defer func() { asUser = old }()

	client, err := newAPIClient()
	if err != nil {
		t.Fatalf("newAPIClient: %v", err)
	}
	u, _ := url.Parse(client.baseURL)
	cookies := client.httpClient.Jar.Cookies(u)
	if len(cookies) != 1 {
		t.Fatalf("cookies = %v, want one session cookie", cookies)
	}

	sessions, _ := auth.NewSessions("cli-secret", "", 0)
	sub, err := sessions.Verify(cookies[0].Value)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "alice" {
		t.Errorf("subject = %q, want alice", sub)
	}
}

func TestNewAPIClient_EnvToken(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("DISHCOVER_SESSION_SECRET", "")
	t.Setenv("DISHCOVER_TOKEN", "from-env")

	client, err := newAPIClient()
	if err != nil {
		t.Fatalf("newAPIClient: %v", err)
	}
	u, _ := url.Parse(client.baseURL)
	cookies := client.httpClient.Jar.Cookies(u)
	if len(cookies) != 1 || cookies[0].Value != "from-env" {
		t.Errorf("cookies = %v", cookies)
	}
}

func TestStatusCommand_Running(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	resp, err := ts.client(t).get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	client := ts.client(t)
	ts.server.Close()

	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"Unauthorized","type":"authentication_error"}}`))
	}))
	defer ts.Close()

	client, err := newSessionClient(ts.URL, auth.DefaultCookieName, "bad-token", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.get(ctx, "/preferences")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if err.Error() != "server returned 401: Unauthorized" {
		t.Errorf("error = %q", err.Error())
	}
}

func TestRecommendCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /recommendations": `{"recommendations":[{"restaurant":{"place_id":"p1","name":"Uchi","formatted_address":"801 S Lamar","rating":4.7,"price_level":4},"reason":"Sushi","confidence":"high"}],"totalCount":1}`,
	})
	ts.useServer(t)

	if err := runCLI(t, "recommend", "New", "York", "--chat", "date night", "--limit", "3"); err != nil {
		t.Fatalf("recommend: %v", err)
	}

	r := ts.last(t)
	if r.Method != "POST" || r.Path != "/recommendations" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["city"] != "New York" || body["chat"] != "date night" || body["limit"] != float64(3) {
		t.Errorf("body = %v", body)
	}
}

func TestSearchCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /search": `{"restaurants":[{"place_id":"p1","name":"Uchi"}],"totalCount":5,"hasMore":true}`,
	})
	ts.useServer(t)

	if err := runCLI(t, "search", "Austin", "--cuisine", "thai, sushi", "--price", "1,2", "--offset", "0"); err != nil {
		t.Fatalf("search: %v", err)
	}

	var body struct {
		City       string   `json:"city"`
		Cuisines   []string `json:"cuisines"`
		PriceLevel []int    `json:"priceLevel"`
		Limit      int      `json:"limit"`
	}
	if err := json.Unmarshal([]byte(ts.last(t).Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body.City != "Austin" || len(body.Cuisines) != 2 || body.Cuisines[1] != "sushi" || len(body.PriceLevel) != 2 || body.Limit != 20 {
		t.Errorf("body = %+v", body)
	}
}

func TestSearchCommand_BadPrice(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.useServer(t)

	err := runCLI(t, "search", "Austin", "--price", "5")
	if err == nil || !strings.Contains(err.Error(), "invalid price level") {
		t.Errorf("err = %v", err)
	}
	t.Cleanup(func() { searchCmd.Flags().Set("price", "") })
}

func TestListsCommands_Paths(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /lists/l1/restaurants":   `{"success":true}`,
		"DELETE /lists/l1/restaurants": `{"success":true}`,
		"DELETE /lists/l1":             `{"success":true}`,
	})
	ts.useServer(t)

	tests := []struct {
		args   []string
		method string
		path   string
	}{
		{[]string{"lists", "add", "l1", "p 1"}, "POST", "/lists/l1/restaurants"},
		{[]string{"lists", "remove", "l1", "p 1"}, "DELETE", "/lists/l1/restaurants?placeId=p+1"},
		{[]string{"lists", "delete", "l1"}, "DELETE", "/lists/l1"},
	}
	for _, tt := range tests {
		if err := runCLI(t, tt.args...); err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		r := ts.last(t)
		if r.Method != tt.method || r.Path != tt.path {
			t.Errorf("%v: request = %s %s, want %s %s", tt.args, r.Method, r.Path, tt.method, tt.path)
		}
	}
}

func TestInteractCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /interactions": `{"success":true}`,
	})
	ts.useServer(t)

	if err := runCLI(t, "interact", "p1", "like"); err != nil {
		t.Fatalf("interact: %v", err)
	}
	var body map[string]any
	json.Unmarshal([]byte(ts.last(t).Body), &body)
	if body["placeId"] != "p1" || body["action"] != "like" {
		t.Errorf("body = %v", body)
	}
}

func TestInteractCommand_ServerError(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.useServer(t)

	err := runCLI(t, "interact", "p1", "like")
	if err == nil || !strings.Contains(err.Error(), "server returned 404") {
		t.Errorf("err = %v", err)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Auth.SessionSecret = "shh"

	found := map[string]string{}
	for _, k := range config.ShowAll(cfg) {
		found[k.Key] = k.Value
	}
	if found["server.port"] != "4000" {
		t.Errorf("server.port = %q, want 4000", found["server.port"])
	}
	if found["auth.session_secret"] != "(set)" {
		t.Errorf("auth.session_secret = %q, want (set)", found["auth.session_secret"])
	}
}

func TestCountLabel(t *testing.T) {
	tests := []struct {
		count, limit int
		want         string
	}{
		{5, 100, "5"},
		{0, 100, "0"},
		{100, 100, "100+"},
		{150, 100, "150+"},
	}
	for _, tt := range tests {
		got := countLabel(tt.count, tt.limit)
		if got != tt.want {
			t.Errorf("countLabel(%d, %d) = %q, want %q", tt.count, tt.limit, got, tt.want)
		}
	}
}

func TestPriceLabel(t *testing.T) {
	for level, want := range map[int]string{0: "-", 1: "$", 3: "$$$", 4: "$$$$"} {
		if got := priceLabel(level); got != want {
			t.Errorf("priceLabel(%d) = %q, want %q", level, got, want)
		}
	}
}

func TestParsePriceLevels(t *testing.T) {
	got, err := parsePriceLevels(" 1, 3 ")
	if err != nil || len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("parsePriceLevels = %v, %v", got, err)
	}
	if _, err := parsePriceLevels("0"); err == nil {
		t.Error("expected error for level 0")
	}
	if got, err := parsePriceLevels(""); err != nil || got != nil {
		t.Errorf("empty = %v, %v", got, err)
	}
}
