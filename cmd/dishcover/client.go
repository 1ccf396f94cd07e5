package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/kalambet/dishcover/internal/auth"
	"github.com/kalambet/dishcover/internal/config"
)

const defaultCLIUser = "local"

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

// newSessionClient returns a client whose cookie jar carries the session
// token for baseURL.
func newSessionClient(baseURL, cookieName, token string, timeout time.Duration) (*apiClient, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}
	jar.SetCookies(u, []*http.Cookie{{Name: cookieName, Value: token, Path: "/"}})
	return &apiClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

// newAPIClient talks to the local server. The session token comes from
// DISHCOVER_TOKEN, or is minted from the configured session secret for
// --user.
var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	token := os.Getenv("DISHCOVER_TOKEN")
	if token == "" {
		sessions, err := auth.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.CookieName, 0)
		if err != nil {
			return nil, fmt.Errorf("no session token: set DISHCOVER_TOKEN or auth.session_secret (%w)", err)
		}
		if token, err = sessions.Issue(cliUser(cfg), time.Hour); err != nil {
			return nil, err
		}
	}

	return newSessionClient(fmt.Sprintf("http://%s", cfg.Server.Addr()), cfg.Auth.CookieName, token, 60*time.Second)
}

func cliUser(cfg config.Config) string {
	switch {
	case asUser != "":
		return asUser
	case cfg.MCP.UserID != "":
		return cfg.MCP.UserID
	default:
		return defaultCLIUser
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is dishcover running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *apiClient) put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// decodeJSON decodes a success body into v, or turns an error envelope into
// an error carrying the status and message.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, envelope.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
