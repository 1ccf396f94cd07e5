package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestSessions(t *testing.T) *Sessions {
	t.Helper()
	s, err := NewSessions("test-secret-that-is-long-enough", "", 0)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	return s
}

func TestIssueVerify(t *testing.T) {
	s := newTestSessions(t)
	tok, err := s.Issue("user-1", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sub, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "user-1" {
		t.Errorf("sub = %q", sub)
	}
}

func TestVerify_Rejects(t *testing.T) {
	s := newTestSessions(t)
	other, _ := NewSessions("a-different-secret", "", 0)
	foreign, _ := other.Issue("user-1", 0)

	expired, _ := s.Issue("user-1", time.Minute)
	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	defer func() { s.now = time.Now }()

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
	noneTok, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, tok := range map[string]string{
		"wrong secret": foreign,
		"expired":      expired,
		"alg none":     noneTok,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestVerify_RequiresSubject(t *testing.T) {
	s := newTestSessions(t)
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString(s.secret)
	if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestNewSessions_RequiresSecret(t *testing.T) {
	if _, err := NewSessions("", "", 0); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestMiddleware(t *testing.T) {
	s := newTestSessions(t)
	tok, _ := s.Issue("user-7", 0)

	handler := s.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserID(r.Context())
		if !ok {
			t.Error("user id missing from context")
		}
		w.Write([]byte(id))
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		body   string
	}{
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tok}) }, http.StatusOK, "user-7"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }, http.StatusOK, "user-7"},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"bad bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.body)
			}
		})
	}
}
