package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/radial/internal/shared"
)

func TestSessions(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))

	issue := func(t *testing.T, s *Sessions, user string) *http.Cookie {
		t.Helper()
		rec := httptest.NewRecorder()
		if err := s.Issue(rec, user); err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("expected one cookie, got %d", len(cookies))
		}
		return cookies[0]
	}

	withCookie := func(c *http.Cookie) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if c != nil {
			req.AddCookie(c)
		}
		return req
	}

	t.Run("round trip", func(t *testing.T) {
		s, err := NewSessions(key, true)
		if err != nil {
			t.Fatalf("NewSessions failed: %v", err)
		}
		c := issue(t, s, "listener")
		if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
			t.Errorf("unexpected cookie attributes %+v", c)
		}
		if strings.Contains(c.Value, "listener") {
			t.Errorf("cookie should not carry the plain user id: %s", c.Value)
		}

		user, err := s.User(withCookie(c))
		if err != nil || user != "listener" {
			t.Errorf("expected listener, got %q, %v", user, err)
		}
	})

	tests := []struct {
		name   string
		cookie func(t *testing.T) *http.Cookie
	}{
		{name: "no cookie", cookie: func(t *testing.T) *http.Cookie { return nil }},
		{name: "plain user id", cookie: func(t *testing.T) *http.Cookie {
			return &http.Cookie{Name: sessionCookie, Value: "listener"}
		}},
		{name: "tampered", cookie: func(t *testing.T) *http.Cookie {
			s, _ := NewSessions(key, false)
			c := issue(t, s, "listener")
			c.Value = c.Value[:len(c.Value)-2] + "AA"
			return c
		}},
		{name: "signed with another key", cookie: func(t *testing.T) *http.Cookie {
			s, _ := NewSessions([]byte(strings.Repeat("x", 32)), false)
			return issue(t, s, "listener")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := NewSessions(key, false)
			if _, err := s.User(withCookie(tt.cookie(t))); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	}

	t.Run("short key", func(t *testing.T) {
		if _, err := NewSessions([]byte("short"), false); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestRequireSession(t *testing.T) {
	s, err := NewSessions(nil, false)
	if err != nil {
		t.Fatalf("NewSessions failed: %v", err)
	}

	router := NewBasicRouter()
	router.Handle(http.MethodGet, "/results/{user}", RequireSession(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(SessionUser(r.Context())))
	})))

	rec := httptest.NewRecorder()
	if err := s.Issue(rec, "listener"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	cookie := rec.Result().Cookies()[0]

	tests := []struct {
		name   string
		target string
		cookie *http.Cookie
		status int
	}{
		{name: "own user", target: "/results/listener", cookie: cookie, status: http.StatusOK},
		{name: "another user", target: "/results/victim", cookie: cookie, status: http.StatusForbidden},
		{name: "no session", target: "/results/listener", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.status == http.StatusOK && rec.Body.String() != "listener" {
				t.Errorf("handler should see the session user, got %q", rec.Body.String())
			}
		})
	}
}
