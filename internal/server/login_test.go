package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/radial/internal/shared"
	"golang.org/x/oauth2"
)

func TestLoginHandler(t *testing.T) {
	_, config := tokenServer(t)

	var stored []*oauth2.Token
	complete := func(ctx context.Context, token *oauth2.Token) (string, error) {
		if token.AccessToken == "access-fail" {
			return "", fmt.Errorf("%w: database locked", shared.ErrServiceUnavailable)
		}
		stored = append(stored, token)
		return "listener", nil
	}

	sessions, err := NewSessions(nil, false)
	if err != nil {
		t.Fatalf("NewSessions failed: %v", err)
	}
	h := NewLoginHandler(config, complete, sessions, shared.NewLogger(&bytes.Buffer{}))
	router := NewBasicRouter()
	router.Handler(h)

	login := func(t *testing.T) string {
		t.Helper()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
		if rec.Code != http.StatusFound {
			t.Fatalf("expected redirect, got %d", rec.Code)
		}
		loc, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("invalid redirect: %v", err)
		}
		if !strings.HasSuffix(loc.Path, "/authorize") || loc.Query().Get("client_id") != "client" {
			t.Errorf("unexpected authorize URL %s", loc)
		}
		return loc.Query().Get("state")
	}

	callback := func(query string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+query, nil))
		return rec
	}

	t.Run("full flow", func(t *testing.T) {
		state := login(t)
		rec := callback("state=" + state + "&code=abc")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Logged in as listener") {
			t.Fatalf("unexpected callback response %d: %s", rec.Code, rec.Body.String())
		}
		if len(stored) != 1 || stored[0].AccessToken != "access-abc" || stored[0].RefreshToken != "refresh" {
			t.Errorf("unexpected stored tokens %+v", stored)
		}

		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != sessionCookie || !cookies[0].HttpOnly || cookies[0].SameSite != http.SameSiteLaxMode {
			t.Fatalf("expected an HttpOnly SameSite session cookie, got %+v", cookies)
		}
		req := httptest.NewRequest(http.MethodGet, "/results/listener", nil)
		req.AddCookie(cookies[0])
		if user, err := sessions.User(req); err != nil || user != "listener" {
			t.Errorf("expected the session to carry listener, got %q, %v", user, err)
		}
	})

	t.Run("failed callback starts no session", func(t *testing.T) {
		if rec := callback("state=forged&code=abc"); len(rec.Result().Cookies()) != 0 {
			t.Errorf("expected no cookie, got %+v", rec.Result().Cookies())
		}
	})

	t.Run("logout", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != sessionCookie || cookies[0].MaxAge >= 0 {
			t.Errorf("expected an expired session cookie, got %+v", cookies)
		}
	})

	t.Run("state is single use", func(t *testing.T) {
		state := login(t)
		callback("state=" + state + "&code=abc")
		if rec := callback("state=" + state + "&code=abc"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected replayed state to be rejected, got %d", rec.Code)
		}
	})

	t.Run("concurrent logins", func(t *testing.T) {
		first, second := login(t), login(t)
		if first == second {
			t.Fatal("each login should get its own state")
		}
		if rec := callback("state=" + second + "&code=two"); rec.Code != http.StatusOK {
			t.Errorf("second login failed: %d", rec.Code)
		}
		if rec := callback("state=" + first + "&code=one"); rec.Code != http.StatusOK {
			t.Errorf("first login failed: %d", rec.Code)
		}
	})

	t.Run("expired state", func(t *testing.T) {
		state := login(t)
		h.now = func() time.Time { return time.Now().Add(stateTTL + time.Minute) }
		defer func() { h.now = time.Now }()

		if rec := callback("state=" + state + "&code=abc"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected expired state to be rejected, got %d", rec.Code)
		}
	})

	t.Run("unknown state", func(t *testing.T) {
		if rec := callback("state=forged&code=abc"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("storage failure", func(t *testing.T) {
		state := login(t)
		if rec := callback("state=" + state + "&code=fail"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}
