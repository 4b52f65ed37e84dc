package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/radial/internal/shared"
	"github.com/gorilla/securecookie"
)

const (
	sessionCookie = "radial_session"
	sessionTTL    = 7 * 24 * time.Hour
)

type sessionKey struct{}

// Sessions issues and verifies the signed cookie that ties browser requests to the Spotify user who logged in.
type Sessions struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewSessions signs cookies with hashKey, which must be at least 32 bytes. An empty key generates a random one,
// so sessions end when the process restarts.
func NewSessions(hashKey []byte, secure bool) (*Sessions, error) {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(64)
	}
	if len(hashKey) < 32 {
		return nil, fmt.Errorf("%w: session key must be at least 32 bytes, got %d", shared.ErrInvalidConfig, len(hashKey))
	}

	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(sessionTTL / time.Second))
	return &Sessions{codec: codec, secure: secure}, nil
}

// Issue sets the session cookie for userID.
func (s *Sessions) Issue(w http.ResponseWriter, userID string) error {
	value, err := s.codec.Encode(sessionCookie, userID)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	http.SetCookie(w, s.cookie(value, int(sessionTTL/time.Second)))
	return nil
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie("", -1))
}

// User returns the Spotify id carried by the request's session cookie.
func (s *Sessions) User(r *http.Request) (string, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", fmt.Errorf("%w: log in at /login", shared.ErrNotAuthenticated)
	}

	var userID string
	if err := s.codec.Decode(sessionCookie, c.Value, &userID); err != nil || userID == "" {
		return "", fmt.Errorf("%w: invalid or expired session", shared.ErrNotAuthenticated)
	}
	return userID, nil
}

func (s *Sessions) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// RequireSession rejects requests without a valid session with 401, and with 403 when the {user} path value
// names someone else. The session user is available to the handler through [SessionUser].
func RequireSession(s *Sessions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := s.User(r)
			if err != nil {
				writeStatus(w, err)
				return
			}
			if owner := r.PathValue("user"); owner != "" && owner != userID {
				writeStatus(w, fmt.Errorf("%w: %s is not the logged in user", shared.ErrForbidden, owner))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, userID)))
		})
	}
}

// SessionUser returns the user set by [RequireSession].
func SessionUser(ctx context.Context) string {
	userID, _ := ctx.Value(sessionKey{}).(string)
	return userID
}
