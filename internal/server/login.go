package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/shared"
	"golang.org/x/oauth2"
)

// stateTTL bounds how long a login may take between redirect and callback.
const stateTTL = 10 * time.Minute

// CompleteLogin persists a freshly issued token and returns the Spotify user id it belongs to.
type CompleteLogin func(ctx context.Context, token *oauth2.Token) (string, error)

// LoginHandler runs the authorization code flow for any number of users of the web service.
//
// Unlike [OAuthHandler] it accepts many callbacks, each one matched against a state it issued. A successful
// callback starts a session for the user; POST /logout ends it.
type LoginHandler struct {
	config   *oauth2.Config
	complete CompleteLogin
	sessions *Sessions
	logger   *log.Logger

	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

// NewLoginHandler creates a login handler that hands every token to complete and issues sessions with sessions.
func NewLoginHandler(config *oauth2.Config, complete CompleteLogin, sessions *Sessions, logger *log.Logger) *LoginHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LoginHandler{
		config:   config,
		complete: complete,
		sessions: sessions,
		logger:   logger,
		states:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *LoginHandler) Routes() []string {
	return []string{"/login", "/callback", "/logout"}
}

// ServeHTTP dispatches to the login redirect, the callback or the logout.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	want := http.MethodGet
	if r.URL.Path == "/logout" {
		want = http.MethodPost
	}
	if r.Method != want {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	case "/logout":
		h.sessions.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (h *LoginHandler) login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		http.Error(w, "failed to start login", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.prune()
	h.states[state] = h.now()
	h.mu.Unlock()

	http.Redirect(w, r, h.config.AuthCodeURL(state), http.StatusFound)
}

func (h *LoginHandler) callback(w http.ResponseWriter, r *http.Request) {
	token, status, err := exchangeCallback(r.Context(), h.config, r, h.consume)
	if err != nil {
		h.logger.Warn("login callback rejected", "error", err)
		renderAuthError(w, status, err.Error())
		return
	}

	userID, err := h.complete(r.Context(), token)
	if err != nil {
		h.logger.Error("failed to complete login", "error", err)
		renderAuthError(w, StatusFor(err), "Spotify accepted the login but the credentials could not be stored.")
		return
	}

	if err := h.sessions.Issue(w, userID); err != nil {
		h.logger.Error("failed to start session", "user", userID, "error", err)
		renderAuthError(w, http.StatusInternalServerError, "Logged in, but the session could not be started.")
		return
	}

	h.logger.Info("user logged in", "user", userID)
	renderAuthOK(w, fmt.Sprintf("Logged in as %s. Submit a clustering run to POST /cluster.", userID))
}

// consume reports whether state was issued and is still fresh, removing it either way.
func (h *LoginHandler) consume(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	issued, ok := h.states[state]
	delete(h.states, state)
	return ok && h.now().Sub(issued) <= stateTTL
}

func (h *LoginHandler) prune() {
	for state, issued := range h.states {
		if h.now().Sub(issued) > stateTTL {
			delete(h.states, state)
		}
	}
}
