package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/radial/internal/shared"
	"golang.org/x/oauth2"
)

// OAuthResult is the outcome of one authorization callback.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler accepts exactly one Spotify callback for `radial auth login` and reports it on [OAuthHandler.Result].
type OAuthHandler struct {
	config  *oauth2.Config
	state   string
	results chan OAuthResult
	used    atomic.Bool
	once    sync.Once
}

// NewOAuthHandler creates a callback handler that only accepts state, which should come from [shared.GenerateState].
func NewOAuthHandler(config *oauth2.Config, state string) *OAuthHandler {
	return &OAuthHandler{
		config:  config,
		state:   state,
		results: make(chan OAuthResult, 1),
	}
}

func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.used.CompareAndSwap(false, true) {
		renderAuthError(w, http.StatusBadRequest, "This login link was already used. Run radial auth login again.")
		return
	}

	token, status, err := exchangeCallback(r.Context(), h.config, r, func(state string) bool { return state == h.state })
	if err != nil {
		h.Send(OAuthResult{err: err})
		renderAuthError(w, status, err.Error())
		return
	}

	h.Send(OAuthResult{Token: token})
	renderAuthOK(w, "You can close this window and return to the terminal.")
}

// Send delivers result to [OAuthHandler.Result]. Only the first call has any effect.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result yields a single result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

// exchangeCallback checks the state and error parameters of a callback and trades its code for a token.
// The returned status applies when err is not nil.
func exchangeCallback(ctx context.Context, config *oauth2.Config, r *http.Request, validState func(string) bool) (*oauth2.Token, int, error) {
	q := r.URL.Query()
	if !validState(q.Get("state")) {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)
	}
	if reason := q.Get("error"); reason != "" {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: spotify returned %s", shared.ErrAuthFailed, reason)
	}

	code := q.Get("code")
	if code == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: callback has no code", shared.ErrAuthFailed)
	}

	token, err := config.Exchange(context.WithoutCancel(ctx), code)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("%w: token exchange failed: %v", shared.ErrAuthFailed, err)
	}
	return token, http.StatusOK, nil
}
