package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/server"
	"github.com/desertthunder/radial/internal/services"
	"github.com/desertthunder/radial/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin performs the OAuth2 authorization code flow for Spotify and stores the user with its tokens.
//
// Serves the redirect address locally, sends the user to Spotify and waits for the callback.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.newSpotifyService()
	if err != nil {
		return err
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	token, err := r.doOAuth(ctx, svc, oauthFlow{timeout: timeout, noBrowser: cmd.Bool("no-browser")})
	if err != nil {
		return err
	}

	user, err := r.completeLogin(ctx, svc, token)
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Logged in as %s (%s)\n\n", user.DisplayName(), user.SpotifyID())
	r.writePlain("You can now use: radial cluster run --clusters 9\n")
	return nil
}

// completeLogin fetches the profile behind token and saves the user with it.
func (r *Runner) completeLogin(ctx context.Context, svc *services.SpotifyService, token *oauth2.Token) (*models.User, error) {
	if err := r.openDatabase(); err != nil {
		return nil, err
	}
	if err := svc.OAuthenticate(ctx, token); err != nil {
		return nil, err
	}

	profile, err := svc.UserProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch profile: %v", shared.ErrAuthFailed, err)
	}

	user := models.NewUser(0, profile.ID, profile.DisplayName)
	user.SetToken(token)
	if err := r.users.Save(user); err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}

	r.logger.Info("user authenticated", "user", user.SpotifyID())
	return user, nil
}

// AuthStatus lists stored users and whether their tokens are still usable.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDatabase(); err != nil {
		return err
	}

	users, err := r.users.List(nil)
	if err != nil {
		return err
	}

	type status struct {
		SpotifyID   string     `json:"spotify_id"`
		DisplayName string     `json:"display_name"`
		HasRefresh  bool       `json:"has_refresh_token"`
		Expiry      *time.Time `json:"expiry,omitempty"`
		Expired     bool       `json:"expired"`
	}

	statuses := make([]status, 0, len(users))
	for _, u := range users {
		s := status{SpotifyID: u.SpotifyID(), DisplayName: u.DisplayName(), HasRefresh: u.RefreshToken() != "", Expiry: u.TokenExpiry()}
		s.Expired = s.Expiry != nil && s.Expiry.Before(time.Now())
		statuses = append(statuses, s)
	}

	if cmd.Bool("json") {
		return r.writeJSON(statuses, cmd.Bool("pretty"))
	}

	if len(statuses) == 0 {
		return r.writePlain("✗ Not authenticated, run `radial auth login`\n")
	}

	r.writePlainHeader(fmt.Sprintf("%d stored user(s)", len(statuses)))
	for _, s := range statuses {
		state := "✓ valid"
		switch {
		case s.Expired && s.HasRefresh:
			state = "↻ expired, will refresh on next use"
		case s.Expired:
			state = "✗ expired, run `radial auth login`"
		}
		r.writePlain("%s (%s): %s\n", s.DisplayName, s.SpotifyID, state)
	}
	return nil
}

type oauthFlow struct {
	timeout   time.Duration
	noBrowser bool
}

// doOAuth serves the redirect address until Spotify calls back once, the timeout passes or ctx ends.
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService, flow oauthFlow) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(handler)

	serveCtx, stop := context.WithCancel(ctx)
	defer stop()

	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	served := make(chan error, 1)
	go func() { served <- server.ListenAndServe(serveCtx, addr, router, r.logger) }()

	authURL := oauthSrv.GetAuthURL(state)
	opened := false
	if !flow.noBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		} else {
			opened = true
		}
	}
	if !opened {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", flow.timeout)
	timer := time.NewTimer(flow.timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-served:
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("%w: callback server stopped: %v", shared.ErrServiceUnavailable, err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: no callback within %s", shared.ErrTimeout, flow.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	stop()
	if err := <-served; err != nil {
		r.logger.Warn("callback server did not shut down cleanly", "error", err)
	}

	if err := result.Error(); err != nil {
		return nil, err
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
