package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/radial/internal/server"
	"github.com/desertthunder/radial/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Serve runs the clustering API together with the browser login until ctx is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDatabase(); err != nil {
		return err
	}
	if err := r.openStore(); err != nil {
		return err
	}

	svc, err := r.newSpotifyService()
	if err != nil {
		return err
	}

	pipelines := func(ctx context.Context, userID string) (*tasks.Pipeline, error) {
		user, err := r.user(userID)
		if err != nil {
			return nil, err
		}
		return r.pipeline(ctx, user)
	}

	complete := func(ctx context.Context, token *oauth2.Token) (string, error) {
		svc, err := r.newSpotifyService()
		if err != nil {
			return "", err
		}
		user, err := r.completeLogin(ctx, svc, token)
		if err != nil {
			return "", err
		}
		return user.SpotifyID(), nil
	}

	sessions, err := server.NewSessions([]byte(r.config.Server.SessionKey), r.config.Server.SecureCookies)
	if err != nil {
		return err
	}

	app := server.NewApp(server.AppOpts{
		API: server.APIOpts{
			Pipelines:       pipelines,
			Jobs:            tasks.NewJobRegistry(r.logger),
			Results:         r.store,
			AllowedClusters: r.config.Pipeline.AllowedClusters,
			Logger:          r.logger,
		},
		OAuth:    svc.GetOAuthConfig(),
		Complete: complete,
		Sessions: sessions,
		Logger:   r.logger,
	})

	addr := cmd.String("addr")
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	}

	r.writePlain("→ Serving on http://%s (log in at /login)\n", addr)
	return server.ListenAndServe(ctx, addr, app, r.logger)
}
