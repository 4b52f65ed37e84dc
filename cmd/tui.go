package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/radial/internal/shared"
	"github.com/desertthunder/radial/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI opens the cluster browser for the latest run of a user. Logs go to --log-file while it runs.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer r.SetLogger(r.logger)
	r.SetLogger(fileLogger)

	user, err := r.user(cmd.String("user"))
	if err != nil {
		return err
	}
	pipeline, err := r.pipeline(ctx, user)
	if err != nil {
		return err
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cmd.Bool("alt-screen") {
		opts = append(opts, tea.WithAltScreen())
	}

	r.logger.Info("starting tui", "user", user.SpotifyID())
	if _, err := tea.NewProgram(ui.NewModel(ctx, user.SpotifyID(), r.store, pipeline), opts...).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
