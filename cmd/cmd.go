package main

import (
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
)

// userFlag selects the Spotify user a command acts for, defaulting to the last one logged in.
func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "Spotify user id (default: most recently logged in user)",
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

// setupCommand handles setup operations for the configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create config.toml when missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles Spotify authentication
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage: "Authorize with Spotify in the browser and store the tokens",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for the browser callback", Value: 2 * time.Minute},
					&cli.BoolFlag{Name: "no-browser", Usage: "Print the authorization URL instead of opening a browser"},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show stored users and their token state",
				Flags:  jsonFlags(),
				Action: r.AuthStatus,
			},
		},
	}
}

// clusterCommand handles clustering runs and their results
func clusterCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "cluster",
		Aliases: []string{"cl"},
		Usage:   "Cluster your library into playlists",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Collect audio features, cluster the library and store the result",
				Flags: append([]cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:    "algorithm",
						Aliases: []string{"a"},
						Usage:   `"kmeans" or "agglomerative hierarchical"`,
						Value:   "kmeans",
					},
					&cli.StringFlag{
						Name:     "clusters",
						Aliases:  []string{"k"},
						Usage:    `Number of playlists, e.g. "9" or "9 clusters"`,
						Required: true,
					},
				}, jsonFlags()...),
				Action: r.ClusterRun,
			},
			{
				Name:   "show",
				Usage:  "Show the clusters of the latest run",
				Flags:  append([]cli.Flag{userFlag()}, jsonFlags()...),
				Action: r.ClusterShow,
			},
			{
				Name:  "deploy",
				Usage: "Create a playlist from a cluster, or from every cluster with \"all\"",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "cluster"},
				},
				Flags: []cli.Flag{
					userFlag(),
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent deployments when deploying all clusters",
						Value: 3,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Deployments started per second when deploying all clusters",
						Value: 2,
					},
					&cli.StringFlag{
						Name:    "manifest-dir",
						Aliases: []string{"o"},
						Usage:   "Directory for the deployment manifest when deploying all clusters",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Manifest format: json or txt",
						Value:   "json",
					},
				},
				Action: r.ClusterDeploy,
			},
			{
				Name:  "export",
				Usage: "Export the latest run as JSON, CSV, Markdown or text",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown or txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: radial_export_<timestamp>)",
					},
					&cli.BoolFlag{
						Name:  "covers",
						Usage: "Download album covers next to the Markdown export",
					},
				},
				Action: r.ClusterExport,
			},
		},
	}
}

// historyCommand lists previous runs and their playlists
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List previous clustering runs and the playlists created from them",
		Flags: append([]cli.Flag{
			userFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of runs to show",
				Value:   10,
			},
		}, jsonFlags()...),
		Action: r.History,
	}
}

// serveCommand runs the web service
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the clustering API and the browser login",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port from the config)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for browsing and deploying clusters.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse the latest clusters and deploy them interactively",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI owns the terminal",
				Value: filepath.Join("tmp", "radial-tui.log"),
			},
			&cli.BoolFlag{Name: "alt-screen", Usage: "Render in the alternate screen buffer", Value: true},
		},
		Action: r.TUI,
	}
}
