package main

import (
	"context"
	"time"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/services"
	"github.com/desertthunder/radial/internal/tasks"
	"github.com/urfave/cli/v3"
)

type deploymentEntry struct {
	Cluster    int    `json:"cluster"`
	PlaylistID string `json:"playlist_id"`
	URL        string `json:"url"`
	TrackCount int    `json:"track_count"`
}

type historyEntry struct {
	ClusteringID string            `json:"clustering_id"`
	Title        string            `json:"title"`
	Algorithm    string            `json:"algorithm"`
	Clusters     int               `json:"clusters"`
	TrackCount   int               `json:"track_count"`
	Dropped      int               `json:"dropped"`
	CreatedAt    time.Time         `json:"created_at"`
	Deployments  []deploymentEntry `json:"deployments"`
}

// History lists the recorded runs of a user, newest first, with the playlists created from each.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	user, err := r.user(cmd.String("user"))
	if err != nil {
		return err
	}

	runs, err := r.clusterings.ListByUser(user.SpotifyID(), cmd.Int("limit"))
	if err != nil {
		return err
	}

	entries := make([]historyEntry, 0, len(runs))
	for _, run := range runs {
		deployments, err := r.deployments.ListByClustering(run.ID())
		if err != nil {
			return err
		}

		entry := historyEntry{
			ClusteringID: run.ID(),
			Title:        tasks.PlaylistTitle(run.Algorithm(), run.Clusters()),
			Algorithm:    run.Algorithm(),
			Clusters:     run.Clusters(),
			TrackCount:   run.TrackCount(),
			Dropped:      run.DroppedCount(),
			CreatedAt:    run.CreatedAt(),
			Deployments:  make([]deploymentEntry, 0, len(deployments)),
		}
		for _, d := range deployments {
			entry.Deployments = append(entry.Deployments, deploymentEntry{
				Cluster:    d.ClusterID().Ordinal(),
				PlaylistID: d.PlaylistID(),
				URL:        playlistURL(d),
				TrackCount: d.TrackCount(),
			})
		}
		entries = append(entries, entry)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}

	if len(entries) == 0 {
		return r.writePlain("No runs recorded for %s yet, try `radial cluster run`\n", user.SpotifyID())
	}

	r.writePlainHeader("History for " + user.DisplayName())
	for _, e := range entries {
		r.writePlain("%s  %s  %d tracks (%d skipped)  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Title, e.TrackCount, e.Dropped, e.ClusteringID)
		for _, d := range e.Deployments {
			r.writePlain("    cluster %d → %s (%d tracks)\n", d.Cluster, d.URL, d.TrackCount)
		}
	}
	return nil
}

func playlistURL(d *models.Deployment) string {
	if d.PlaylistURL() != "" {
		return d.PlaylistURL()
	}
	return services.PlaylistURL(d.PlaylistID())
}
