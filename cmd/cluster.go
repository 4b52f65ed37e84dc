package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/radial/internal/formatter"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
	"github.com/desertthunder/radial/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ClusterRun collects the library of a user, clusters it and stores the artifacts.
func (r *Runner) ClusterRun(ctx context.Context, cmd *cli.Command) error {
	k, err := tasks.ParseClusterCount(cmd.String("clusters"))
	if err != nil {
		return err
	}

	user, err := r.user(cmd.String("user"))
	if err != nil {
		return err
	}
	req := tasks.Request{UserID: user.SpotifyID(), Algorithm: cmd.String("algorithm"), Clusters: k}
	if err := tasks.ValidateRequest(req, r.config.Pipeline.AllowedClusters); err != nil {
		return err
	}

	pipeline, err := r.pipeline(ctx, user)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := r.watchProgress(progress)
	result, err := pipeline.Run(ctx, progress, req)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"clustering_id":       result.ClusteringID,
			"user_id":             result.UserID,
			"algorithm":           result.Algorithm,
			"clusters":            result.Clusters,
			"track_count":         result.TrackCount,
			"dropped":             result.DroppedCount(),
			"clustered_playlists": result.Playlists,
		}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(tasks.PlaylistTitle(result.Algorithm, result.Clusters))
	r.writePlain("Clustered %s tracks into %d playlists\n", shared.FormatCount(result.TrackCount), len(result.Playlists))
	if result.DroppedCount() > 0 {
		r.writePlain("⚠ %d tracks were skipped (missing or invalid audio features)\n", result.DroppedCount())
	}
	r.writePlain("\n")
	r.printClusters(result.Playlists, result.Display)
	r.writePlain("\nDeploy a cluster with: radial cluster deploy <n> (or \"all\")\n")
	return nil
}

// ClusterShow prints the clusters of the latest run of a user.
func (r *Runner) ClusterShow(ctx context.Context, cmd *cli.Command) error {
	artifacts, err := r.artifacts(cmd.String("user"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"clustering_id":       artifacts.ClusteringID,
			"title":               tasks.PlaylistTitle(artifacts.Algorithm, artifacts.Clusters),
			"clustered_playlists": artifacts.Playlists,
			"displayable_data":    artifacts.Display,
		}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(tasks.PlaylistTitle(artifacts.Algorithm, artifacts.Clusters))
	r.writePlain("Run %s: %s tracks\n\n", artifacts.ClusteringID, shared.FormatCount(artifacts.Playlists.TotalTracks()))
	r.printClusters(artifacts.Playlists, artifacts.Display)
	return nil
}

func (r *Runner) printClusters(playlists models.ClusteredPlaylists, display models.DisplayableData) {
	for _, id := range playlists.IDs() {
		pl := playlists[id]
		r.writePlain("Cluster %d: %s tracks (%.1f%%)\n", id.Ordinal(), pl.Size, pl.ProportionalSize)
		for _, trackID := range pl.DisplayableTracks {
			meta, ok := display[id][trackID]
			if !ok {
				continue
			}
			marker := " "
			if trackID == pl.CentroidTrack {
				marker = "★"
			}
			r.writePlain("  %s %s - %s\n", marker, meta.Name, meta.Artists)
		}
	}
}

// artifacts loads the latest run of the given or most recent user.
func (r *Runner) artifacts(spotifyID string) (*models.Artifacts, error) {
	user, err := r.user(spotifyID)
	if err != nil {
		return nil, err
	}
	if err := r.openStore(); err != nil {
		return nil, err
	}
	artifacts, err := r.store.LoadArtifacts(user.SpotifyID())
	if err != nil {
		return nil, fmt.Errorf("%w: run `radial cluster run` first", err)
	}
	return artifacts, nil
}

// ClusterDeploy creates a Spotify playlist from one cluster, or from every cluster when the argument is "all".
func (r *Runner) ClusterDeploy(ctx context.Context, cmd *cli.Command) error {
	arg := strings.TrimSpace(cmd.StringArg("cluster"))
	if arg == "" {
		return fmt.Errorf("%w: cluster number or \"all\"", shared.ErrMissingArgument)
	}

	user, err := r.user(cmd.String("user"))
	if err != nil {
		return err
	}
	pipeline, err := r.pipeline(ctx, user)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := r.watchProgress(progress)
	defer func() {
		close(progress)
		<-done
	}()

	if strings.EqualFold(arg, "all") {
		format, err := formatter.ParseFormat(cmd.String("format"))
		if err != nil {
			return err
		}
		if format != formatter.FormatJSON && format != formatter.FormatText {
			return fmt.Errorf("%w: manifest format must be json or txt, got %s", shared.ErrInvalidArgument, format)
		}

		workers := cmd.Int("workers")
		if !cmd.IsSet("workers") && r.config.Pipeline.DeployWorkers > 0 {
			workers = r.config.Pipeline.DeployWorkers
		}

		result, err := pipeline.DeployAll(ctx, progress, user.SpotifyID(), tasks.BulkDeployOpts{
			Format:     format,
			OutputDir:  cmd.String("manifest-dir"),
			NumWorkers: workers,
			RateLimit:  cmd.Float("rate"),
		})
		if result != nil {
			r.printBulkDeploy(result)
		}
		return err
	}

	ordinal, err := models.ParseClusterID(arg)
	if err != nil || ordinal == 0 {
		return fmt.Errorf("%w: clusters are numbered from 1, got %q", shared.ErrInvalidArgument, arg)
	}
	id := ordinal - 1

	result, err := pipeline.Deploy(ctx, progress, user.SpotifyID(), id)
	if err != nil {
		return err
	}

	r.writePlain("✓ Created playlist from cluster %d with %d tracks\n", id.Ordinal(), result.TrackCount)
	r.writePlain("  %s\n", result.URL)
	return nil
}

func (r *Runner) printBulkDeploy(result *models.BulkDeployResult) {
	r.writePlainHeader(result.Title)
	r.writePlain("Total:     %d\n", result.Total)
	r.writePlain("Succeeded: %d\n", result.Succeeded)
	r.writePlain("Failed:    %d\n\n", result.Failed)

	for _, o := range result.Outcomes {
		if o.Err != nil {
			r.writePlain("✗ Cluster %d: %v\n", o.ClusterID.Ordinal(), o.Err)
			continue
		}
		r.writePlain("✓ Cluster %d: %d tracks → %s\n", o.ClusterID.Ordinal(), o.TrackCount, o.URL)
	}

	if result.ManifestPath != "" {
		r.writePlain("\nManifest: %s\n", result.ManifestPath)
	}
}

// ClusterExport writes the latest run of a user to disk.
func (r *Runner) ClusterExport(ctx context.Context, cmd *cli.Command) error {
	artifacts, err := r.artifacts(cmd.String("user"))
	if err != nil {
		return err
	}

	result, err := formatter.WriteExport(artifacts, formatter.ExportOpts{
		Title:          tasks.PlaylistTitle(artifacts.Algorithm, artifacts.Clusters),
		Format:         cmd.String("format"),
		OutputDir:      cmd.String("output"),
		DownloadCovers: cmd.Bool("covers"),
		Logger:         r.logger,
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Exported %d clusters to %s\n", len(artifacts.Playlists), result.Directory)
	for _, f := range result.Files {
		r.writePlain("  %s\n", f)
	}
	return nil
}

