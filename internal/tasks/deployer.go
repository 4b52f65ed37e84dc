package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/services"
	"github.com/desertthunder/radial/internal/shared"
)

// DeployRequest describes one cluster to publish as a playlist.
type DeployRequest struct {
	UserID         string   // Spotify user that will own the playlist
	TrackIDs       []string // Cluster members in playlist order
	ClusterOrdinal int      // One-based cluster number shown to the user
	Title          string   // Playlist name, see [PlaylistTitle]
	Public         bool
}

// DeployResult identifies the playlist created by a deployment.
type DeployResult struct {
	PlaylistID string
	URL        string
	TrackCount int
	Batches    int
}

// Deployer publishes a cluster to Spotify.
type Deployer struct {
	writer    PlaylistWriter
	batchSize int
	logger    *log.Logger
}

// NewDeployer creates a Deployer that adds tracks in batches of [services.MaxAddTracksBatch].
func NewDeployer(writer PlaylistWriter, logger *log.Logger) *Deployer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Deployer{writer: writer, batchSize: services.MaxAddTracksBatch, logger: logger}
}

// Deploy creates a new playlist and appends every track in order, one request per batch.
//
// Every call creates a new playlist, even for a cluster deployed before. Failures are reported as
// [shared.ErrDeploymentFailed]; a playlist created before a failed batch is left in place and named in the error.
func (d *Deployer) Deploy(ctx context.Context, progress chan<- ProgressUpdate, req DeployRequest) (*DeployResult, error) {
	if d.writer == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if req.UserID == "" || req.Title == "" {
		return nil, fmt.Errorf("%w: user id and title are required", shared.ErrMissingArgument)
	}
	if len(req.TrackIDs) == 0 {
		return nil, fmt.Errorf("%w: cluster %d has no tracks", shared.ErrMissingArgument, req.ClusterOrdinal)
	}

	logger := shared.WithLogger(d.logger, "user", req.UserID, "cluster", req.ClusterOrdinal)
	sendProgress(progress, createPlaylistUpdate(req.Title, req.ClusterOrdinal))

	description := fmt.Sprintf("Cluster %d of %s, %s tracks grouped by radial", req.ClusterOrdinal, req.Title, shared.FormatCount(len(req.TrackIDs)))
	playlist, err := d.writer.CreatePlaylist(ctx, req.UserID, req.Title, description, req.Public)
	if err != nil {
		return nil, fmt.Errorf("%w: create playlist: %v", shared.ErrDeploymentFailed, err)
	}

	uris := make([]string, len(req.TrackIDs))
	for i, id := range req.TrackIDs {
		uris[i] = services.TrackURI(id)
	}

	batches := chunk(uris, d.batchSize)
	for i, batch := range batches {
		if _, err := d.writer.AddTracks(ctx, playlist.ID, batch); err != nil {
			return nil, fmt.Errorf("%w: playlist %s batch %d/%d: %v", shared.ErrDeploymentFailed, playlist.ID, i+1, len(batches), err)
		}
		sendProgress(progress, addTracksUpdate(i+1, len(batches), min((i+1)*d.batchSize, len(uris))))
	}

	result := &DeployResult{
		PlaylistID: playlist.ID,
		URL:        playlist.WebURL(),
		TrackCount: len(uris),
		Batches:    len(batches),
	}
	logger.Info("cluster deployed", "playlist", result.PlaylistID, "tracks", result.TrackCount, "batches", result.Batches)
	return result, nil
}
