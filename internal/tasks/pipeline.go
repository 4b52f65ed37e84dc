package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/cluster"
	"github.com/desertthunder/radial/internal/features"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
)

// ArtifactStore persists run artifacts keyed by user.
type ArtifactStore interface {
	SaveArtifacts(userID string, artifacts *models.Artifacts) error
	LoadArtifacts(userID string) (*models.Artifacts, error)
}

// ClusteringRecorder stores completed runs.
type ClusteringRecorder interface {
	Create(clustering *models.Clustering) error
}

// DeploymentRecorder stores created playlists.
type DeploymentRecorder interface {
	Create(deployment *models.Deployment) error
}

// PipelineOpts configures a [Pipeline].
type PipelineOpts struct {
	AllowedClusters  []int           // Product policy for the cluster count, empty allows any k >= 2
	IncludePlaylists bool            // Collect playlist tracks in addition to saved tracks
	Linkage          cluster.Linkage // Agglomerative merge criterion
	Logger           *log.Logger
}

// Pipeline runs collection, preparation, clustering and assembly for one user, then persists the outcome.
type Pipeline struct {
	collector   *Collector
	engine      *cluster.Engine
	assembler   *Assembler
	deployer    *Deployer
	store       ArtifactStore
	clusterings ClusteringRecorder
	deployments DeploymentRecorder
	opts        PipelineOpts
	logger      *log.Logger
}

// Result is the outcome of [Pipeline.Run].
type Result struct {
	Request
	ClusteringID string
	TrackCount   int
	Dropped      []models.DroppedTrack
	Playlists    models.ClusteredPlaylists
	Display      models.DisplayableData
	Labelled     []models.LabelledTrack
}

// DroppedCount returns how many tracks were excluded across collection and preparation.
func (r *Result) DroppedCount() int { return len(r.Dropped) }

// NewPipeline wires the pipeline stages around an authenticated Spotify client.
//
// The recorders may be nil, in which case runs and deployments are not recorded.
func NewPipeline(client SpotifyClient, store ArtifactStore, clusterings ClusteringRecorder, deployments DeploymentRecorder, opts PipelineOpts) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Pipeline{
		collector:   NewCollector(client, CollectorOpts{IncludePlaylists: opts.IncludePlaylists, Logger: opts.Logger}),
		engine:      cluster.NewEngine(opts.Linkage),
		assembler:   NewAssembler(client, opts.Logger),
		deployer:    NewDeployer(client, opts.Logger),
		store:       store,
		clusterings: clusterings,
		deployments: deployments,
		opts:        opts,
		logger:      opts.Logger,
	}
}

// Run executes every stage in order and stores the artifacts only after all of them succeeded.
//
// Validation happens before any API call. The artifacts are written in a single transaction, so a failed run
// never leaves a partial result behind.
func (p *Pipeline) Run(ctx context.Context, progress chan<- ProgressUpdate, req Request) (*Result, error) {
	if err := ValidateRequest(req, p.opts.AllowedClusters); err != nil {
		return nil, err
	}
	if p.store == nil {
		return nil, fmt.Errorf("%w: artifact store not initialized", shared.ErrServiceUnavailable)
	}

	algorithm, _ := cluster.ParseAlgorithm(req.Algorithm)
	logger := shared.WithLogger(p.logger, "user", req.UserID, "algorithm", algorithm, "clusters", req.Clusters)
	logger.Info("starting clustering run")

	collection, err := p.collector.Collect(ctx, progress)
	if err != nil {
		return nil, err
	}

	matrix, prepDropped, err := features.Normalize(collection.Schema, collection.Records)
	if err != nil {
		return nil, err
	}
	dropped := append(collection.Dropped, prepDropped...)
	sendProgress(progress, normalizeUpdate(matrix.Rows(), len(dropped)))

	sendProgress(progress, clusterUpdate(string(algorithm), req.Clusters, matrix.Rows()))
	labels, err := p.engine.Cluster(string(algorithm), req.Clusters, matrix)
	if err != nil {
		return nil, err
	}

	labelled := make([]models.LabelledTrack, len(labels))
	for i, label := range labels {
		labelled[i] = models.LabelledTrack{TrackID: matrix.TrackIDs[i], Label: label}
	}

	sendProgress(progress, assembleUpdate(req.Clusters))
	assembly, err := p.assembler.Assemble(ctx, progress, labelled)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Request:      Request{UserID: req.UserID, Algorithm: string(algorithm), Clusters: req.Clusters},
		ClusteringID: shared.GenerateID(),
		TrackCount:   len(labelled),
		Dropped:      dropped,
		Playlists:    assembly.Playlists,
		Display:      assembly.Display,
		Labelled:     labelled,
	}

	sendProgress(progress, persistUpdate(req.UserID))
	if err := p.persist(result); err != nil {
		return nil, err
	}

	logger.Info("clustering run finished", "tracks", result.TrackCount, "dropped", result.DroppedCount(), "playlists", len(result.Playlists))
	sendProgress(progress, doneUpdate(result))
	return result, nil
}

func (p *Pipeline) persist(result *Result) error {
	artifacts := &models.Artifacts{
		ClusteringID: result.ClusteringID,
		UserID:       result.UserID,
		Algorithm:    result.Algorithm,
		Clusters:     result.Clusters,
		Playlists:    result.Playlists,
		Display:      result.Display,
		Labelled:     result.Labelled,
	}
	if err := p.store.SaveArtifacts(result.UserID, artifacts); err != nil {
		return fmt.Errorf("failed to save artifacts: %w", err)
	}

	if p.clusterings == nil {
		return nil
	}
	record := models.NewClustering(0, result.UserID, result.Algorithm, result.Clusters)
	record.SetID(result.ClusteringID)
	record.SetTrackCount(result.TrackCount)
	record.SetDroppedCount(result.DroppedCount())
	if err := p.clusterings.Create(record); err != nil {
		p.logger.Error("failed to record clustering", "clustering", result.ClusteringID, "error", err)
	}
	return nil
}

// Deploy publishes one cluster of the user's latest run. clusterKey may be an integer id or its string form.
func (p *Pipeline) Deploy(ctx context.Context, progress chan<- ProgressUpdate, userID string, clusterKey any) (*DeployResult, error) {
	artifacts, playlist, id, err := p.lookup(userID, clusterKey)
	if err != nil {
		return nil, err
	}

	result, err := p.deployer.Deploy(ctx, progress, DeployRequest{
		UserID:         userID,
		TrackIDs:       playlist.AllTracks,
		ClusterOrdinal: id.Ordinal(),
		Title:          PlaylistTitle(artifacts.Algorithm, artifacts.Clusters),
	})
	if err != nil {
		return nil, err
	}

	if p.deployments != nil {
		record := models.NewDeployment(0, artifacts.ClusteringID, userID, id, result.PlaylistID, result.URL, result.TrackCount)
		if err := p.deployments.Create(record); err != nil {
			p.logger.Error("failed to record deployment", "playlist", result.PlaylistID, "error", err)
		}
	}
	return result, nil
}

func (p *Pipeline) lookup(userID string, clusterKey any) (*models.Artifacts, models.ClusteredPlaylist, models.ClusterID, error) {
	if p.store == nil {
		return nil, models.ClusteredPlaylist{}, 0, fmt.Errorf("%w: artifact store not initialized", shared.ErrServiceUnavailable)
	}
	artifacts, err := p.store.LoadArtifacts(userID)
	if err != nil {
		return nil, models.ClusteredPlaylist{}, 0, err
	}

	id, ok := models.ClusterKey(clusterKey)
	if !ok {
		return nil, models.ClusteredPlaylist{}, 0, fmt.Errorf("%w: cluster id %v", shared.ErrInvalidArgument, clusterKey)
	}
	playlist, ok := artifacts.Playlists[id]
	if !ok {
		return nil, models.ClusteredPlaylist{}, 0, fmt.Errorf("%w: cluster %d for user %s", shared.ErrNotFound, id, userID)
	}
	return artifacts, playlist, id, nil
}
