package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/desertthunder/radial/internal/formatter"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
	"golang.org/x/time/rate"
)

// BulkDeployOpts contains configuration for deploying every cluster of a run.
type BulkDeployOpts struct {
	Format     string  // Manifest format: json or txt
	OutputDir  string  // Manifest directory, no manifest is written when empty
	NumWorkers int     // Concurrent workers (default: 3)
	RateLimit  float64 // Deployments started per second (default: 2)
}

type deployJob struct {
	clusterID models.ClusterID
}

// DeployAll deploys every cluster of the user's latest run concurrently with rate limiting and progress tracking.
//
// A failed cluster does not stop the others; its error is recorded in the outcome. Outcomes are returned in
// cluster order regardless of completion order.
func (p *Pipeline) DeployAll(ctx context.Context, prog chan<- ProgressUpdate, userID string, opts BulkDeployOpts) (*models.BulkDeployResult, error) {
	if p.store == nil {
		return nil, fmt.Errorf("%w: artifact store not initialized", shared.ErrServiceUnavailable)
	}
	artifacts, err := p.store.LoadArtifacts(userID)
	if err != nil {
		return nil, err
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	ids := artifacts.Playlists.IDs()
	result := &models.BulkDeployResult{
		UserID:   userID,
		Title:    PlaylistTitle(artifacts.Algorithm, artifacts.Clusters),
		Total:    len(ids),
		Outcomes: make([]models.DeployOutcome, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan deployJob, len(ids))
	results := make(chan models.DeployOutcome, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go p.deployWorker(ctx, &wg, userID, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- deployJob{clusterID: id}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Outcomes = append(result.Outcomes, res)
		if res.Err != nil {
			result.Failed++
		} else {
			result.Succeeded++
		}
		sendProgress(prog, deployCompletedUpdate(completed, len(ids), res))
	}

	slices.SortFunc(result.Outcomes, func(a, b models.DeployOutcome) int { return int(a.ClusterID - b.ClusterID) })

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("deployment interrupted after %d of %d clusters: %w", completed, len(ids), err)
	}

	if opts.OutputDir == "" {
		return result, nil
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return result, fmt.Errorf("failed to create output directory: %w", err)
	}
	manifestPath := filepath.Join(opts.OutputDir, "deploy_manifest."+formatter.ManifestExtension(opts.Format))
	if err := formatter.WriteDeployManifest(result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("deployment completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// deployWorker deploys clusters from the jobs channel until it is drained.
func (p *Pipeline) deployWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	userID string,
	jobs <-chan deployJob,
	results chan<- models.DeployOutcome,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		outcome := models.DeployOutcome{ClusterID: job.clusterID}
		res, err := p.Deploy(ctx, nil, userID, job.clusterID)
		if err != nil {
			outcome.Err = err
			outcome.Error = err.Error()
		} else {
			outcome.PlaylistID = res.PlaylistID
			outcome.URL = res.URL
			outcome.TrackCount = res.TrackCount
		}
		results <- outcome
	}
}
