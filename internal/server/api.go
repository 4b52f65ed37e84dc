package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
	"github.com/desertthunder/radial/internal/tasks"
)

// PipelineFactory builds a pipeline that acts on behalf of a stored user.
type PipelineFactory func(ctx context.Context, userID string) (*tasks.Pipeline, error)

// ResultReader loads the latest clustering artifacts of a user.
type ResultReader interface {
	LoadArtifacts(userID string) (*models.Artifacts, error)
}

// APIOpts configures the clustering [API].
type APIOpts struct {
	Pipelines       PipelineFactory
	Jobs            *tasks.JobRegistry
	Results         ResultReader
	AllowedClusters []int
	Sessions        *Sessions
	Logger          *log.Logger
}

// API serves the clustering endpoints. Every route requires the session cookie set by /callback, and a user
// may only act on their own runs.
//
//	POST /cluster                   start a background run, returns the job id
//	GET  /jobs/{id}                 poll a job
//	GET  /results/{user}            clustered playlists and display data of the latest run
//	POST /deploy/{user}/{cluster}   create the playlist and redirect to it
type API struct {
	opts   APIOpts
	logger *log.Logger
}

// NewAPI creates the clustering API.
func NewAPI(opts APIOpts) *API {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Jobs == nil {
		opts.Jobs = tasks.NewJobRegistry(opts.Logger)
	}
	if opts.Sessions == nil {
		opts.Sessions, _ = NewSessions(nil, false)
	}
	return &API{opts: opts, logger: opts.Logger}
}

// Register adds every API route to router behind [RequireSession].
func (a *API) Register(router *BasicRouter) {
	auth := RequireSession(a.opts.Sessions)
	router.Handle(http.MethodPost, "/cluster", auth(http.HandlerFunc(a.StartClustering)))
	router.Handle(http.MethodGet, "/jobs/{id}", auth(http.HandlerFunc(a.GetJob)))
	router.Handle(http.MethodGet, "/results/{user}", auth(http.HandlerFunc(a.GetResults)))
	router.Handle(http.MethodPost, "/deploy/{user}/{cluster}", auth(http.HandlerFunc(a.Deploy)))
}

// clusterSubmission is the body of POST /cluster. Clusters may be a number or free text such as "9 clusters".
// User defaults to the session user and must match it when given.
type clusterSubmission struct {
	User      string          `json:"user"`
	Algorithm string          `json:"algorithm"`
	Clusters  json.RawMessage `json:"clusters"`
}

func (a *API) parseSubmission(r *http.Request, sessionUser string) (tasks.Request, error) {
	var (
		sub      clusterSubmission
		clusters string
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			return tasks.Request{}, fmt.Errorf("%w: malformed body: %v", shared.ErrInvalidArgument, err)
		}
		clusters = strings.Trim(string(sub.Clusters), `"`)
	} else {
		if err := r.ParseForm(); err != nil {
			return tasks.Request{}, fmt.Errorf("%w: malformed form: %v", shared.ErrInvalidArgument, err)
		}
		sub.User = r.PostFormValue("user")
		sub.Algorithm = r.PostFormValue("algorithm")
		clusters = r.PostFormValue("clusters")
	}

	switch sub.User {
	case "":
		sub.User = sessionUser
	case sessionUser:
	default:
		return tasks.Request{}, fmt.Errorf("%w: cannot start a run for %s", shared.ErrForbidden, sub.User)
	}

	k, err := tasks.ParseClusterCount(clusters)
	if err != nil {
		return tasks.Request{}, err
	}
	req := tasks.Request{UserID: sub.User, Algorithm: sub.Algorithm, Clusters: k}
	if err := tasks.ValidateRequest(req, a.opts.AllowedClusters); err != nil {
		return tasks.Request{}, err
	}
	return req, nil
}

// StartClustering validates the submission and starts a background run.
func (a *API) StartClustering(w http.ResponseWriter, r *http.Request) {
	req, err := a.parseSubmission(r, SessionUser(r.Context()))
	if err != nil {
		a.writeError(w, err)
		return
	}

	pipeline, err := a.opts.Pipelines(r.Context(), req.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	id := a.opts.Jobs.Start(r.Context(), pipeline.Run, req)
	a.logger.Info("clustering job started", "job", id, "user", req.UserID, "algorithm", req.Algorithm, "clusters", req.Clusters)

	w.Header().Set("Location", "/jobs/"+id)
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id, "status_url": "/jobs/" + id})
}

// jobResponse is a job snapshot with a link to its results once finished.
type jobResponse struct {
	tasks.Job
	TrackCount int    `json:"track_count,omitempty"`
	Dropped    int    `json:"dropped,omitempty"`
	ResultsURL string `json:"results_url,omitempty"`
}

// GetJob reports the status of a background run.
func (a *API) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.opts.Jobs.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	if job.Request.UserID != SessionUser(r.Context()) {
		a.writeError(w, fmt.Errorf("%w: job %s belongs to another user", shared.ErrForbidden, job.ID))
		return
	}

	resp := jobResponse{Job: job}
	if job.Result != nil {
		resp.TrackCount = job.Result.TrackCount
		resp.Dropped = job.Result.DroppedCount()
		resp.ResultsURL = "/results/" + job.Request.UserID
	}
	writeJSON(w, http.StatusOK, resp)
}

// resultsResponse carries the display artifacts of a run.
type resultsResponse struct {
	ClusteringID       string                    `json:"clustering_id"`
	Title              string                    `json:"title"`
	Algorithm          string                    `json:"algorithm"`
	Clusters           int                       `json:"clusters"`
	ClusteredPlaylists models.ClusteredPlaylists `json:"clustered_playlists"`
	DisplayableData    models.DisplayableData    `json:"displayable_data"`
}

// GetResults returns the latest clustered playlists and display data of a user.
func (a *API) GetResults(w http.ResponseWriter, r *http.Request) {
	artifacts, err := a.opts.Results.LoadArtifacts(r.PathValue("user"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resultsResponse{
		ClusteringID:       artifacts.ClusteringID,
		Title:              tasks.PlaylistTitle(artifacts.Algorithm, artifacts.Clusters),
		Algorithm:          artifacts.Algorithm,
		Clusters:           artifacts.Clusters,
		ClusteredPlaylists: artifacts.Playlists,
		DisplayableData:    artifacts.Display,
	})
}

// Deploy publishes one cluster as a new playlist and redirects to it.
func (a *API) Deploy(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	pipeline, err := a.opts.Pipelines(r.Context(), userID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	result, err := pipeline.Deploy(r.Context(), nil, userID, r.PathValue("cluster"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	http.Redirect(w, r, result.URL, http.StatusSeeOther)
}

// StatusFor maps an error to the HTTP status reported to clients.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrRefreshFailed):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrDeploymentFailed), errors.Is(err, shared.ErrCollectionFailed), errors.Is(err, shared.ErrTransientAPI):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	if status := StatusFor(err); status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "status", status, "error", err)
	}
	writeStatus(w, err)
}

// writeStatus writes err as a JSON body with the status from [StatusFor].
func writeStatus(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	writeJSON(w, status, map[string]string{"error": err.Error(), "status": strconv.Itoa(status)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
