package tasks

import (
	"fmt"

	"github.com/desertthunder/radial/internal/models"
)

// Phase is the stage of a clustering run or deployment a [ProgressUpdate] belongs to.
type Phase int

const (
	FetchLibrary Phase = iota
	FetchPlaylists
	FetchFeatures
	Normalize
	Cluster
	Assemble
	FetchDisplay
	Persist
	CreatePlaylist
	AddTracks
	Done
)

var phaseNames = [...]string{
	FetchLibrary:   "fetch_library",
	FetchPlaylists: "fetch_playlists",
	FetchFeatures:  "fetch_features",
	Normalize:      "normalize",
	Cluster:        "cluster",
	Assemble:       "assemble",
	FetchDisplay:   "fetch_display",
	Persist:        "persist",
	CreatePlaylist: "create_playlist",
	AddTracks:      "add_tracks",
	Done:           "done",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return ""
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ProgressUpdate is one progress event of a long running operation, rendered by the CLI, the TUI and the job registry.
//
// Step counts from 1 within the phase and Total is the number of steps the phase will take.
type ProgressUpdate struct {
	Phase   Phase
	Step    int
	Total   int
	Message string
	// Data carries the finished [Result] or [models.DeployOutcome] on Done updates.
	Data any
}

// Percent is the completed share of the phase, from 0 to 100.
func (u ProgressUpdate) Percent() float64 {
	if u.Total <= 0 {
		return 0
	}
	return 100 * float64(min(u.Step, u.Total)) / float64(u.Total)
}

func newUpdate(phase Phase, step, total int, format string, args ...any) ProgressUpdate {
	return ProgressUpdate{Phase: phase, Step: step, Total: total, Message: fmt.Sprintf(format, args...)}
}

// sendProgress never blocks: a nil or full channel drops the update.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func savedTracksUpdate(step, total int) ProgressUpdate {
	return newUpdate(FetchLibrary, step, total, "Fetching saved tracks (%d/%d)...", step, total)
}

func playlistTracksUpdate(step, total int, name string) ProgressUpdate {
	return newUpdate(FetchPlaylists, step, total, "[%d/%d] Reading playlist: %s", step, total, name)
}

func featuresUpdate(step, total, tracks int) ProgressUpdate {
	return newUpdate(FetchFeatures, step, total, "[%d/%d] Fetching audio features for %d tracks...", step, total, tracks)
}

func normalizeUpdate(rows, dropped int) ProgressUpdate {
	return newUpdate(Normalize, 1, 1, "Prepared %d tracks (%d dropped)", rows, dropped)
}

func clusterUpdate(algorithm string, k, rows int) ProgressUpdate {
	return newUpdate(Cluster, 1, 1, "Clustering %d tracks with %s into %d groups...", rows, algorithm, k)
}

func assembleUpdate(k int) ProgressUpdate {
	return newUpdate(Assemble, 1, 1, "Assembling %d playlists...", k)
}

func displayUpdate(step, total int, id models.ClusterID) ProgressUpdate {
	return newUpdate(FetchDisplay, step, total, "[%d/%d] Fetching preview tracks for cluster %d", step, total, id.Ordinal())
}

func persistUpdate(userID string) ProgressUpdate {
	return newUpdate(Persist, 1, 1, "Saving results for %s...", userID)
}

func createPlaylistUpdate(title string, ordinal int) ProgressUpdate {
	return newUpdate(CreatePlaylist, 1, 1, "Creating playlist %s (cluster %d)...", title, ordinal)
}

func addTracksUpdate(step, total, added int) ProgressUpdate {
	return newUpdate(AddTracks, step, total, "[%d/%d] Added %d tracks", step, total, added)
}

func deployCompletedUpdate(step, total int, res models.DeployOutcome) ProgressUpdate {
	u := newUpdate(Done, step, total, "[%d/%d] ✓ cluster %d: %s", step, total, res.ClusterID.Ordinal(), res.URL)
	if res.Err != nil {
		u = newUpdate(Done, step, total, "[%d/%d] ✗ cluster %d: %v", step, total, res.ClusterID.Ordinal(), res.Err)
	}
	u.Data = res
	return u
}

func doneUpdate(result *Result) ProgressUpdate {
	u := newUpdate(Done, 1, 1, "Clustered %d tracks into %d playlists", result.TrackCount, len(result.Playlists))
	u.Data = result
	return u
}
