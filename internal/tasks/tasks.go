package tasks

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/desertthunder/radial/internal/cluster"
	"github.com/desertthunder/radial/internal/services"
	"github.com/desertthunder/radial/internal/shared"
)

// LibraryReader enumerates a user's tracks and their audio features.
type LibraryReader interface {
	SavedTracks(ctx context.Context, limit, offset int) (*services.SpotifyPaginatedTracks, error)
	UserPlaylists(ctx context.Context, limit, offset int) (*services.SpotifyPaginatedPlaylists, error)
	PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*services.SpotifyPaginatedPlaylistTracks, error)
	AudioFeatures(ctx context.Context, trackIDs []string) ([]*services.SpotifyAudioFeatures, error)
}

// TrackLookup resolves display metadata for a batch of tracks.
type TrackLookup interface {
	SeveralTracks(ctx context.Context, trackIDs []string) ([]*services.SpotifyTrack, error)
}

// PlaylistWriter creates playlists and appends tracks to them.
type PlaylistWriter interface {
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.SpotifyPlaylist, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) (string, error)
}

// SpotifyClient is everything the pipeline needs from the Spotify API.
type SpotifyClient interface {
	LibraryReader
	TrackLookup
	PlaylistWriter
}

var _ SpotifyClient = (*services.SpotifyService)(nil)

// Request describes one clustering run.
type Request struct {
	UserID    string `json:"user_id"`   // Spotify user id that owns the library and the resulting artifacts
	Algorithm string `json:"algorithm"` // "kmeans" or "agglomerative hierarchical", case-insensitive
	Clusters  int    `json:"clusters"`  // Number of playlists to produce
}

var digits = regexp.MustCompile(`\d+`)

// ParseClusterCount extracts the first integer from a free-form submission such as "9 clusters".
func ParseClusterCount(submission string) (int, error) {
	match := digits.FindString(submission)
	if match == "" {
		return 0, fmt.Errorf("%w: no cluster count in %q", shared.ErrInvalidClusterCount, submission)
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrInvalidClusterCount, err)
	}
	return n, nil
}

// ValidateRequest checks req at the boundary, before any API call is made.
//
// The cluster count must be one of allowed; the engine itself only needs k >= 2.
func ValidateRequest(req Request, allowed []int) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	if _, err := cluster.ParseAlgorithm(req.Algorithm); err != nil {
		return err
	}
	if req.Clusters < 2 {
		return fmt.Errorf("%w: %d", shared.ErrInvalidClusterCount, req.Clusters)
	}
	if len(allowed) > 0 && !slices.Contains(allowed, req.Clusters) {
		return fmt.Errorf("%w: %d is not one of %v", shared.ErrInvalidClusterCount, req.Clusters, allowed)
	}
	return nil
}

// PlaylistTitle names a deployed playlist after the algorithm and cluster count, e.g. "Kmeans (9)".
func PlaylistTitle(algorithm string, clusters int) string {
	return fmt.Sprintf("%s (%d)", shared.TitleCase(algorithm), clusters)
}
