package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
)

// PreviewSize is the number of tracks per cluster fetched for display.
const PreviewSize = 5

// Assembly is the Assembler's output.
type Assembly struct {
	Playlists models.ClusteredPlaylists
	Display   models.DisplayableData
}

// Assembler regroups labelled tracks into clustered playlists and resolves preview metadata.
type Assembler struct {
	tracks TrackLookup
	logger *log.Logger
}

// NewAssembler creates an Assembler that fetches preview metadata through tracks.
func NewAssembler(tracks TrackLookup, logger *log.Logger) *Assembler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Assembler{tracks: tracks, logger: logger}
}

// GroupPlaylists groups labelled tracks by cluster, keeping input order within each cluster.
//
// Clusters with no members are absent from the result. Proportional size is rounded twice, first the ratio to
// three places and then the percentage, so that stored results stay byte compatible.
func GroupPlaylists(labelled []models.LabelledTrack) models.ClusteredPlaylists {
	members := make(map[models.ClusterID][]string)
	for _, lt := range labelled {
		members[lt.Label] = append(members[lt.Label], lt.TrackID)
	}

	total := len(labelled)
	playlists := make(models.ClusteredPlaylists, len(members))
	for id, tracks := range members {
		preview := tracks[:min(PreviewSize, len(tracks))]
		playlists[id] = models.ClusteredPlaylist{
			CentroidTrack:     preview[0],
			DisplayableTracks: preview,
			AllTracks:         tracks,
			Size:              shared.FormatCount(len(tracks)),
			ProportionalSize:  shared.Round(100*shared.Round(float64(len(tracks))/float64(total), 3), 3),
		}
	}
	return playlists
}

// Assemble groups labelled tracks and fetches display metadata with one batched lookup per cluster.
//
// A lookup failure fails the assembly; tracks Spotify cannot resolve are left out of the display data.
func (a *Assembler) Assemble(ctx context.Context, progress chan<- ProgressUpdate, labelled []models.LabelledTrack) (*Assembly, error) {
	if len(labelled) == 0 {
		return nil, fmt.Errorf("%w: no labelled tracks", shared.ErrInsufficientData)
	}
	if a.tracks == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	playlists := GroupPlaylists(labelled)
	display := make(models.DisplayableData, len(playlists))

	ids := playlists.IDs()
	for i, id := range ids {
		sendProgress(progress, displayUpdate(i+1, len(ids), id))

		preview := playlists[id].DisplayableTracks
		tracks, err := a.tracks.SeveralTracks(ctx, preview)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch preview tracks for cluster %d: %w", id, err)
		}

		meta := make(map[string]models.DisplayableTrack, len(preview))
		for j, trackID := range preview {
			if j >= len(tracks) || tracks[j] == nil {
				a.logger.Warn("preview track not found", "track", trackID, "cluster", id)
				continue
			}
			t := tracks[j]
			meta[trackID] = models.DisplayableTrack{
				Name:          t.Name,
				PlayableURL:   t.ExternalURLs.Spotify,
				AlbumCoverURL: t.CoverURL(),
				Artists:       t.ArtistNames(" / "),
			}
		}
		display[id] = meta
	}

	return &Assembly{Playlists: playlists, Display: display}, nil
}
