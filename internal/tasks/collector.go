package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/services"
	"github.com/desertthunder/radial/internal/shared"
)

// CollectorOpts configures a [Collector].
type CollectorOpts struct {
	Schema           models.FeatureSchema // Features to collect, defaults to [models.DefaultFeatureSchema]
	IncludePlaylists bool                 // Add tracks from every playlist in the user's library
	Logger           *log.Logger
}

// Collector enumerates a user's track universe and fetches one feature vector per track.
type Collector struct {
	library LibraryReader
	opts    CollectorOpts
	logger  *log.Logger
}

// Collection is the Collector's output.
//
// Records follow first-seen track order. Dropped lists every track excluded from Records and why.
type Collection struct {
	Schema  models.FeatureSchema
	Records []models.TrackFeatures
	Dropped []models.DroppedTrack
}

// DroppedCount returns how many tracks were lost during collection.
func (c *Collection) DroppedCount() int { return len(c.Dropped) }

// TrackCount returns the number of tracks with a complete feature vector.
func (c *Collection) TrackCount() int { return len(c.Records) }

// NewCollector creates a Collector reading from library.
func NewCollector(library LibraryReader, opts CollectorOpts) *Collector {
	if len(opts.Schema) == 0 {
		opts.Schema = models.DefaultFeatureSchema
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Collector{library: library, opts: opts, logger: opts.Logger}
}

// Collect paginates the library exhaustively, then fetches audio features in batches.
//
// A page that still fails after the transport's retries aborts the run with [shared.ErrCollectionFailed].
// A feature batch aborts the run only when the credentials stop working or ctx ends. Any other batch error
// drops the whole batch, and a null or incomplete feature record drops its track. Collect makes no writes.
func (c *Collector) Collect(ctx context.Context, progress chan<- ProgressUpdate) (*Collection, error) {
	if c.library == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	ids, err := c.trackUniverse(ctx, progress)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: library has no tracks", shared.ErrCollectionFailed)
	}

	collection := &Collection{Schema: c.opts.Schema, Records: make([]models.TrackFeatures, 0, len(ids))}
	batches := chunk(ids, services.MaxAudioFeaturesBatch)
	for i, batch := range batches {
		sendProgress(progress, featuresUpdate(i+1, len(batches), len(batch)))

		features, err := c.library.AudioFeatures(ctx, batch)
		if err != nil {
			if abortsCollection(ctx, err) {
				return nil, fmt.Errorf("%w: audio features: %v", shared.ErrCollectionFailed, err)
			}
			c.logger.Warn("dropping feature batch", "tracks", len(batch), "error", err)
			for _, id := range batch {
				collection.Dropped = append(collection.Dropped, models.DroppedTrack{
					TrackID: id,
					Err:     fmt.Errorf("%w: %v", shared.ErrPartialDataLoss, err),
				})
			}
			continue
		}

		c.project(batch, features, collection)
	}

	if len(collection.Records) == 0 {
		return nil, fmt.Errorf("%w: no track has audio features (%d dropped)", shared.ErrCollectionFailed, collection.DroppedCount())
	}
	if n := collection.DroppedCount(); n > 0 {
		c.logger.Warn("collection finished with dropped tracks", "tracks", collection.TrackCount(), "dropped", n)
	}
	return collection, nil
}

// abortsCollection reports whether a failed feature batch should end the run rather than drop the batch.
func abortsCollection(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, shared.ErrTokenExpired) ||
		errors.Is(err, shared.ErrRefreshFailed)
}

// project appends the feature vectors of batch to collection, aligned by position with features.
func (c *Collector) project(batch []string, features []*services.SpotifyAudioFeatures, collection *Collection) {
	for i, id := range batch {
		var f *services.SpotifyAudioFeatures
		if i < len(features) {
			f = features[i]
		}

		if f == nil {
			c.logger.Warn("track has no audio features", "track", id)
			collection.Dropped = append(collection.Dropped, models.DroppedTrack{
				TrackID: id,
				Err:     fmt.Errorf("%w: no audio features", shared.ErrPartialDataLoss),
			})
			continue
		}

		values, err := f.Vector(collection.Schema)
		if err != nil {
			c.logger.Warn("incomplete audio features", "track", id, "error", err)
			collection.Dropped = append(collection.Dropped, models.DroppedTrack{TrackID: id, Err: err})
			continue
		}
		collection.Records = append(collection.Records, models.TrackFeatures{TrackID: id, Values: values})
	}
}

// trackUniverse returns the deduplicated ids of every saved track and, optionally, every playlist track.
func (c *Collector) trackUniverse(ctx context.Context, progress chan<- ProgressUpdate) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	add := func(t *services.SpotifyTrack, local bool) {
		if t == nil || local || t.IsLocal || t.ID == "" || seen[t.ID] {
			return
		}
		seen[t.ID] = true
		ids = append(ids, t.ID)
	}

	for offset, step := 0, 1; ; step++ {
		page, err := c.library.SavedTracks(ctx, services.MaxSavedTracksPage, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: saved tracks at offset %d: %v", shared.ErrCollectionFailed, offset, err)
		}
		sendProgress(progress, savedTracksUpdate(step, pages(page.Total, services.MaxSavedTracksPage)))
		for _, item := range page.Items {
			add(item.Track, false)
		}
		offset += len(page.Items)
		if page.Next == nil || len(page.Items) == 0 {
			break
		}
	}

	if !c.opts.IncludePlaylists {
		return ids, nil
	}

	playlists, err := c.playlists(ctx)
	if err != nil {
		return nil, err
	}
	for i, pl := range playlists {
		sendProgress(progress, playlistTracksUpdate(i+1, len(playlists), pl.Name))
		for offset := 0; ; {
			page, err := c.library.PlaylistTracks(ctx, pl.ID, services.MaxPlaylistItemsPage, offset)
			if err != nil {
				return nil, fmt.Errorf("%w: playlist %s at offset %d: %v", shared.ErrCollectionFailed, pl.ID, offset, err)
			}
			for _, item := range page.Items {
				add(item.Track, item.IsLocal)
			}
			offset += len(page.Items)
			if page.Next == nil || len(page.Items) == 0 {
				break
			}
		}
	}
	return ids, nil
}

func (c *Collector) playlists(ctx context.Context) ([]services.SpotifyPlaylist, error) {
	var all []services.SpotifyPlaylist
	for offset := 0; ; {
		page, err := c.library.UserPlaylists(ctx, services.MaxPlaylistsPage, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: playlists at offset %d: %v", shared.ErrCollectionFailed, offset, err)
		}
		all = append(all, page.Items...)
		offset += len(page.Items)
		if page.Next == nil || len(page.Items) == 0 {
			return all, nil
		}
	}
}

func pages(total, size int) int {
	return max((total+size-1)/size, 1)
}

// chunk splits ids into consecutive slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}
