package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/radial/internal/models"
)

var (
	_ list.Item = clusterItem{}
	_ list.Item = trackItem{}
)

// clusterItem wraps one [models.ClusteredPlaylist] to implement [list.Item].
type clusterItem struct {
	id       models.ClusterID
	playlist models.ClusteredPlaylist
	centroid string
	deployed string
}

func (i clusterItem) FilterValue() string { return i.Title() }
func (i clusterItem) Title() string {
	title := fmt.Sprintf("Cluster %d", i.id.Ordinal())
	if i.deployed != "" {
		title += " ✓"
	}
	return title
}
func (i clusterItem) Description() string {
	desc := fmt.Sprintf("%s %d tracks (%.3g%%)", sizeBar(i.playlist.ProportionalSize, 10), i.playlist.TrackCount(), i.playlist.ProportionalSize)
	if i.centroid != "" {
		desc = fmt.Sprintf("%s • like %s", desc, i.centroid)
	}
	return desc
}

// trackItem wraps a [models.DisplayableTrack] to implement [list.Item].
type trackItem struct {
	id    string
	track models.DisplayableTrack
}

func (i trackItem) FilterValue() string { return i.track.Name }
func (i trackItem) Title() string {
	if i.track.Name == "" {
		return i.id
	}
	return i.track.Name
}
func (i trackItem) Description() string {
	if i.track.PlayableURL == "" {
		return i.track.Artists
	}
	return fmt.Sprintf("%s • %s", i.track.Artists, i.track.PlayableURL)
}

// clusterItems builds list items in cluster id order.
func clusterItems(a *models.Artifacts, deployed map[models.ClusterID]string) []list.Item {
	ids := a.Playlists.IDs()
	items := make([]list.Item, 0, len(ids))
	for _, id := range ids {
		pl := a.Playlists[id]
		item := clusterItem{id: id, playlist: pl, deployed: deployed[id]}
		if meta, ok := a.Display[id][pl.CentroidTrack]; ok {
			item.centroid = meta.Name
		}
		items = append(items, item)
	}
	return items
}

// trackItems builds list items for a cluster's preview tracks, in preview order.
func trackItems(a *models.Artifacts, id models.ClusterID) []list.Item {
	pl := a.Playlists[id]
	items := make([]list.Item, 0, len(pl.DisplayableTracks))
	for _, trackID := range pl.DisplayableTracks {
		items = append(items, trackItem{id: trackID, track: a.Display[id][trackID]})
	}
	return items
}
