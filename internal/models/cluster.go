package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ClusterID identifies a cluster within one clustering run. Labels are zero-based.
//
// It is always an integer in memory; JSON object keys carry it as a decimal string.
type ClusterID int

// String returns the decimal form used as a JSON key.
func (c ClusterID) String() string { return strconv.Itoa(int(c)) }

// Ordinal returns the one-based position shown to listeners.
func (c ClusterID) Ordinal() int { return int(c) + 1 }

// ParseClusterID converts a cluster key read from a URL, form or JSON document into a [ClusterID].
func ParseClusterID(s string) (ClusterID, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		// keys written by float-typed encoders look like "3.0"
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("invalid cluster id %q", s)
		}
		n = int(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid cluster id %q", s)
	}
	return ClusterID(n), nil
}

// LabelledTrack pairs a track with the cluster it was assigned to.
type LabelledTrack struct {
	TrackID string    `json:"track_id"`
	Label   ClusterID `json:"label"`
}

// ClusteredPlaylist is one cluster prepared for display and deployment.
type ClusteredPlaylist struct {
	CentroidTrack     string   `json:"centroid_track"`
	DisplayableTracks []string `json:"displayable_tracks"`
	AllTracks         []string `json:"all_tracks"`
	Size              string   `json:"size"`
	ProportionalSize  float64  `json:"proportional_size"`
}

// TrackCount returns the number of member tracks.
func (p ClusteredPlaylist) TrackCount() int { return len(p.AllTracks) }

// ClusteredPlaylists indexes clustered playlists by cluster id.
type ClusteredPlaylists map[ClusterID]ClusteredPlaylist

// IDs returns the cluster ids in ascending order.
func (p ClusteredPlaylists) IDs() []ClusterID {
	ids := make([]ClusterID, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TotalTracks sums the sizes of every cluster.
func (p ClusteredPlaylists) TotalTracks() int {
	total := 0
	for _, pl := range p {
		total += pl.TrackCount()
	}
	return total
}

// MarshalJSON writes cluster ids as string keys in ascending numeric order.
func (p ClusteredPlaylists) MarshalJSON() ([]byte, error) {
	return marshalOrdered(p.IDs(), func(id ClusterID) any { return p[id] })
}

// UnmarshalJSON accepts string keys and normalizes them to [ClusterID].
func (p *ClusteredPlaylists) UnmarshalJSON(data []byte) error {
	var raw map[string]ClusteredPlaylist
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ClusteredPlaylists, len(raw))
	for k, v := range raw {
		id, err := ParseClusterID(k)
		if err != nil {
			return err
		}
		out[id] = v
	}
	*p = out
	return nil
}

// DisplayableTrack holds the metadata needed to render a preview track.
type DisplayableTrack struct {
	Name          string `json:"name"`
	PlayableURL   string `json:"playable_url"`
	AlbumCoverURL string `json:"album_cover_url"`
	Artists       string `json:"artists"`
}

// DisplayableData maps cluster id to track id to display metadata.
type DisplayableData map[ClusterID]map[string]DisplayableTrack

// MarshalJSON writes cluster ids as string keys in ascending numeric order.
func (d DisplayableData) MarshalJSON() ([]byte, error) {
	ids := make([]ClusterID, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return marshalOrdered(ids, func(id ClusterID) any { return d[id] })
}

// UnmarshalJSON accepts string keys and normalizes them to [ClusterID].
func (d *DisplayableData) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]DisplayableTrack
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(DisplayableData, len(raw))
	for k, v := range raw {
		id, err := ParseClusterID(k)
		if err != nil {
			return err
		}
		out[id] = v
	}
	*d = out
	return nil
}

// ClusterKey converts an integer or string cluster key into a [ClusterID].
func ClusterKey(key any) (ClusterID, bool) {
	switch k := key.(type) {
	case ClusterID:
		return k, true
	case int:
		return ClusterID(k), true
	case int64:
		return ClusterID(k), true
	case float64:
		if k != float64(int(k)) {
			return 0, false
		}
		return ClusterID(int(k)), true
	case string:
		id, err := ParseClusterID(k)
		return id, err == nil
	default:
		return 0, false
	}
}

func marshalOrdered(ids []ClusterID, value func(ClusterID) any) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(id.String())
		val, err := json.Marshal(value(id))
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Artifacts is everything a clustering run stores for later display, export and deployment.
type Artifacts struct {
	ClusteringID string             `json:"clustering_id"`
	UserID       string             `json:"user_id"`
	Algorithm    string             `json:"algorithm"`
	Clusters     int                `json:"clusters"`
	Playlists    ClusteredPlaylists `json:"clustered_playlists"`
	Display      DisplayableData    `json:"displayable_data"`
	Labelled     []LabelledTrack    `json:"labelled_tracks"`
}

// DeployOutcome is the result of deploying one cluster during a bulk deployment.
type DeployOutcome struct {
	ClusterID  ClusterID `json:"cluster_id"`
	PlaylistID string    `json:"playlist_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	TrackCount int       `json:"track_count"`
	Err        error     `json:"-"`
	Error      string    `json:"error,omitempty"`
}

// BulkDeployResult summarizes a deployment of every cluster of a run.
type BulkDeployResult struct {
	UserID       string          `json:"user_id"`
	Title        string          `json:"title"`
	Total        int             `json:"total"`
	Succeeded    int             `json:"succeeded"`
	Failed       int             `json:"failed"`
	Outcomes     []DeployOutcome `json:"outcomes"`
	ManifestPath string          `json:"-"`
}
