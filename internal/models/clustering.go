package models

import "fmt"

// Clustering records one completed pipeline run for a user.
type Clustering struct {
	entity
	userID       string
	algorithm    string
	clusters     int
	trackCount   int
	droppedCount int
}

// NewClustering creates a [Clustering] for the user's run of algorithm with the given cluster count.
func NewClustering(sequence int, userID, algorithm string, clusters int) *Clustering {
	return &Clustering{entity: newEntity(sequence), userID: userID, algorithm: algorithm, clusters: clusters}
}

func (c *Clustering) UserID() string    { return c.userID }
func (c *Clustering) Algorithm() string { return c.algorithm }
func (c *Clustering) Clusters() int     { return c.clusters }
func (c *Clustering) TrackCount() int   { return c.trackCount }
func (c *Clustering) DroppedCount() int { return c.droppedCount }

func (c *Clustering) SetTrackCount(n int)   { c.trackCount = n }
func (c *Clustering) SetDroppedCount(n int) { c.droppedCount = n }

// Validate checks required fields.
func (c *Clustering) Validate() error {
	if c.userID == "" {
		return fmt.Errorf("user id is required")
	}
	if c.algorithm == "" {
		return fmt.Errorf("algorithm is required")
	}
	if c.clusters < 2 {
		return fmt.Errorf("cluster count must be at least 2, got %d", c.clusters)
	}
	if c.trackCount < 0 || c.droppedCount < 0 {
		return fmt.Errorf("track counts cannot be negative")
	}
	return nil
}

// Deployment records a playlist created from one cluster of a [Clustering].
type Deployment struct {
	entity
	clusteringID string
	userID       string
	clusterID    ClusterID
	playlistID   string
	playlistURL  string
	trackCount   int
}

// NewDeployment creates a [Deployment] linking a cluster to the playlist created for it.
func NewDeployment(sequence int, clusteringID, userID string, clusterID ClusterID, playlistID, playlistURL string, trackCount int) *Deployment {
	return &Deployment{
		entity:       newEntity(sequence),
		clusteringID: clusteringID,
		userID:       userID,
		clusterID:    clusterID,
		playlistID:   playlistID,
		playlistURL:  playlistURL,
		trackCount:   trackCount,
	}
}

func (d *Deployment) ClusteringID() string { return d.clusteringID }
func (d *Deployment) UserID() string       { return d.userID }
func (d *Deployment) ClusterID() ClusterID { return d.clusterID }
func (d *Deployment) PlaylistID() string   { return d.playlistID }
func (d *Deployment) PlaylistURL() string  { return d.playlistURL }
func (d *Deployment) TrackCount() int      { return d.trackCount }

// Validate checks required fields.
func (d *Deployment) Validate() error {
	if d.clusteringID == "" {
		return fmt.Errorf("clustering id is required")
	}
	if d.userID == "" {
		return fmt.Errorf("user id is required")
	}
	if d.playlistID == "" {
		return fmt.Errorf("playlist id is required")
	}
	if d.clusterID < 0 {
		return fmt.Errorf("cluster id cannot be negative")
	}
	return nil
}
