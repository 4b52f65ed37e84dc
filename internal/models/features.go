package models

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// FeatureSchema is the ordered list of named audio features used as matrix columns.
//
// The schema travels with every [FeatureMatrix] so that column positions never depend on convention.
type FeatureSchema []string

// DefaultFeatureSchema is the set of Spotify audio features used for clustering.
var DefaultFeatureSchema = FeatureSchema{
	"danceability",
	"energy",
	"key",
	"loudness",
	"mode",
	"speechiness",
	"acousticness",
	"instrumentalness",
	"liveness",
	"valence",
	"tempo",
	"duration_ms",
	"time_signature",
}

// Width returns the number of features in the schema.
func (s FeatureSchema) Width() int { return len(s) }

// Index returns the column of the named feature or -1.
func (s FeatureSchema) Index(name string) int { return slices.Index(s, name) }

// Equal reports whether both schemas list the same features in the same order.
func (s FeatureSchema) Equal(other FeatureSchema) bool { return slices.Equal(s, other) }

// TrackFeatures is one track's feature vector, ordered by the schema it was collected with.
type TrackFeatures struct {
	TrackID string    `json:"track_id"`
	Values  []float64 `json:"values"`
}

// Valid reports whether every value is a finite number.
func (t TrackFeatures) Valid() bool {
	for _, v := range t.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// DroppedTrack records a track excluded from the matrix and why.
type DroppedTrack struct {
	TrackID string
	Err     error
}

// FeatureMatrix is the numeric input to clustering.
//
// Row i of Data belongs to TrackIDs[i]; columns follow Schema.
type FeatureMatrix struct {
	Schema   FeatureSchema
	TrackIDs []string
	Data     *mat.Dense
}

// Rows returns the number of tracks in the matrix.
func (m *FeatureMatrix) Rows() int {
	if m == nil || m.Data == nil {
		return 0
	}
	r, _ := m.Data.Dims()
	return r
}

// Validate checks that dimensions agree with the schema and that every value is finite.
func (m *FeatureMatrix) Validate() error {
	if m == nil || m.Data == nil {
		return fmt.Errorf("feature matrix is empty")
	}
	r, c := m.Data.Dims()
	if c != m.Schema.Width() {
		return fmt.Errorf("feature matrix has %d columns, schema has %d", c, m.Schema.Width())
	}
	if r != len(m.TrackIDs) {
		return fmt.Errorf("feature matrix has %d rows, %d track ids", r, len(m.TrackIDs))
	}
	for i := range r {
		for j := range c {
			v := m.Data.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("feature matrix row %d (%s) has non-finite %s", i, m.TrackIDs[i], m.Schema[j])
			}
		}
	}
	return nil
}
