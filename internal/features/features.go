// package features prepares collected audio features for clustering
package features

import (
	"fmt"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Project builds the raw (unscaled) matrix for records.
//
// Rows with a non-finite value or the wrong width are excluded and reported as dropped with [shared.ErrPartialDataLoss].
// Row order follows records.
func Project(schema models.FeatureSchema, records []models.TrackFeatures) (*models.FeatureMatrix, []models.DroppedTrack) {
	width := schema.Width()
	ids := make([]string, 0, len(records))
	data := make([]float64, 0, len(records)*width)

	var dropped []models.DroppedTrack
	for _, rec := range records {
		switch {
		case len(rec.Values) != width:
			dropped = append(dropped, models.DroppedTrack{
				TrackID: rec.TrackID,
				Err:     fmt.Errorf("%w: %d values for %d features", shared.ErrPartialDataLoss, len(rec.Values), width),
			})
		case !rec.Valid():
			dropped = append(dropped, models.DroppedTrack{
				TrackID: rec.TrackID,
				Err:     fmt.Errorf("%w: non-finite feature value", shared.ErrPartialDataLoss),
			})
		default:
			ids = append(ids, rec.TrackID)
			data = append(data, rec.Values...)
		}
	}

	m := &models.FeatureMatrix{Schema: schema, TrackIDs: ids}
	if len(ids) > 0 && width > 0 {
		m.Data = mat.NewDense(len(ids), width, data)
	}
	return m, dropped
}

// Scale rescales every column of m in place to [0, 1].
//
// A constant column carries no information for distance-based clustering and maps to 0.
func Scale(m *models.FeatureMatrix) {
	if m.Rows() == 0 {
		return
	}

	rows, cols := m.Data.Dims()
	col := make([]float64, rows)
	for j := range cols {
		mat.Col(col, j, m.Data)

		lo, hi := floats.Min(col), floats.Max(col)
		span := hi - lo
		for i := range col {
			if span == 0 {
				col[i] = 0
				continue
			}
			col[i] = (col[i] - lo) / span
		}
		m.Data.SetCol(j, col)
	}
}

// Normalize projects records onto schema and min-max scales each feature.
//
// The result is deterministic for identical input. Fails with [shared.ErrInsufficientData] when no usable row remains.
func Normalize(schema models.FeatureSchema, records []models.TrackFeatures) (*models.FeatureMatrix, []models.DroppedTrack, error) {
	if schema.Width() == 0 {
		return nil, nil, fmt.Errorf("%w: empty feature schema", shared.ErrValidation)
	}

	m, dropped := Project(schema, records)
	if m.Rows() == 0 {
		return nil, dropped, fmt.Errorf("%w: no tracks with complete features (%d dropped)", shared.ErrInsufficientData, len(dropped))
	}

	Scale(m)
	return m, dropped, nil
}
