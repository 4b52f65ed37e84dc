package services

import (
	"fmt"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
)

// SpotifyAudioFeatures is the audio analysis summary for a single track.
//
// Fields are pointers so a feature Spotify omitted or returned as null can be told apart from zero.
type SpotifyAudioFeatures struct {
	ID               string   `json:"id"`
	URI              string   `json:"uri"`
	Danceability     *float64 `json:"danceability"`
	Energy           *float64 `json:"energy"`
	Key              *float64 `json:"key"`
	Loudness         *float64 `json:"loudness"`
	Mode             *float64 `json:"mode"`
	Speechiness      *float64 `json:"speechiness"`
	Acousticness     *float64 `json:"acousticness"`
	Instrumentalness *float64 `json:"instrumentalness"`
	Liveness         *float64 `json:"liveness"`
	Valence          *float64 `json:"valence"`
	Tempo            *float64 `json:"tempo"`
	DurationMS       *float64 `json:"duration_ms"`
	TimeSignature    *float64 `json:"time_signature"`
}

func (f *SpotifyAudioFeatures) field(name string) (*float64, bool) {
	switch name {
	case "danceability":
		return f.Danceability, true
	case "energy":
		return f.Energy, true
	case "key":
		return f.Key, true
	case "loudness":
		return f.Loudness, true
	case "mode":
		return f.Mode, true
	case "speechiness":
		return f.Speechiness, true
	case "acousticness":
		return f.Acousticness, true
	case "instrumentalness":
		return f.Instrumentalness, true
	case "liveness":
		return f.Liveness, true
	case "valence":
		return f.Valence, true
	case "tempo":
		return f.Tempo, true
	case "duration_ms":
		return f.DurationMS, true
	case "time_signature":
		return f.TimeSignature, true
	default:
		return nil, false
	}
}

// Vector returns the features ordered by schema.
//
// Fails with [shared.ErrDependencyNotFound] when a named feature is unknown or missing from the response.
func (f *SpotifyAudioFeatures) Vector(schema models.FeatureSchema) ([]float64, error) {
	values := make([]float64, 0, schema.Width())
	for _, name := range schema {
		v, known := f.field(name)
		if !known {
			return nil, fmt.Errorf("%w: unknown audio feature %q", shared.ErrDependencyNotFound, name)
		}
		if v == nil {
			return nil, fmt.Errorf("%w: track %s has no %s", shared.ErrDependencyNotFound, f.ID, name)
		}
		values = append(values, *v)
	}
	return values, nil
}
