// Package testing holds fixtures and helpers shared by the package tests.
package testing

import (
	"database/sql"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
)

// SampleArtifacts returns a two cluster kmeans run for spotify user "listener" with display data for every preview track.
func SampleArtifacts() *models.Artifacts {
	return &models.Artifacts{
		ClusteringID: "run-1",
		UserID:       "listener",
		Algorithm:    "kmeans",
		Clusters:     2,
		Playlists: models.ClusteredPlaylists{
			0: {
				CentroidTrack:     "t1",
				DisplayableTracks: []string{"t1", "t3"},
				AllTracks:         []string{"t1", "t3", "t4"},
				Size:              "3",
				ProportionalSize:  75,
			},
			1: {
				CentroidTrack:     "t2",
				DisplayableTracks: []string{"t2"},
				AllTracks:         []string{"t2"},
				Size:              "1",
				ProportionalSize:  25,
			},
		},
		Display: models.DisplayableData{
			0: {
				"t1": {Name: "First Song", PlayableURL: "https://open.spotify.com/track/t1", AlbumCoverURL: "https://i.scdn.co/image/t1", Artists: "Ada / Bo"},
				"t3": {Name: "Third Song", PlayableURL: "https://open.spotify.com/track/t3", AlbumCoverURL: "https://i.scdn.co/image/t3", Artists: "Cy"},
			},
			1: {
				"t2": {Name: "Second Song", PlayableURL: "https://open.spotify.com/track/t2", AlbumCoverURL: "https://i.scdn.co/image/t2", Artists: "Di"},
			},
		},
		Labelled: []models.LabelledTrack{
			{TrackID: "t1", Label: 0},
			{TrackID: "t2", Label: 1},
			{TrackID: "t3", Label: 0},
			{TrackID: "t4", Label: 0},
		},
	}
}

// FailingWriter rejects every write with Err, or a generic error when Err is nil.
type FailingWriter struct {
	Err error
}

func (f *FailingWriter) Write(p []byte) (int, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	return 0, errors.New("write failed")
}

// LimitedWriter forwards the first N writes to its target and fails every later one.
type LimitedWriter struct {
	N      int
	writes int
	target io.Writer
}

// FailAfter returns a writer that accepts n writes.
func FailAfter(n int, target io.Writer) *LimitedWriter {
	return &LimitedWriter{N: n, target: target}
}

func (l *LimitedWriter) Write(p []byte) (int, error) {
	if l.writes >= l.N {
		return 0, errors.New("write limit exceeded")
	}
	l.writes++
	return l.target.Write(p)
}

// MemoryDB opens a migrated in-memory database that is closed when the test ends.
func MemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: shared.MemoryDatabase})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// AssertFileExists fails the test unless path is a regular file.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	assertPath(t, path, false)
}

// AssertDirExists fails the test unless path is a directory.
func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	assertPath(t, path, true)
}

func assertPath(t *testing.T, path string, dir bool) {
	t.Helper()
	info, err := os.Stat(path)
	switch {
	case err != nil:
		t.Errorf("%s: %v", path, err)
	case info.IsDir() != dir:
		t.Errorf("%s: expected dir=%v, got mode %v", path, dir, info.Mode())
	}
}

// MustReadFile returns the contents of path or stops the test.
func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(content)
}
