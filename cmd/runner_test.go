package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/repositories"
	"github.com/desertthunder/radial/internal/services"
	"github.com/desertthunder/radial/internal/shared"
	"github.com/desertthunder/radial/internal/tasks"
	tu "github.com/desertthunder/radial/internal/testing"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// fakeLibrary serves n saved tracks in k well separated groups.
type fakeLibrary struct {
	mu       sync.Mutex
	saved    []services.SpotifySavedTrack
	features map[string]*services.SpotifyAudioFeatures
	tracks   map[string]*services.SpotifyTrack
	created  []string
}

func newFakeLibrary(n, k int) *fakeLibrary {
	f := &fakeLibrary{
		features: make(map[string]*services.SpotifyAudioFeatures),
		tracks:   make(map[string]*services.SpotifyTrack),
	}
	for i := range n {
		id := fmt.Sprintf("t%02d", i)
		v := float64(i%k)*10 + float64(i)/100
		f.features[id] = &services.SpotifyAudioFeatures{
			ID: id, Danceability: &v, Energy: &v, Key: &v, Loudness: &v, Mode: &v, Speechiness: &v,
			Acousticness: &v, Instrumentalness: &v, Liveness: &v, Valence: &v, Tempo: &v, DurationMS: &v, TimeSignature: &v,
		}
		track := &services.SpotifyTrack{ID: id, Name: "Song " + id, Artists: []services.SpotifyArtist{{Name: "Artist"}}}
		track.ExternalURLs.Spotify = "https://open.spotify.com/track/" + id
		f.tracks[id] = track
		f.saved = append(f.saved, services.SpotifySavedTrack{Track: track})
	}
	return f
}

func (f *fakeLibrary) SavedTracks(ctx context.Context, limit, offset int) (*services.SpotifyPaginatedTracks, error) {
	end := min(offset+limit, len(f.saved))
	return &services.SpotifyPaginatedTracks{Items: f.saved[offset:end], Total: len(f.saved)}, nil
}

func (f *fakeLibrary) UserPlaylists(ctx context.Context, limit, offset int) (*services.SpotifyPaginatedPlaylists, error) {
	return &services.SpotifyPaginatedPlaylists{}, nil
}

func (f *fakeLibrary) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*services.SpotifyPaginatedPlaylistTracks, error) {
	return &services.SpotifyPaginatedPlaylistTracks{}, nil
}

func (f *fakeLibrary) AudioFeatures(ctx context.Context, trackIDs []string) ([]*services.SpotifyAudioFeatures, error) {
	out := make([]*services.SpotifyAudioFeatures, len(trackIDs))
	for i, id := range trackIDs {
		out[i] = f.features[id]
	}
	return out, nil
}

func (f *fakeLibrary) SeveralTracks(ctx context.Context, trackIDs []string) ([]*services.SpotifyTrack, error) {
	out := make([]*services.SpotifyTrack, len(trackIDs))
	for i, id := range trackIDs {
		out[i] = f.tracks[id]
	}
	return out, nil
}

func (f *fakeLibrary) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.SpotifyPlaylist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	return &services.SpotifyPlaylist{ID: fmt.Sprintf("pl%d", len(f.created)), Name: name}, nil
}

func (f *fakeLibrary) AddTracks(ctx context.Context, playlistID string, uris []string) (string, error) {
	return "snap", nil
}

type fixture struct {
	runner  *Runner
	output  *bytes.Buffer
	library *fakeLibrary
	clients int
}

// newFixture wires a runner to in-memory sqlite and badger with user "listener" logged in.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := shared.NewLogger(&bytes.Buffer{})

	db := tu.MemoryDB(t)

	store, err := repositories.OpenArtifactStore("", true, logger)
	if err != nil {
		t.Fatalf("failed to open artifact store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	config := shared.DefaultConfig()
	config.Pipeline.AllowedClusters = []int{2, 3, 4}

	f := &fixture{output: &bytes.Buffer{}, library: newFakeLibrary(12, 3)}
	f.runner = NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
		Output: f.output,
		DB:     db,
		Store:  store,
		Client: func(ctx context.Context, user *models.User) (tasks.SpotifyClient, error) {
			f.clients++
			return f.library, nil
		},
	})

	user := models.NewUser(0, "listener", "Listener")
	user.SetToken(&oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)})
	if err := f.runner.users.Save(user); err != nil {
		t.Fatalf("failed to save user: %v", err)
	}
	return f
}

// run executes args against a fresh command tree and returns what was written.
func (f *fixture) run(args ...string) (string, error) {
	f.output.Reset()
	app := &cli.Command{Name: "radial", Commands: f.runner.register()}
	err := app.Run(context.Background(), append([]string{"radial"}, args...))
	return f.output.String(), err
}

func (f *fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := f.run(args...)
	if err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	return out
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config: config,
				Logger: logger,
				Output: output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.newClient == nil {
				t.Error("expected the Spotify client factory to default")
			}
			if runner.db != nil || runner.store != nil {
				t.Error("expected the database and the store to open lazily")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with a database wires the repositories", func(t *testing.T) {
			f := newFixture(t)

			if f.runner.users == nil || f.runner.clusterings == nil || f.runner.deployments == nil {
				t.Error("expected repositories to be created for the provided database")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FailingWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: tu.FailAfter(1, &bytes.Buffer{})})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FailingWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := make(map[string]bool)
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, name := range []string{"setup", "auth", "cluster", "history", "serve", "tui"} {
			if !names[name] {
				t.Errorf("expected %s command to be registered", name)
			}
		}
	})
}

func TestClusterCommands(t *testing.T) {
	t.Run("run then show", func(t *testing.T) {
		f := newFixture(t)

		out := f.mustRun(t, "cluster", "run", "--clusters", "3 clusters")
		if !strings.Contains(out, "Kmeans (3)") || !strings.Contains(out, "Clustered 12 tracks into 3 playlists") {
			t.Errorf("unexpected run output:\n%s", out)
		}
		if strings.Count(out, "★ Song t") != 3 {
			t.Errorf("expected one centroid per cluster:\n%s", out)
		}

		out = f.mustRun(t, "cluster", "show", "--json", "--pretty=false")
		var shown struct {
			Title    string                    `json:"title"`
			Clusters models.ClusteredPlaylists `json:"clustered_playlists"`
		}
		if err := json.Unmarshal([]byte(out), &shown); err != nil {
			t.Fatalf("invalid JSON %q: %v", out, err)
		}
		if shown.Title != "Kmeans (3)" || len(shown.Clusters) != 3 || shown.Clusters.TotalTracks() != 12 {
			t.Errorf("unexpected show output %+v", shown)
		}
	})

	t.Run("agglomerative run", func(t *testing.T) {
		f := newFixture(t)

		out := f.mustRun(t, "cluster", "run", "-a", "Agglomerative Hierarchical", "-k", "2", "--json")
		if !strings.Contains(out, `"algorithm": "agglomerative hierarchical"`) {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("rejects invalid requests before calling Spotify", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
			want error
		}{
			{name: "disallowed count", args: []string{"cluster", "run", "-k", "7"}, want: shared.ErrInvalidClusterCount},
			{name: "no count", args: []string{"cluster", "run", "-k", "many"}, want: shared.ErrInvalidClusterCount},
			{name: "unknown algorithm", args: []string{"cluster", "run", "-k", "3", "-a", "dbscan"}, want: shared.ErrUnsupportedAlgorithm},
			{name: "unknown user", args: []string{"cluster", "run", "-k", "3", "-u", "nobody"}, want: shared.ErrNotFound},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)

				_, err := f.run(tt.args...)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if f.clients != 0 {
					t.Error("no Spotify client should be created for an invalid request")
				}
			})
		}
	})

	t.Run("show without a run", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.run("cluster", "show")
		if !errors.Is(err, shared.ErrNotFound) || !strings.Contains(err.Error(), "radial cluster run") {
			t.Errorf("expected not found pointing at cluster run, got %v", err)
		}
	})

	t.Run("deploy", func(t *testing.T) {
		f := newFixture(t)
		f.mustRun(t, "cluster", "run", "-k", "3")

		out := f.mustRun(t, "cluster", "deploy", "2")
		if !strings.Contains(out, "✓ Created playlist from cluster 2") || !strings.Contains(out, services.PlaylistURL("pl1")) {
			t.Errorf("unexpected deploy output:\n%s", out)
		}
		if len(f.library.created) != 1 || f.library.created[0] != "Kmeans (3)" {
			t.Errorf("unexpected playlists %v", f.library.created)
		}

		for _, arg := range []string{"0", "x"} {
			if _, err := f.run("cluster", "deploy", arg); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("deploy %s: expected invalid argument, got %v", arg, err)
			}
		}
		if _, err := f.run("cluster", "deploy", "9"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected missing cluster, got %v", err)
		}
		if _, err := f.run("cluster", "deploy"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument, got %v", err)
		}
	})

	t.Run("deploy all", func(t *testing.T) {
		f := newFixture(t)
		f.mustRun(t, "cluster", "run", "-k", "3")
		dir := t.TempDir()

		out := f.mustRun(t, "cluster", "deploy", "--rate", "100", "-o", dir, "all")
		if !strings.Contains(out, "Succeeded: 3") {
			t.Errorf("unexpected output:\n%s", out)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "deploy_manifest.json"))
		if len(f.library.created) != 3 {
			t.Errorf("expected 3 playlists, got %d", len(f.library.created))
		}

		if _, err := f.run("cluster", "deploy", "-f", "csv", "all"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected csv manifests to be rejected, got %v", err)
		}
	})

	t.Run("export", func(t *testing.T) {
		f := newFixture(t)
		f.mustRun(t, "cluster", "run", "-k", "2")
		dir := filepath.Join(t.TempDir(), "out")

		out := f.mustRun(t, "cluster", "export", "-f", "txt", "-o", dir)
		if !strings.Contains(out, "Exported 2 clusters") {
			t.Errorf("unexpected output:\n%s", out)
		}
		content := tu.MustReadFile(t, filepath.Join(dir, "clusters.txt"))
		if !strings.Contains(content, "Kmeans (2)") {
			t.Errorf("export should carry the playlist title:\n%s", content)
		}
	})
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	out := f.mustRun(t, "history")
	if !strings.Contains(out, "No runs recorded for listener") {
		t.Errorf("unexpected empty history:\n%s", out)
	}

	f.mustRun(t, "cluster", "run", "-k", "2")
	f.mustRun(t, "cluster", "run", "-k", "3")
	f.mustRun(t, "cluster", "deploy", "1")

	out = f.mustRun(t, "history", "--json")
	var entries []historyEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(entries))
	}
	if entries[0].Title != "Kmeans (3)" || len(entries[0].Deployments) != 1 {
		t.Errorf("newest run should come first with its deployment, got %+v", entries[0])
	}
	if d := entries[0].Deployments[0]; d.Cluster != 1 || d.URL != services.PlaylistURL("pl1") {
		t.Errorf("unexpected deployment %+v", d)
	}
	if len(entries[1].Deployments) != 0 || entries[1].TrackCount != 12 {
		t.Errorf("unexpected older run %+v", entries[1])
	}

	out = f.mustRun(t, "history", "-n", "1")
	if strings.Count(out, "Kmeans") != 1 {
		t.Errorf("limit should keep one run:\n%s", out)
	}
}

func TestAuthStatus(t *testing.T) {
	f := newFixture(t)

	out := f.mustRun(t, "auth", "status")
	if !strings.Contains(out, "Listener (listener): ✓ valid") {
		t.Errorf("unexpected status:\n%s", out)
	}

	expired := models.NewUser(0, "sleeper", "Sleeper")
	expired.SetToken(&oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)})
	if err := f.runner.users.Save(expired); err != nil {
		t.Fatalf("failed to save user: %v", err)
	}

	out = f.mustRun(t, "auth", "status", "--json")
	if !strings.Contains(out, `"spotify_id": "sleeper"`) || !strings.Contains(out, `"expired": true`) {
		t.Errorf("unexpected JSON status:\n%s", out)
	}
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "radial.db")
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: filepath.Join(dir, "config.toml"),
		Logger:     shared.NewLogger(&bytes.Buffer{}),
		Output:     output,
	})
	t.Cleanup(func() { runner.Close() })

	app := &cli.Command{Name: "radial", Commands: runner.register()}
	if err := app.Run(context.Background(), []string{"radial", "setup", "database"}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
	tu.AssertFileExists(t, config.Database.Path)
	if !strings.Contains(output.String(), "Database ready") {
		t.Errorf("unexpected output:\n%s", output.String())
	}

	output.Reset()
	app = &cli.Command{Name: "radial", Commands: runner.register()}
	if err := app.Run(context.Background(), []string{"radial", "setup", "rollback"}); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if !strings.Contains(output.String(), "Rolled back migration 0002_create_deployments") {
		t.Errorf("unexpected output:\n%s", output.String())
	}
}
