package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
	"github.com/desertthunder/radial/internal/tasks"
	th "github.com/desertthunder/radial/internal/testing"
)

type mockSource struct {
	artifacts *models.Artifacts
	err       error
}

func (s *mockSource) LoadArtifacts(userID string) (*models.Artifacts, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.artifacts, nil
}

type mockDeployer struct {
	err      error
	deployed []any
}

func (d *mockDeployer) Deploy(ctx context.Context, progress chan<- tasks.ProgressUpdate, userID string, clusterKey any) (*tasks.DeployResult, error) {
	progress <- tasks.ProgressUpdate{Phase: tasks.CreatePlaylist, Message: "Creating playlist"}
	if d.err != nil {
		return nil, d.err
	}
	d.deployed = append(d.deployed, clusterKey)
	return &tasks.DeployResult{PlaylistID: "pl1", URL: "https://open.spotify.com/playlist/pl1", TrackCount: 3, Batches: 1}, nil
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// drain runs cmd and feeds its messages back until no command is left.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 20 {
			t.Fatal("too many messages")
		}
		msg := cmd()
		if _, ok := msg.(Msg); !ok {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func loadedModel(t *testing.T, deployer *mockDeployer) *Model {
	t.Helper()
	m := NewModel(context.Background(), "listener", &mockSource{artifacts: th.SampleArtifacts()}, deployer)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	drain(t, m, m.Init())
	return m
}

func TestModel_Load(t *testing.T) {
	t.Run("lists clusters", func(t *testing.T) {
		m := loadedModel(t, &mockDeployer{})
		if m.artifacts == nil || m.err != nil {
			t.Fatalf("expected artifacts, got err %v", m.err)
		}
		if len(m.clusterList.Items()) != 2 {
			t.Errorf("expected 2 clusters, got %d", len(m.clusterList.Items()))
		}

		first := m.clusterList.Items()[0].(clusterItem)
		if first.id != 0 || first.centroid != "First Song" {
			t.Errorf("unexpected first item %+v", first)
		}
		if !strings.Contains(first.Description(), "3 tracks (75%)") {
			t.Errorf("unexpected description %q", first.Description())
		}
		if !strings.Contains(m.View(), "4 tracks in 2 clusters") {
			t.Errorf("view missing summary: %s", m.View())
		}
	})

	t.Run("missing run", func(t *testing.T) {
		m := NewModel(context.Background(), "listener", &mockSource{err: fmt.Errorf("%w: artifacts", shared.ErrNotFound)}, &mockDeployer{})
		drain(t, m, m.Init())

		if !strings.Contains(m.View(), "radial cluster run") {
			t.Errorf("view should point at the run command: %s", m.View())
		}
		if _, cmd := m.Update(keyPress("x")); cmd == nil {
			t.Error("any key should quit after a load error")
		}
	})
}

func TestModel_Navigation(t *testing.T) {
	m := loadedModel(t, &mockDeployer{})

	m.Update(keyPress("enter"))
	if m.view != TrackListView {
		t.Fatalf("expected track list view, got %d", m.view)
	}
	if len(m.trackList.Items()) != 2 {
		t.Errorf("expected 2 preview tracks, got %d", len(m.trackList.Items()))
	}
	item := m.trackList.Items()[0].(trackItem)
	if item.Title() != "First Song" || !strings.Contains(item.Description(), "Ada / Bo") {
		t.Errorf("unexpected preview item %q %q", item.Title(), item.Description())
	}

	m.Update(keyPress("esc"))
	if m.view != ClusterListView {
		t.Errorf("esc should return to the cluster list, got %d", m.view)
	}

	m.Update(keyPress("d"))
	if m.view != ConfirmView {
		t.Fatalf("d should ask for confirmation, got %d", m.view)
	}
	if !strings.Contains(m.View(), "Create 'Kmeans (2)' from cluster 1?") {
		t.Errorf("unexpected confirm view: %s", m.View())
	}

	m.Update(keyPress("n"))
	if m.view != ClusterListView {
		t.Errorf("n should cancel, got %d", m.view)
	}
}

func TestModel_Deploy(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		deployer := &mockDeployer{}
		m := loadedModel(t, deployer)

		m.Update(keyPress("d"))
		_, cmd := m.Update(keyPress("y"))
		if m.view != DeployView {
			t.Fatalf("expected deploy view, got %d", m.view)
		}
		drain(t, m, cmd)

		if m.view != ResultView || m.err != nil {
			t.Fatalf("expected result view without error, got %d %v", m.view, m.err)
		}
		if len(deployer.deployed) != 1 || deployer.deployed[0] != models.ClusterID(0) {
			t.Errorf("unexpected deployments %v", deployer.deployed)
		}
		if !strings.Contains(m.View(), "https://open.spotify.com/playlist/pl1") {
			t.Errorf("result should show the playlist URL: %s", m.View())
		}

		m.Update(keyPress("r"))
		if m.view != ClusterListView {
			t.Fatalf("r should go back to the clusters, got %d", m.view)
		}
		if !strings.HasSuffix(m.clusterList.Items()[0].(clusterItem).Title(), "✓") {
			t.Error("deployed cluster should be marked")
		}

		m.Update(keyPress("d"))
		if !strings.Contains(m.View(), "Already deployed") {
			t.Error("confirm view should warn about a repeated deployment")
		}
	})

	t.Run("failure", func(t *testing.T) {
		m := loadedModel(t, &mockDeployer{err: fmt.Errorf("%w: create playlist", shared.ErrDeploymentFailed)})

		m.Update(keyPress("d"))
		_, cmd := m.Update(keyPress("y"))
		drain(t, m, cmd)

		if m.view != ResultView || !errors.Is(m.err, shared.ErrDeploymentFailed) {
			t.Fatalf("expected failed result, got %d %v", m.view, m.err)
		}
		if !strings.Contains(m.View(), "Deployment failed") {
			t.Errorf("unexpected view: %s", m.View())
		}
	})
}

func TestSizeBar(t *testing.T) {
	tests := []struct {
		proportion float64
		dots       int
	}{
		{proportion: 0, dots: 10},
		{proportion: 1, dots: 9},
		{proportion: 50, dots: 5},
		{proportion: 100, dots: 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.proportion), func(t *testing.T) {
			if got := strings.Count(sizeBar(tt.proportion, 10), "·"); got != tt.dots {
				t.Errorf("sizeBar(%v) has %d empty cells, want %d", tt.proportion, got, tt.dots)
			}
		})
	}
}

func TestKeyMapForView(t *testing.T) {
	keys := newKeyMap()

	tests := []struct {
		view ViewState
		want []string
	}{
		{view: ClusterListView, want: []string{"move", "preview", "deploy", "quit"}},
		{view: TrackListView, want: []string{"move", "deploy", "back", "quit"}},
		{view: ConfirmView, want: []string{"create playlist", "cancel"}},
		{view: DeployView, want: nil},
		{view: ResultView, want: []string{"clusters", "quit"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.view), func(t *testing.T) {
			var got []string
			for _, b := range keys.forView(tt.view).ShortHelp() {
				got = append(got, b.Help().Desc)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
