package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/tasks"
)

// ArtifactReader loads the latest clustering run of a user.
type ArtifactReader interface {
	LoadArtifacts(userID string) (*models.Artifacts, error)
}

// ClusterDeployer publishes one cluster as a playlist, see [tasks.Pipeline.Deploy].
type ClusterDeployer interface {
	Deploy(ctx context.Context, progress chan<- tasks.ProgressUpdate, userID string, clusterKey any) (*tasks.DeployResult, error)
}

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ClusterListView ViewState = iota
	TrackListView
	ConfirmView
	DeployView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	userID   string
	source   ArtifactReader
	deployer ClusterDeployer

	width       int
	height      int
	artifacts   *models.Artifacts
	clusterList list.Model
	trackList   list.Model
	selected    models.ClusterID
	deployed    map[models.ClusterID]string

	progressChan <-chan tasks.ProgressUpdate
	doneChan     <-chan Msg
	progress     tasks.ProgressUpdate
	result       *tasks.DeployResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a cluster browser for the latest run of userID.
func NewModel(ctx context.Context, userID string, source ArtifactReader, deployer ClusterDeployer) *Model {
	return &Model{
		ctx:         ctx,
		view:        ClusterListView,
		userID:      userID,
		source:      source,
		deployer:    deployer,
		clusterList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		trackList:   list.New(nil, list.NewDefaultDelegate(), 0, 0),
		deployed:    make(map[models.ClusterID]string),
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init loads the stored artifacts.
func (m *Model) Init() tea.Cmd {
	return m.loadArtifacts()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clusterList.SetSize(msg.Width-4, msg.Height-8)
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if m.err != nil && m.artifacts == nil {
			return m, tea.Quit
		}
		switch m.view {
		case ClusterListView:
			return m.handleClusterListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgArtifactsLoaded:
		data := msg.data.(artifactsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.artifacts = data.artifacts
		m.clusterList = list.New(clusterItems(m.artifacts, m.deployed), list.NewDefaultDelegate(), 0, 0)
		m.clusterList.Title = tasks.PlaylistTitle(m.artifacts.Algorithm, m.artifacts.Clusters)
		m.clusterList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.progressChan, m.doneChan)

	case MsgDeployComplete:
		data := msg.data.(deployComplete)
		m.progressChan, m.doneChan = nil, nil
		m.result = data.result
		m.err = data.err
		if data.err == nil {
			m.deployed[data.id] = data.result.URL
			m.clusterList.SetItems(clusterItems(m.artifacts, m.deployed))
		}
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.artifacts == nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nRun `radial cluster run` first. Press any key to quit", m.err))
	}
	if m.artifacts == nil {
		return styles.help.Render("Loading clusters...")
	}

	switch m.view {
	case ClusterListView:
		return m.renderClusterList()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case DeployView:
		return m.renderDeploy()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleClusterListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.clusterList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.clusterList, cmd = m.clusterList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter), key.Matches(msg, m.keys.deploy):
		item, ok := m.clusterList.SelectedItem().(clusterItem)
		if !ok {
			return m, nil
		}
		m.selected = item.id
		if key.Matches(msg, m.keys.deploy) {
			m.view = ConfirmView
			return m, nil
		}
		m.trackList = list.New(trackItems(m.artifacts, item.id), list.NewDefaultDelegate(), 0, 0)
		m.trackList.Title = fmt.Sprintf("Cluster %d preview", item.id.Ordinal())
		m.trackList.SetSize(m.width-4, m.height-8)
		m.view = TrackListView
		return m, nil
	}

	var cmd tea.Cmd
	m.clusterList, cmd = m.clusterList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = ClusterListView
		return m, nil
	case key.Matches(msg, m.keys.deploy), key.Matches(msg, m.keys.enter):
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = ClusterListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = DeployView
		m.progress = tasks.ProgressUpdate{}
		return m, m.startDeploy(m.selected)
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart), key.Matches(msg, m.keys.back):
		m.view = ClusterListView
		m.result = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ClusterListView:
		m.clusterList, cmd = m.clusterList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadArtifacts() tea.Cmd {
	return func() tea.Msg {
		artifacts, err := m.source.LoadArtifacts(m.userID)
		return artifactsLoadedMsg(artifacts, err)
	}
}

// startDeploy runs the deployment in the background; updates arrive one message at a time.
func (m *Model) startDeploy(id models.ClusterID) tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)
	m.progressChan, m.doneChan = progress, done

	ctx, userID, deployer := m.ctx, m.userID, m.deployer
	go func() {
		result, err := deployer.Deploy(ctx, progress, userID, id)
		close(progress)
		done <- deployCompleteMsg(id, result, err)
	}()

	return waitForProgress(progress, done)
}

func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan Msg) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderClusterList() string {
	helpView := m.help.View(m.keys.forView(m.view))
	summary := styles.help.Render(fmt.Sprintf("%d tracks in %d clusters", m.artifacts.Playlists.TotalTracks(), len(m.artifacts.Playlists)))
	return fmt.Sprintf("%s\n%s\n\n%s", m.clusterList.View(), summary, helpView)
}

func (m *Model) renderTrackList() string {
	helpView := m.help.View(m.keys.forView(m.view))
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	pl := m.artifacts.Playlists[m.selected]
	name := tasks.PlaylistTitle(m.artifacts.Algorithm, m.artifacts.Clusters)
	title := styles.title.Render(fmt.Sprintf("Create '%s' from cluster %d?", name, m.selected.Ordinal()))
	info := fmt.Sprintf("\nTracks: %d (%.3g%% of the library)\n", pl.TrackCount(), pl.ProportionalSize)

	var warn string
	if url := m.deployed[m.selected]; url != "" {
		warn = styles.warn.Render(fmt.Sprintf("Already deployed to %s, a second playlist will be created.", url)) + "\n"
	}

	helpView := m.help.View(m.keys.forView(m.view))
	return fmt.Sprintf("%s\n%s%s\n%s", title, info, warn, helpView)
}

func (m *Model) renderDeploy() string {
	title := styles.title.Render(fmt.Sprintf("Deploying cluster %d", m.selected.Ordinal()))

	var phase string
	switch m.progress.Phase {
	case tasks.CreatePlaylist:
		phase = "Creating playlist..."
	case tasks.AddTracks:
		phase = fmt.Sprintf("Adding tracks (batch %d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Starting..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	helpView := m.help.View(m.keys.forView(m.view))

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Deployment failed: %v", m.err)), helpView)
	}
	if m.result == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render("No result available"), helpView)
	}

	var b strings.Builder
	b.WriteString(styles.ok.Render("✓ Playlist created!"))
	fmt.Fprintf(&b, "\n\nCluster: %d\nTracks: %d\nOpen: %s", m.selected.Ordinal(), m.result.TrackCount, m.result.URL)
	fmt.Fprintf(&b, "\n\n%s", helpView)
	return b.String()
}
