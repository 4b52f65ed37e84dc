package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgArtifactsLoaded MsgKind = iota
	MsgProgressUpdate
	MsgDeployComplete
)

type artifactsLoaded struct {
	artifacts *models.Artifacts
	err       error
}

type deployComplete struct {
	id     models.ClusterID
	result *tasks.DeployResult
	err    error
}

// artifactsLoadedMsg is the constructor for [MsgArtifactsLoaded]
func artifactsLoadedMsg(artifacts *models.Artifacts, err error) Msg {
	return Msg{kind: MsgArtifactsLoaded, data: artifactsLoaded{artifacts, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// deployCompleteMsg is the constructor for [MsgDeployComplete]
func deployCompleteMsg(id models.ClusterID, result *tasks.DeployResult, err error) Msg {
	return Msg{kind: MsgDeployComplete, data: deployComplete{id, result, err}}
}
