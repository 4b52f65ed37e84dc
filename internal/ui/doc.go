// Package ui implements an interactive cluster browser using bubbletea's Elm architecture.
//
// The TUI walks through the latest clustering run of a user:
//  1. [ClusterListView] : Browse clusters with their size and centroid track
//  2. [TrackListView] : Preview the display tracks of a cluster
//  3. [ConfirmView] : Confirm the playlist creation
//  4. [DeployView] : Monitor progress while tracks are added in batches
//  5. [ResultView] : Show the playlist URL or the failure
//
// The [Model] implements the standard Init/Update/View pattern, receiving messages via the [Msg] union type.
// Deployment progress flows through a channel from the pipeline and is read one update per command.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, d, esc, y/n, q) with contextual help from bubbles/help.
package ui
