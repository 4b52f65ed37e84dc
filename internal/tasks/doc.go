// Package tasks runs the track clustering pipeline with real-time progress reporting.
//
// # Stages
//
// [Pipeline.Run] executes four stages strictly in order:
//
//  1. [Collector] : Enumerate the user's track universe
//     - Paginates saved tracks and, optionally, every playlist's tracks
//     - Deduplicates by track id and skips local files
//     - Fetches audio features in batches of 100
//
//  2. features.Normalize : Project records onto the feature schema and min-max scale each column
//
//  3. cluster.Engine : Assign every track to one of k clusters with kmeans or agglomerative hierarchical clustering
//
//  4. [Assembler] : Group labelled tracks into clustered playlists
//     - Computes size and proportional size per cluster
//     - Fetches display metadata for the first five tracks of each cluster
//
// The artifacts are stored through an [ArtifactStore] only after every stage succeeded.
//
// # Deployment
//
// [Pipeline.Deploy] publishes one stored cluster as a new Spotify playlist through the [Deployer], adding tracks
// in batches of 100. [Pipeline.DeployAll] deploys every cluster with a rate-limited worker pool and can write a
// manifest of the created playlists.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Background Runs
//
// [JobRegistry] runs requests detached from the caller and keeps their latest status in memory for polling.
package tasks
