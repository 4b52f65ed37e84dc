// Package repositories implements persistence for users, clustering runs and their artifacts.
//
// SQLite repositories handle CRUD operations with atomic sequence generation for human-readable ordering.
// All of them support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [UserRepository] : Spotify accounts and their OAuth tokens
//   - [ClusteringRepository] : History of completed clustering runs
//   - [DeploymentRepository] : Playlists created from clusters
//   - [ArtifactStore] : BadgerDB documents holding the latest run of each user
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, clustering #15) independent of UUIDs and creation timestamps.
// Inserts allocate their sequence with [NextSequence] inside the insert transaction, so a failed insert does not consume one.
package repositories
