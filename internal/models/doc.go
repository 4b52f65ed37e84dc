// Package models defines domain entities and persistence interfaces for the radial clustering service.
//
// The package contains three categories of types:
//
// 1. Pipeline data: values passed between the clustering stages
//   - [FeatureSchema] : Ordered, named audio feature columns
//   - [TrackFeatures] : One track's feature vector
//   - [FeatureMatrix] : Normalized matrix with row-aligned track ids
//   - [LabelledTrack] : A track and its cluster label
//
// 2. Pipeline output: JSON documents stored between requests
//   - [ClusteredPlaylists] : Cluster id to [ClusteredPlaylist]
//   - [DisplayableData] : Cluster id to preview track metadata
//   - [Artifacts] : Both documents plus the labelled tracks of one run
//
// Cluster ids are integers in memory ([ClusterID]) and become string keys only when encoded.
// Decoding always normalizes keys back to integers, and Lookup accepts either form.
//
// 3. Persistent entities: database-backed models with full lifecycle management
//   - [User] : Spotify account with OAuth tokens
//   - [Clustering] : A completed pipeline run
//   - [Deployment] : A playlist created from one cluster
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
