package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
	"github.com/dgraph-io/badger/v4"
)

// Artifact document names, stored under "<user>/<name>".
const (
	ClusteredPlaylistsKey = "clustered_playlists.json"
	DisplayableDataKey    = "displayable_data.json"
	LabelledTracksKey     = "labelled_tracks.json"
	metaKey               = "meta.json"
)

// artifactMeta is the run summary stored next to the artifact documents.
type artifactMeta struct {
	ClusteringID string    `json:"clustering_id"`
	Algorithm    string    `json:"algorithm"`
	Clusters     int       `json:"clusters"`
	SavedAt      time.Time `json:"saved_at"`
}

// ArtifactStore keeps the latest clustering artifacts of each user in a BadgerDB key-value store.
//
// A save replaces all documents of the user in one transaction, so readers see either the previous run or the new
// one, never a mix.
type ArtifactStore struct {
	db     *badger.DB
	logger *log.Logger
}

// OpenArtifactStore opens (or creates) the store at path. An in-memory store ignores path.
func OpenArtifactStore(path string, inMemory bool, logger *log.Logger) (*ArtifactStore, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	return &ArtifactStore{db: db, logger: logger}, nil
}

// Close flushes and closes the underlying database.
func (s *ArtifactStore) Close() error {
	return s.db.Close()
}

func artifactKey(userID, name string) []byte {
	return []byte(userID + "/" + name)
}

// SaveArtifacts writes the three artifact documents and the run summary for userID.
func (s *ArtifactStore) SaveArtifacts(userID string, artifacts *models.Artifacts) error {
	if userID == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	if artifacts == nil {
		return fmt.Errorf("%w: artifacts", shared.ErrMissingArgument)
	}

	docs := map[string]any{
		ClusteredPlaylistsKey: artifacts.Playlists,
		DisplayableDataKey:    artifacts.Display,
		LabelledTracksKey:     artifacts.Labelled,
		metaKey: artifactMeta{
			ClusteringID: artifacts.ClusteringID,
			Algorithm:    artifacts.Algorithm,
			Clusters:     artifacts.Clusters,
			SavedAt:      time.Now().UTC(),
		},
	}

	encoded := make(map[string][]byte, len(docs))
	for name, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		encoded[name] = data
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for name, data := range encoded {
			if err := txn.Set(artifactKey(userID, name), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write artifacts for %s: %w", userID, err)
	}

	s.logger.Debug("artifacts saved", "user", userID, "clustering", artifacts.ClusteringID)
	return nil
}

// LoadArtifacts reads the latest artifacts of userID. A user without a stored run yields [shared.ErrNotFound].
func (s *ArtifactStore) LoadArtifacts(userID string) (*models.Artifacts, error) {
	var (
		meta      artifactMeta
		artifacts = &models.Artifacts{UserID: userID}
	)

	targets := map[string]any{
		metaKey:               &meta,
		ClusteredPlaylistsKey: &artifacts.Playlists,
		DisplayableDataKey:    &artifacts.Display,
		LabelledTracksKey:     &artifacts.Labelled,
	}

	err := s.db.View(func(txn *badger.Txn) error {
		for name, target := range targets {
			item, err := txn.Get(artifactKey(userID, name))
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, target)
			}); err != nil {
				return fmt.Errorf("failed to decode %s: %w", name, err)
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: no clustering results for %s", shared.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifacts for %s: %w", userID, err)
	}

	artifacts.ClusteringID = meta.ClusteringID
	artifacts.Algorithm = meta.Algorithm
	artifacts.Clusters = meta.Clusters
	return artifacts, nil
}

// DeleteArtifacts removes every stored document of userID.
func (s *ArtifactStore) DeleteArtifacts(userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, name := range []string{metaKey, ClusteredPlaylistsKey, DisplayableDataKey, LabelledTracksKey} {
			if err := txn.Delete(artifactKey(userID, name)); err != nil {
				return err
			}
		}
		return nil
	})
}
