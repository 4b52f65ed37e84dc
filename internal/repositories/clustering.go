package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
)

const clusteringColumns = `id, sequence, user_id, algorithm, clusters, track_count, dropped_count, created_at, updated_at, deleted_at`

// ClusteringRepository implements models.Repository[*models.Clustering] for the run history.
//
// Handles clustering CRUD operations with soft delete support and per-user queries.
type ClusteringRepository struct {
	db *sql.DB
}

// NewClusteringRepository creates a new ClusteringRepository with the given database connection
func NewClusteringRepository(db *sql.DB) *ClusteringRepository {
	return &ClusteringRepository{db: db}
}

// Create inserts a clustering with a generated sequence. The ID is generated unless the caller already set one,
// so that the record can share the id of the stored artifacts.
func (r *ClusteringRepository) Create(clustering *models.Clustering) error {
	if err := clustering.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	if clustering.ID() == "" {
		clustering.SetID(shared.GenerateID())
	}

	query := `
		INSERT INTO clusterings (
			id, sequence, user_id, algorithm, clusters, track_count,
			dropped_count, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	sequence, err := insertSequenced(r.db, "clusterings", func(tx *sql.Tx, sequence int) error {
		_, err := tx.Exec(query,
			clustering.ID(),
			sequence,
			clustering.UserID(),
			clustering.Algorithm(),
			clustering.Clusters(),
			clustering.TrackCount(),
			clustering.DroppedCount(),
			clustering.CreatedAt(),
			clustering.UpdatedAt(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert clustering: %w", err)
	}

	clustering.SetSequence(sequence)
	return nil
}

// Get retrieves a clustering by ID, excluding soft-deleted clusterings
func (r *ClusteringRepository) Get(id string) (*models.Clustering, error) {
	query := `SELECT ` + clusteringColumns + ` FROM clusterings WHERE id = ? AND deleted_at IS NULL`
	return scanClustering(r.db.QueryRow(query, id), id)
}

// Update modifies the counts of an existing clustering
func (r *ClusteringRepository) Update(clustering *models.Clustering) error {
	if err := clustering.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	now := time.Now()
	clustering.SetUpdatedAt(now)

	query := `
		UPDATE clusterings
		SET track_count = ?, dropped_count = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, clustering.TrackCount(), clustering.DroppedCount(), now, clustering.ID())
	if err != nil {
		return fmt.Errorf("failed to update clustering: %w", err)
	}

	return requireRow(result, "clustering", clustering.ID())
}

// Delete soft-deletes a clustering by ID
func (r *ClusteringRepository) Delete(id string) error {
	query := `
		UPDATE clusterings
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete clustering: %w", err)
	}

	return requireRow(result, "clustering", id)
}

// List retrieves all clusterings matching the given criteria, newest first, excluding soft-deleted clusterings
//
// Supported criteria are "user_id", "algorithm" and "limit".
func (r *ClusteringRepository) List(criteria map[string]any) ([]*models.Clustering, error) {
	query := `SELECT ` + clusteringColumns + ` FROM clusterings WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	if algorithm, ok := criteria["algorithm"].(string); ok && algorithm != "" {
		query += " AND algorithm = ?"
		args = append(args, algorithm)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusterings: %w", err)
	}
	defer rows.Close()

	var clusterings []*models.Clustering
	for rows.Next() {
		clustering, err := scanClustering(rows, "")
		if err != nil {
			return nil, err
		}
		clusterings = append(clusterings, clustering)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return clusterings, nil
}

// ListByUser retrieves the most recent clusterings of a user
func (r *ClusteringRepository) ListByUser(userID string, limit int) ([]*models.Clustering, error) {
	return r.List(map[string]any{"user_id": userID, "limit": limit})
}

// scanClustering scans a single row into a [models.Clustering]
func scanClustering(row scanner, key string) (*models.Clustering, error) {
	var (
		id           string
		sequence     int
		userID       string
		algorithm    string
		clusters     int
		trackCount   int
		droppedCount int
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &userID, &algorithm, &clusters, &trackCount, &droppedCount, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: clustering %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan clustering: %w", err)
	}

	clustering := models.NewClustering(sequence, userID, algorithm, clusters)
	clustering.SetID(id)
	clustering.SetTrackCount(trackCount)
	clustering.SetDroppedCount(droppedCount)
	clustering.SetCreatedAt(createdAt)
	clustering.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		clustering.SetDeletedAt(&deletedAt.Time)
	}

	return clustering, nil
}
