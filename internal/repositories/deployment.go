package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
)

const deploymentColumns = `id, sequence, clustering_id, user_id, cluster_id, playlist_id, playlist_url, track_count, created_at, updated_at, deleted_at`

// DeploymentRepository implements models.Repository[*models.Deployment] for playlists created from clusters.
type DeploymentRepository struct {
	db *sql.DB
}

// NewDeploymentRepository creates a new DeploymentRepository with the given database connection
func NewDeploymentRepository(db *sql.DB) *DeploymentRepository {
	return &DeploymentRepository{db: db}
}

// Create inserts a new deployment into the database with generated ID and sequence
func (r *DeploymentRepository) Create(deployment *models.Deployment) error {
	if err := deployment.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO deployments (
			id, sequence, clustering_id, user_id, cluster_id, playlist_id,
			playlist_url, track_count, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	sequence, err := insertSequenced(r.db, "deployments", func(tx *sql.Tx, sequence int) error {
		_, err := tx.Exec(query,
			id,
			sequence,
			deployment.ClusteringID(),
			deployment.UserID(),
			int(deployment.ClusterID()),
			deployment.PlaylistID(),
			deployment.PlaylistURL(),
			deployment.TrackCount(),
			deployment.CreatedAt(),
			deployment.UpdatedAt(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert deployment: %w", err)
	}

	deployment.SetID(id)
	deployment.SetSequence(sequence)
	return nil
}

// Get retrieves a deployment by ID, excluding soft-deleted deployments
func (r *DeploymentRepository) Get(id string) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = ? AND deleted_at IS NULL`
	return scanDeployment(r.db.QueryRow(query, id), id)
}

// Update is not supported; a deployment is an immutable record of a created playlist.
func (r *DeploymentRepository) Update(deployment *models.Deployment) error {
	return fmt.Errorf("%w: deployments are immutable", shared.ErrNotImplemented)
}

// Delete soft-deletes a deployment by ID
func (r *DeploymentRepository) Delete(id string) error {
	query := `
		UPDATE deployments
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}

	return requireRow(result, "deployment", id)
}

// List retrieves deployments matching "clustering_id" or "user_id", oldest first
func (r *DeploymentRepository) List(criteria map[string]any) ([]*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE deleted_at IS NULL`
	args := []any{}

	if clusteringID, ok := criteria["clustering_id"].(string); ok && clusteringID != "" {
		query += " AND clustering_id = ?"
		args = append(args, clusteringID)
	}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	defer rows.Close()

	var deployments []*models.Deployment
	for rows.Next() {
		deployment, err := scanDeployment(rows, "")
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, deployment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return deployments, nil
}

// ListByClustering retrieves every playlist created from a clustering run
func (r *DeploymentRepository) ListByClustering(clusteringID string) ([]*models.Deployment, error) {
	return r.List(map[string]any{"clustering_id": clusteringID})
}

func scanDeployment(row scanner, key string) (*models.Deployment, error) {
	var (
		id           string
		sequence     int
		clusteringID string
		userID       string
		clusterID    int
		playlistID   string
		playlistURL  string
		trackCount   int
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &clusteringID, &userID, &clusterID, &playlistID, &playlistURL, &trackCount, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: deployment %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan deployment: %w", err)
	}

	deployment := models.NewDeployment(sequence, clusteringID, userID, models.ClusterID(clusterID), playlistID, playlistURL, trackCount)
	deployment.SetID(id)
	deployment.SetCreatedAt(createdAt)
	deployment.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		deployment.SetDeletedAt(&deletedAt.Time)
	}

	return deployment, nil
}
