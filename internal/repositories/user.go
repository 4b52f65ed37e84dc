package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
	"golang.org/x/oauth2"
)

const userColumns = `id, sequence, spotify_id, display_name, access_token, refresh_token, token_expiry, created_at, updated_at, deleted_at`

// UserRepository implements [models.Repository] for user [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO users (id, sequence, spotify_id, display_name, access_token, refresh_token, token_expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	sequence, err := insertSequenced(r.db, "users", func(tx *sql.Tx, sequence int) error {
		_, err := tx.Exec(query,
			id, sequence, user.SpotifyID(), user.DisplayName(), user.AccessToken(), user.RefreshToken(),
			user.TokenExpiry(), user.CreatedAt(), user.UpdatedAt(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.SetID(id)
	user.SetSequence(sequence)
	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`
	return scanUser(r.db.QueryRow(query, id), id)
}

// GetBySpotifyID retrieves a user by their Spotify account id
func (r *UserRepository) GetBySpotifyID(spotifyID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE spotify_id = ? AND deleted_at IS NULL`
	return scanUser(r.db.QueryRow(query, spotifyID), spotifyID)
}

// Latest retrieves the most recently updated user, the default account for CLI commands.
func (r *UserRepository) Latest() (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL ORDER BY updated_at DESC, sequence DESC LIMIT 1`
	user, err := scanUser(r.db.QueryRow(query), "")
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: no authenticated user, run `radial auth login`", shared.ErrNotFound)
	}
	return user, err
}

// Save creates the user or, when the Spotify id is already known, updates its name and tokens.
func (r *UserRepository) Save(user *models.User) error {
	existing, err := r.GetBySpotifyID(user.SpotifyID())
	if errors.Is(err, shared.ErrNotFound) {
		return r.Create(user)
	}
	if err != nil {
		return err
	}

	existing.SetDisplayName(user.DisplayName())
	existing.SetToken(user.Token())
	if err := r.Update(existing); err != nil {
		return err
	}

	user.SetID(existing.ID())
	user.SetSequence(existing.Sequence())
	user.SetCreatedAt(existing.CreatedAt())
	user.SetUpdatedAt(existing.UpdatedAt())
	user.SetToken(existing.Token())
	return nil
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	now := time.Now()
	user.SetUpdatedAt(now)

	query := `
		UPDATE users
		SET display_name = ?, access_token = ?, refresh_token = ?, token_expiry = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, user.DisplayName(), user.AccessToken(), user.RefreshToken(), user.TokenExpiry(), now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return requireRow(result, "user", user.ID())
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	query := `
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return requireRow(result, "user", id)
}

// List retrieves all users matching the given criteria, excluding soft-deleted users
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := []any{}

	if spotifyID, ok := criteria["spotify_id"].(string); ok && spotifyID != "" {
		query += " AND spotify_id = ?"
		args = append(args, spotifyID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows, "")
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// scanUser scans a single row into a [models.User]; key names the lookup in not-found errors.
func scanUser(row scanner, key string) (*models.User, error) {
	var (
		id           string
		sequence     int
		spotifyID    string
		displayName  string
		accessToken  string
		refreshToken string
		tokenExpiry  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &spotifyID, &displayName, &accessToken, &refreshToken, &tokenExpiry, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user := models.NewUser(sequence, spotifyID, displayName)
	user.SetID(id)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	token := &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken}
	if tokenExpiry.Valid {
		token.Expiry = tokenExpiry.Time
	}
	user.SetToken(token)
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}

	return user, nil
}
