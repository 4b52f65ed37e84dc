package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
)

var (
	_ models.Repository[*models.User]       = (*UserRepository)(nil)
	_ models.Repository[*models.Clustering] = (*ClusteringRepository)(nil)
	_ models.Repository[*models.Deployment] = (*DeploymentRepository)(nil)
)

// sequenced lists the tables that own a <table>_sequence counter.
var sequenced = map[string]string{
	"users":       "UPDATE users_sequence SET value = value + 1 WHERE id = 1 RETURNING value",
	"clusterings": "UPDATE clusterings_sequence SET value = value + 1 WHERE id = 1 RETURNING value",
	"deployments": "UPDATE deployments_sequence SET value = value + 1 WHERE id = 1 RETURNING value",
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// queryRower is satisfied by both [sql.DB] and [sql.Tx].
type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence increments and returns the sequence counter of table.
//
// Sequence numbers order rows for humans (user #42, clustering #15) and are never shown as identifiers.
func NextSequence(q queryRower, table string) (int, error) {
	stmt, ok := sequenced[table]
	if !ok {
		return 0, fmt.Errorf("%w: table %q has no sequence", shared.ErrInvalidArgument, table)
	}

	var sequence int
	if err := q.QueryRow(stmt).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment %s sequence: %w", table, err)
	}
	return sequence, nil
}

// insertSequenced allocates the next sequence of table and runs insert with it in one transaction.
// A failed insert leaves the counter untouched.
func insertSequenced(db *sql.DB, table string, insert func(tx *sql.Tx, sequence int) error) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(tx, table)
	if err != nil {
		return 0, err
	}
	if err := insert(tx, sequence); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s insert: %w", table, err)
	}
	return sequence, nil
}

// requireRow fails with [shared.ErrNotFound] when an update or delete matched nothing.
func requireRow(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s not found or already deleted", shared.ErrNotFound, kind, id)
	}
	return nil
}
