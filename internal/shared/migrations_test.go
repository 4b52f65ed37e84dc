package shared

import (
	"errors"
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) != 3 {
			t.Fatalf("expected 3 migrations, got %d", len(migrations))
		}

		for i, m := range migrations {
			if m.Version != i {
				t.Errorf("expected version %d at index %d, got %d", i, i, m.Version)
			}
			if m.Name == "" || m.Up == "" || m.Down == "" {
				t.Errorf("migration %s is incomplete", m)
			}
		}

		if got := migrations[1].String(); got != "0001_create_clusterings" {
			t.Errorf("expected 0001_create_clusterings, got %s", got)
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(MemoryDatabase)
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		for _, table := range []string{"users", "clusterings", "deployments"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		version, err := SchemaVersion(db)
		if err != nil {
			t.Fatalf("failed to read schema version: %v", err)
		}
		if version != 2 {
			t.Errorf("expected schema version 2, got %d", version)
		}

		m, err := RollbackMigration(db)
		if err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if m.Version != 2 || m.Name != "create_deployments" {
			t.Errorf("expected to roll back 0002_create_deployments, got %s", m)
		}
		if _, err := db.Exec("SELECT 1 FROM deployments LIMIT 1"); err == nil {
			t.Error("deployments table should be dropped after rollback")
		}

		if version, _ := SchemaVersion(db); version != 1 {
			t.Errorf("expected schema version 1 after rollback, got %d", version)
		}
	})

	t.Run("Rollback Everything", func(t *testing.T) {
		db, err := OpenDatabase(DatabaseConfig{Path: MemoryDatabase})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		for range 3 {
			if _, err := RollbackMigration(db); err != nil {
				t.Fatalf("failed to rollback migration: %v", err)
			}
		}

		if _, err := RollbackMigration(db); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on an empty schema, got %v", err)
		}
		if version, _ := SchemaVersion(db); version != -1 {
			t.Errorf("expected schema version -1, got %d", version)
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := OpenDatabase(DatabaseConfig{Path: MemoryDatabase})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		applied, err := AppliedMigrations(db)
		if err != nil {
			t.Fatalf("failed to list migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if len(applied) != len(migrations) {
			t.Fatalf("expected %d migrations to be applied, got %d", len(migrations), len(applied))
		}
		for i, a := range applied {
			if a.Name != migrations[i].Name {
				t.Errorf("expected %s recorded at %d, got %s", migrations[i].Name, i, a.Name)
			}
			if a.AppliedAt.IsZero() {
				t.Errorf("migration %d has no applied_at", a.Version)
			}
		}
	})
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{"empty", "", 0},
		{"comments only", "-- nothing here\n-- or here\n", 0},
		{"single", "CREATE TABLE a (id INTEGER);", 1},
		{"trailing comment", "CREATE TABLE a (id INTEGER); -- first\nCREATE INDEX i ON a (id);\n", 2},
		{"no final semicolon", "DROP TABLE a;\nDROP TABLE b", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitStatements(tt.script); len(got) != tt.want {
				t.Errorf("expected %d statements, got %d: %q", tt.want, len(got), got)
			}
		})
	}
}

func TestNewDatabase(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		if _, err := NewDatabase(""); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("foreign keys enforced", func(t *testing.T) {
		db, err := NewDatabase(MemoryDatabase)
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		var enabled int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
			t.Fatalf("failed to read pragma: %v", err)
		}
		if enabled != 1 {
			t.Errorf("expected foreign_keys on, got %d", enabled)
		}
	})

	t.Run("memory database uses one connection", func(t *testing.T) {
		db, err := NewDatabase(MemoryDatabase)
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("expected 1 open connection, got %d", got)
		}
	})

	t.Run("file database", func(t *testing.T) {
		db, err := OpenDatabase(DatabaseConfig{Path: t.TempDir() + "/radial.db", MaxOpenConns: 4, MaxIdleConns: 2})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if got := db.Stats().MaxOpenConnections; got != 4 {
			t.Errorf("expected 4 open connections, got %d", got)
		}

		var mode string
		if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("failed to read pragma: %v", err)
		}
		if mode != "wal" {
			t.Errorf("expected wal journal mode, got %s", mode)
		}
	})
}
