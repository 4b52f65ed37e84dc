package repositories

import (
	"errors"
	"testing"

	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
	th "github.com/desertthunder/radial/internal/testing"
)

func TestUserRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := th.MemoryDB(t)

			repo := NewUserRepository(db)
			user := models.NewUser(0, "", "Test User")

			err := repo.Create(user)
			if !errors.Is(err, shared.ErrValidation) {
				t.Fatalf("expected validation error for empty spotify id, got %v", err)
			}
		})

		t.Run("DuplicateSpotifyID", func(t *testing.T) {
			db := th.MemoryDB(t)

			repo := NewUserRepository(db)
			if err := repo.Create(models.NewUser(0, "spotify-user", "User One")); err != nil {
				t.Fatalf("failed to create first user: %v", err)
			}

			if err := repo.Create(models.NewUser(0, "spotify-user", "User Two")); err == nil {
				t.Fatal("expected error when creating user with duplicate spotify id")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := th.MemoryDB(t)

			repo := NewUserRepository(db)

			_, err := repo.Get("nonexistent-id")
			if !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("Latest", func(t *testing.T) {
		t.Run("NoUsers", func(t *testing.T) {
			db := th.MemoryDB(t)

			_, err := NewUserRepository(db).Latest()
			if !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := th.MemoryDB(t)

			repo := NewUserRepository(db)
			user := models.NewUser(0, "spotify-user", "Test User")
			user.SetID("nonexistent-id")

			if err := repo.Update(user); !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("AlreadyDeleted", func(t *testing.T) {
			db := th.MemoryDB(t)

			repo := NewUserRepository(db)
			user := models.NewUser(0, "spotify-user", "Test User")
			if err := repo.Create(user); err != nil {
				t.Fatalf("failed to create user: %v", err)
			}
			if err := repo.Delete(user.ID()); err != nil {
				t.Fatalf("failed to delete user: %v", err)
			}

			if err := repo.Delete(user.ID()); !errors.Is(err, shared.ErrNotFound) {
				t.Fatalf("expected ErrNotFound on second delete, got %v", err)
			}
		})
	})
}

func TestClusteringRepositoryErrors(t *testing.T) {
	tests := []struct {
		name       string
		clustering *models.Clustering
	}{
		{name: "MissingUser", clustering: models.NewClustering(0, "", "kmeans", 5)},
		{name: "MissingAlgorithm", clustering: models.NewClustering(0, "spotify-user", "", 5)},
		{name: "TooFewClusters", clustering: models.NewClustering(0, "spotify-user", "kmeans", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := th.MemoryDB(t)

			err := NewClusteringRepository(db).Create(tt.clustering)
			if !errors.Is(err, shared.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	t.Run("DuplicateID", func(t *testing.T) {
		db := th.MemoryDB(t)

		repo := NewClusteringRepository(db)
		for i := range 2 {
			clustering := models.NewClustering(0, "spotify-user", "kmeans", 5)
			clustering.SetID("run-id")
			err := repo.Create(clustering)
			if i == 1 && err == nil {
				t.Fatal("expected error when reusing a clustering id")
			}
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		db := th.MemoryDB(t)

		if _, err := NewClusteringRepository(db).Get("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeploymentRepositoryErrors(t *testing.T) {
	t.Run("UnknownClustering", func(t *testing.T) {
		db := th.MemoryDB(t)

		deployment := models.NewDeployment(0, "missing", "spotify-user", 0, "pl1", "url", 3)
		if err := NewDeploymentRepository(db).Create(deployment); err == nil {
			t.Fatal("expected foreign key error for unknown clustering")
		}
	})

	t.Run("MissingPlaylist", func(t *testing.T) {
		db := th.MemoryDB(t)

		deployment := models.NewDeployment(0, "run", "spotify-user", 0, "", "", 3)
		if err := NewDeploymentRepository(db).Create(deployment); !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("UpdateUnsupported", func(t *testing.T) {
		db := th.MemoryDB(t)

		deployment := models.NewDeployment(0, "run", "spotify-user", 0, "pl1", "url", 3)
		if err := NewDeploymentRepository(db).Update(deployment); !errors.Is(err, shared.ErrNotImplemented) {
			t.Fatalf("expected ErrNotImplemented, got %v", err)
		}
	})
}
