package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./radial.db" {
			t.Errorf("expected database path ./radial.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		want := []int{5, 9, 13}
		if len(config.Pipeline.AllowedClusters) != len(want) {
			t.Fatalf("expected allowed clusters %v, got %v", want, config.Pipeline.AllowedClusters)
		}
		for i, k := range want {
			if config.Pipeline.AllowedClusters[i] != k {
				t.Errorf("expected allowed clusters %v, got %v", want, config.Pipeline.AllowedClusters)
			}
		}

		if config.Pipeline.Linkage != "ward" {
			t.Errorf("expected ward linkage, got %s", config.Pipeline.Linkage)
		}

		if config.Pipeline.RetryWait().Milliseconds() != 500 {
			t.Errorf("expected 500ms retry wait, got %v", config.Pipeline.RetryWait())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/callback"

[pipeline]
allowed_clusters = [3, 4]
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if len(config.Pipeline.AllowedClusters) != 2 || config.Pipeline.AllowedClusters[1] != 4 {
			t.Errorf("expected allowed clusters [3 4], got %v", config.Pipeline.AllowedClusters)
		}

		if config.Pipeline.MaxRetries != 3 {
			t.Errorf("expected unset keys to keep defaults, got max_retries %d", config.Pipeline.MaxRetries)
		}
	})

	t.Run("LoadConfig Invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[database\npath ="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("RADIAL_SPOTIFY_CLIENT_ID", "env_client_id")
		t.Setenv("RADIAL_SERVER_PORT", "9999")
		t.Setenv("RADIAL_PIPELINE_ALLOWED_CLUSTERS", "2,3")

		config := DefaultConfig()
		if err := ApplyEnv(config); err != nil {
			t.Fatalf("failed to apply env: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env_client_id" {
			t.Errorf("expected client id from env, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Server.Port != 9999 {
			t.Errorf("expected port 9999, got %d", config.Server.Port)
		}
		if len(config.Pipeline.AllowedClusters) != 2 || config.Pipeline.AllowedClusters[0] != 2 {
			t.Errorf("expected allowed clusters [2 3], got %v", config.Pipeline.AllowedClusters)
		}
		if config.Database.Path != "./radial.db" {
			t.Errorf("expected untouched database path, got %s", config.Database.Path)
		}
	})

	t.Run("ApplyEnv With Dotenv File", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("RADIAL_LOG_LEVEL=debug\n"), 0644); err != nil {
			t.Fatalf("failed to write .env: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv("RADIAL_LOG_LEVEL") })

		config := DefaultConfig()
		if err := ApplyEnv(config, envPath, filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Fatalf("failed to apply env: %v", err)
		}

		if config.Log.Level != "debug" {
			t.Errorf("expected log level debug, got %s", config.Log.Level)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			mutate  func(c *Config)
			wantErr error
		}{
			{name: "defaults are valid", mutate: func(c *Config) {}},
			{
				name:    "missing secret",
				mutate:  func(c *Config) { c.Credentials.Spotify.ClientSecret = "" },
				wantErr: ErrMissingCredentials,
			},
			{
				name:    "empty cluster policy",
				mutate:  func(c *Config) { c.Pipeline.AllowedClusters = nil },
				wantErr: ErrInvalidConfig,
			},
			{
				name:    "cluster count below two",
				mutate:  func(c *Config) { c.Pipeline.AllowedClusters = []int{1, 5} },
				wantErr: ErrInvalidConfig,
			},
			{
				name:    "short session key",
				mutate:  func(c *Config) { c.Server.SessionKey = "hunter2" },
				wantErr: ErrInvalidConfig,
			},
			{
				name:   "long session key",
				mutate: func(c *Config) { c.Server.SessionKey = strings.Repeat("k", 32) },
			},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				err := config.Validate()
				if tt.wantErr == nil && err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			})
		}
	})
}
