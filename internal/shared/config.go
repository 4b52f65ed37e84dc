package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is prepended to every environment variable read by [ApplyEnv].
const EnvPrefix = "RADIAL_"

// Config represents the application configuration loaded from a TOML file.
//
// Values may be overridden from the environment (see [ApplyEnv]).
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Storage     StorageConfig     `toml:"storage"`
	Server      ServerConfig      `toml:"server"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	RedirectURI  string `toml:"redirect_uri" env:"SPOTIFY_REDIRECT_URI"`
}

// Map returns the credentials in the form accepted by the Spotify service constructor.
func (c SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"redirect_uri":  c.RedirectURI,
	}
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
}

// StorageConfig contains settings for the artifact store.
type StorageConfig struct {
	ArtifactsPath string `toml:"artifacts_path" env:"STORAGE_ARTIFACTS_PATH"`
	InMemory      bool   `toml:"in_memory" env:"STORAGE_IN_MEMORY"`
}

// ServerConfig contains HTTP server settings.
//
// SessionKey signs login cookies. When empty, serve uses a random key and sessions do not survive a restart.
type ServerConfig struct {
	Host          string `toml:"host" env:"SERVER_HOST"`
	Port          int    `toml:"port" env:"SERVER_PORT"`
	SessionKey    string `toml:"session_key" env:"SERVER_SESSION_KEY"`
	SecureCookies bool   `toml:"secure_cookies" env:"SERVER_SECURE_COOKIES"`
}

// PipelineConfig tunes the clustering pipeline and its API usage.
type PipelineConfig struct {
	APIBaseURL        string  `toml:"api_base_url" env:"PIPELINE_API_BASE_URL"`
	AllowedClusters   []int   `toml:"allowed_clusters" env:"PIPELINE_ALLOWED_CLUSTERS" envSeparator:","`
	IncludePlaylists  bool    `toml:"include_playlists" env:"PIPELINE_INCLUDE_PLAYLISTS"`
	MaxRetries        int     `toml:"max_retries" env:"PIPELINE_MAX_RETRIES"`
	RetryWaitMS       int     `toml:"retry_wait_ms" env:"PIPELINE_RETRY_WAIT_MS"`
	RetryMaxWaitMS    int     `toml:"retry_max_wait_ms" env:"PIPELINE_RETRY_MAX_WAIT_MS"`
	RequestsPerSecond float64 `toml:"requests_per_second" env:"PIPELINE_REQUESTS_PER_SECOND"`
	Linkage           string  `toml:"linkage" env:"PIPELINE_LINKAGE"`
	DeployWorkers     int     `toml:"deploy_workers" env:"PIPELINE_DEPLOY_WORKERS"`
}

// RetryWait returns the base backoff between retries.
func (p PipelineConfig) RetryWait() time.Duration {
	return time.Duration(p.RetryWaitMS) * time.Millisecond
}

// RetryMaxWait returns the upper bound on a single backoff.
func (p PipelineConfig) RetryMaxWait() time.Duration {
	return time.Duration(p.RetryMaxWaitMS) * time.Millisecond
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" env:"LOG_LEVEL"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads the given dotenv files (missing files are ignored) and then overrides config values
// from RADIAL_-prefixed environment variables.
func ApplyEnv(config *Config, dotenvFiles ...string) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: failed to load %s: %v", ErrInvalidConfig, f, err)
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ResolveConfig loads the config file at path when it exists, falls back to [DefaultConfig] otherwise,
// then applies .env and environment overrides.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := ApplyEnv(config, ".env"); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the values the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be set", ErrMissingCredentials)
	}
	if len(c.Pipeline.AllowedClusters) == 0 {
		return fmt.Errorf("%w: pipeline.allowed_clusters is empty", ErrInvalidConfig)
	}
	for _, k := range c.Pipeline.AllowedClusters {
		if k < 2 {
			return fmt.Errorf("%w: allowed cluster count %d is below 2", ErrInvalidConfig, k)
		}
	}
	if key := c.Server.SessionKey; key != "" && len(key) < 32 {
		return fmt.Errorf("%w: server.session_key must be at least 32 characters", ErrInvalidConfig)
	}
	return nil
}
