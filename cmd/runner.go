package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/cluster"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/repositories"
	"github.com/desertthunder/radial/internal/services"
	"github.com/desertthunder/radial/internal/shared"
	"github.com/desertthunder/radial/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// ClientFactory returns a Spotify client acting on behalf of user.
type ClientFactory func(ctx context.Context, user *models.User) (tasks.SpotifyClient, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and the artifact store are opened on first use and closed by [Runner.Close].
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	newClient  ClientFactory

	db          *sql.DB
	store       *repositories.ArtifactStore
	users       *repositories.UserRepository
	clusterings *repositories.ClusteringRepository
	deployments *repositories.DeploymentRepository
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Client     ClientFactory

	// DB and Store replace the configured database and artifact store, mainly for tests.
	DB    *sql.DB
	Store *repositories.ArtifactStore
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		newClient:  opts.Client,
		store:      opts.Store,
	}
	if opts.DB != nil {
		r.setDB(opts.DB)
	}
	if r.newClient == nil {
		r.newClient = r.spotifyClient
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, clusterCommand, historyCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger of the runner.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the database and the artifact store.
func (r *Runner) Close() error {
	var err error
	if r.store != nil {
		err = r.store.Close()
		r.store = nil
	}
	if r.db != nil {
		if cerr := r.db.Close(); err == nil {
			err = cerr
		}
		r.db = nil
	}
	return err
}

func (r *Runner) setDB(db *sql.DB) {
	r.db = db
	r.users = repositories.NewUserRepository(db)
	r.clusterings = repositories.NewClusteringRepository(db)
	r.deployments = repositories.NewDeploymentRepository(db)
}

// openDatabase opens the configured database and brings its schema up to date.
func (r *Runner) openDatabase() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	r.setDB(db)
	return nil
}

// openStore opens the configured artifact store.
func (r *Runner) openStore() error {
	if r.store != nil {
		return nil
	}

	store, err := repositories.OpenArtifactStore(r.config.Storage.ArtifactsPath, r.config.Storage.InMemory, r.logger)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	r.store = store
	return nil
}

// user resolves spotifyID to a stored user, or the most recently active user when spotifyID is empty.
func (r *Runner) user(spotifyID string) (*models.User, error) {
	if err := r.openDatabase(); err != nil {
		return nil, err
	}
	if spotifyID == "" {
		return r.users.Latest()
	}

	user, err := r.users.GetBySpotifyID(spotifyID)
	if err != nil {
		return nil, fmt.Errorf("%w: run `radial auth login` first", err)
	}
	return user, nil
}

// spotifyClient authenticates a Spotify service with the stored token of user.
//
// Refreshed tokens are written back to the users table.
func (r *Runner) spotifyClient(ctx context.Context, user *models.User) (tasks.SpotifyClient, error) {
	token := user.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: no token stored for %s", shared.ErrNotAuthenticated, user.SpotifyID())
	}

	svc, err := r.newSpotifyService()
	if err != nil {
		return nil, err
	}

	svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
		user.SetToken(token)
		if err := r.users.Update(user); err != nil {
			r.logger.Warn("failed to persist refreshed token", "user", user.SpotifyID(), "error", err)
		}
	})

	if err := svc.OAuthenticate(ctx, token); err != nil {
		return nil, err
	}
	return svc, nil
}

func (r *Runner) newSpotifyService() (*services.SpotifyService, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	p := r.config.Pipeline
	return services.NewSpotifyService(r.config.Credentials.Spotify.Map(), services.SpotifyOpts{
		BaseURL:           p.APIBaseURL,
		MaxRetries:        p.MaxRetries,
		RetryWait:         p.RetryWait(),
		RetryMaxWait:      p.RetryMaxWait(),
		RequestsPerSecond: p.RequestsPerSecond,
		Logger:            r.logger,
	})
}

// pipeline builds a clustering pipeline for the stored user.
func (r *Runner) pipeline(ctx context.Context, user *models.User) (*tasks.Pipeline, error) {
	if err := r.openStore(); err != nil {
		return nil, err
	}

	linkage, err := cluster.ParseLinkage(r.config.Pipeline.Linkage)
	if err != nil {
		return nil, err
	}

	client, err := r.newClient(ctx, user)
	if err != nil {
		return nil, err
	}

	return tasks.NewPipeline(client, r.store, r.clusterings, r.deployments, tasks.PipelineOpts{
		AllowedClusters:  r.config.Pipeline.AllowedClusters,
		IncludePlaylists: r.config.Pipeline.IncludePlaylists,
		Linkage:          linkage,
		Logger:           r.logger,
	}), nil
}

// watchProgress logs updates until progress is closed; the returned channel closes after the last one.
func (r *Runner) watchProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if update.Total > 0 {
				r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
				continue
			}
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
