package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/soundshelf/soundshelf/internal/auth"
	"github.com/soundshelf/soundshelf/internal/cache"
	"github.com/soundshelf/soundshelf/internal/discover"
	"github.com/soundshelf/soundshelf/internal/shared"
	"github.com/soundshelf/soundshelf/internal/spotify"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	manager    *auth.Manager
	client     *spotify.Client
	discover   *discover.Service
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
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
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	manager := auth.NewManager(opts.Config.Credentials.Spotify, auth.Options{
		HTTPClient: opts.HTTPClient,
		Logger:     opts.Logger,
	})
	client := spotify.NewClient(manager, spotify.ClientOptions{
		HTTPClient: opts.HTTPClient,
		Logger:     opts.Logger,
	})

	return &Runner{
		config:     opts.Config,
		manager:    manager,
		client:     client,
		discover:   discover.NewService(cache.NewStore(), opts.Logger),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, authCommand, searchCommand, trendingCommand, releasesCommand, recommendCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// reloadConfig swaps in the config at path, rebuilding the manager and client
// around the new credentials.
func (r *Runner) reloadConfig(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		r.logger.Warn("config file not found, using defaults", "path", path)
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}

	r.config = config
	r.manager = auth.NewManager(config.Credentials.Spotify, auth.Options{
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})
	r.client = spotify.NewClient(r.manager, spotify.ClientOptions{
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})
	return nil
}

// openSessionStore opens the sqlite-backed session store used by one-shot
// commands. The caller closes the returned database.
func (r *Runner) openSessionStore() (*auth.SQLiteStore, *sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return auth.NewSQLiteStore(db, "default"), db, nil
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

func (r *Runner) writeAlbums(albums []discover.Album) {
	for i, a := range albums {
		r.writePlain("%d. %s - %s\n", i+1, a.Artist, a.Title)
	}
}
