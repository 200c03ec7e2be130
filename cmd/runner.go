package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mlsync/internal/cache"
	"github.com/desertthunder/mlsync/internal/repositories"
	"github.com/desertthunder/mlsync/internal/services"
	"github.com/desertthunder/mlsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// storeFileName is the SQLite database inside the store directory.
const storeFileName = "store.db"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	tracking   services.TrackingService
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Tracking   services.TrackingService // Overrides the URI resolution when set
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

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		tracking:   opts.Tracking,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, syncCommand, experimentsCommand, recordsCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// resolveTracking returns the injected tracking service, or builds a client
// from the command line, environment and config file.
func (r *Runner) resolveTracking(cmd *cli.Command) (services.TrackingService, error) {
	if r.tracking != nil {
		return r.tracking, nil
	}

	uri, err := shared.ResolveTrackingURI(cmd.String("tracking-uri"), r.config)
	if err != nil {
		return nil, err
	}

	return services.NewMLflowService(uri, services.MLflowOpts{
		RateLimit: r.config.Tracking.RateLimit,
		Timeout:   time.Duration(r.config.Tracking.TimeoutSeconds) * time.Second,
	}), nil
}

// storeDir returns the destination store directory, preferring the --store flag.
func (r *Runner) storeDir(cmd *cli.Command) string {
	if dir := cmd.String("store"); dir != "" {
		return dir
	}
	return r.config.Store.Path
}

// openStore opens (and migrates) the destination store. The returned cleanup
// closes the database.
func (r *Runner) openStore(cmd *cli.Command) (*repositories.RecordRepository, func(), error) {
	dir := r.storeDir(cmd)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := shared.NewDatabase(filepath.Join(dir, storeFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Store.MaxOpenConns, r.config.Store.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repositories.NewRecordRepository(db), func() { db.Close() }, nil
}

// openCache opens the run cache that lives alongside the store database.
func (r *Runner) openCache(cmd *cli.Command) (*cache.RunCache, error) {
	return cache.Open(r.storeDir(cmd), cmd.Bool("no-cache"), r.logger)
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
