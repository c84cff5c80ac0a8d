package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/queue"
	"github.com/desertthunder/reelq/internal/repositories"
	"github.com/desertthunder/reelq/internal/services"
	"github.com/desertthunder/reelq/internal/shared"
	"github.com/desertthunder/reelq/internal/telemetry"
	"github.com/urfave/cli/v3"
)

// DeadLetterStore is the dead-letter log as seen by the CLI: recorded by the queue, browsed and requeued by users.
type DeadLetterStore interface {
	queue.DeadLetterSink
	List(ctx context.Context) ([]models.DeadLetter, error)
	Get(ctx context.Context, id string) (*models.DeadLetter, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (int, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies not supplied through [RunnerOpts] are built from the configuration the first time a command needs them.
type Runner struct {
	configPath  string
	config      *shared.Config
	queue       *queue.OfflineActionQueue
	deadLetters DeadLetterStore
	api         *services.APIService
	probe       *services.HealthProbe
	logger      *log.Logger
	output      io.Writer
	force       atomic.Bool
	opened      bool
	closers     []func(context.Context) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	Queue       *queue.OfflineActionQueue
	DeadLetters DeadLetterStore
	API         *services.APIService
	Probe       *services.HealthProbe
	Logger      *log.Logger
	Output      io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:      opts.Config,
		queue:       opts.Queue,
		deadLetters: opts.DeadLetters,
		api:         opts.API,
		probe:       opts.Probe,
		logger:      opts.Logger,
		output:      opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, queueCommand, watchlistCommand, daemonCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by the root --config flag unless one was injected.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")
	if r.config != nil {
		return ctx, nil
	}

	config, err := shared.LoadOrDefault(r.configPath)
	if err != nil {
		return ctx, err
	}
	r.config = config

	if lvl := cmd.String("log-level"); lvl != "" {
		shared.SetLogLevel(r.logger, shared.ParseLogLevel(lvl))
	} else if config.LogLevel != "" {
		shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.LogLevel))
	}
	return ctx, nil
}

// Close releases everything opened by [Runner.open], newest first.
func (r *Runner) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// SetLogger replaces the logger, e.g. to keep log lines out of the TUI.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// isOnline reports connectivity as seen by the queue. --force overrides the probe.
func (r *Runner) isOnline() bool {
	if r.force.Load() {
		return true
	}
	return r.probe != nil && r.probe.IsOnline()
}

// open builds the API client, probe, store, dead-letter log and queue from the configuration and initializes the queue.
func (r *Runner) open(ctx context.Context) error {
	if r.opened {
		return nil
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	cfg := r.config

	if cfg.Telemetry.Enabled {
		_, shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, os.Stderr)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, shutdown)
	}

	if r.api == nil {
		client := services.NewAuthenticatedClient(ctx, cfg.API.Token, cfg.Queue.ReplayTimeout)
		r.api = services.NewAPIService(cfg.API.BaseURL, client)
	}
	if r.probe == nil {
		r.probe = services.NewHealthProbe(
			r.api, cfg.API.HealthPath, cfg.Connectivity.ProbeInterval, cfg.Connectivity.ProbeTimeout,
			shared.WithLogger(r.logger, "component", "probe"),
		)
	}

	if r.queue == nil {
		store, deadLetters, err := r.openStore()
		if err != nil {
			return err
		}
		if r.deadLetters == nil {
			r.deadLetters = deadLetters
		}

		r.queue = queue.New(queue.Options{
			Store:         store,
			Replayer:      services.NewHTTPReplayer(r.api),
			Connectivity:  queue.OnlineFunc(r.isOnline),
			DeadLetters:   r.deadLetters,
			Logger:        r.logger,
			MaxRetries:    cfg.Queue.MaxRetries,
			ReplayTimeout: cfg.Queue.ReplayTimeout,
			RateLimit:     cfg.Queue.RateLimit,
			Burst:         cfg.Queue.Burst,
			LeaseTTL:      cfg.Queue.LeaseTTL,
		})
	}

	r.queue.Init(ctx)
	r.opened = true
	return nil
}

// openStore selects the storage backend named by [store] driver.
func (r *Runner) openStore() (queue.Store, DeadLetterStore, error) {
	cfg := r.config
	switch cfg.Store.Driver {
	case "redis":
		client := repositories.NewRedisClient(cfg.Redis)
		r.closers = append(r.closers, func(context.Context) error { return client.Close() })
		r.logger.Debug("using redis store", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
		return repositories.NewRedisActionStore(client, cfg.Redis.Prefix),
			repositories.NewRedisDeadLetterStore(client, cfg.Redis.Prefix), nil
	case "sqlite", "":
		db, err := shared.NewDatabase(cfg.Database.Path)
		if err != nil {
			// A nil store leaves the queue unavailable rather than failing every command.
			r.logger.Warn("queue storage unavailable", "path", cfg.Database.Path, "error", err)
			return nil, nil, nil
		}
		shared.ConfigureDatabase(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		r.closers = append(r.closers, func(context.Context) error { return db.Close() })
		r.logger.Debug("using sqlite store", "path", cfg.Database.Path)
		return repositories.NewActionRepository(db), repositories.NewDeadLetterRepository(db), nil
	}
	return nil, nil, fmt.Errorf("%w: unknown store driver %q", shared.ErrInvalidConfig, cfg.Store.Driver)
}

// requireQueue opens the queue and fails when its storage could not be initialized.
func (r *Runner) requireQueue(ctx context.Context) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	if !r.queue.Available(ctx) {
		return fmt.Errorf("%w: queue could not be initialized", shared.ErrStorageUnavailable)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
