// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/api"
	"github.com/JakeFAU/campground-crawler/internal/campground"
	"github.com/JakeFAU/campground-crawler/internal/clock/system"
	"github.com/JakeFAU/campground-crawler/internal/config"
	"github.com/JakeFAU/campground-crawler/internal/crawler"
	"github.com/JakeFAU/campground-crawler/internal/dispatcher"
	"github.com/JakeFAU/campground-crawler/internal/fetcher/dyrt"
	"github.com/JakeFAU/campground-crawler/internal/id/uuid"
	"github.com/JakeFAU/campground-crawler/internal/policy/ratelimit"
	pubmemory "github.com/JakeFAU/campground-crawler/internal/publisher/memory"
	"github.com/JakeFAU/campground-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/campground-crawler/internal/scheduler"
	"github.com/JakeFAU/campground-crawler/internal/storage/gcs"
	"github.com/JakeFAU/campground-crawler/internal/storage/local"
	"github.com/JakeFAU/campground-crawler/internal/storage/memory"
	"github.com/JakeFAU/campground-crawler/internal/storage/postgres"
	"github.com/JakeFAU/campground-crawler/internal/storage/sqlite"
)

// App holds the shared, long-lived services. It is built once per command
// and closed when the command returns.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	clock       *system.Clock
	store       campground.Store
	checkpoints crawler.CheckpointStore
	publisher   crawler.Publisher
	dispatcher  *dispatcher.Dispatcher

	pool    *pgxpool.Pool
	db      *sql.DB
	closers []func() error
}

// New builds every service cfg selects. It fails fast when a backend cannot
// be reached, releasing whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (a *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a = &App{cfg: cfg, logger: logger, clock: system.New()}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	logger.Info("Initializing application services...")
	if err := a.openDatabases(ctx); err != nil {
		return a, err
	}
	if err := a.initStore(ctx); err != nil {
		return a, err
	}
	if err := a.initCheckpoints(ctx); err != nil {
		return a, err
	}
	if err := a.initPublisher(ctx); err != nil {
		return a, err
	}
	driver, err := a.newDriver()
	if err != nil {
		return a, err
	}
	a.dispatcher = dispatcher.New(driver, a.publisher, uuid.New(), cfg.PubSub.Topic, logger.Named("dispatcher"))
	logger.Info("Application services initialized",
		zap.String("store", cfg.Store.Backend),
		zap.String("checkpoint", cfg.Checkpoint.Backend),
		zap.Int("workers", cfg.Crawler.Workers),
	)
	return a, nil
}

func (a *App) openDatabases(ctx context.Context) error {
	uses := func(backend string) bool {
		return a.cfg.Store.Backend == backend || a.cfg.Checkpoint.Backend == backend
	}
	if uses(config.BackendPostgres) {
		pool, err := postgres.Connect(ctx, a.cfg.Store.Postgres)
		if err != nil {
			return fmt.Errorf("failed to initialize postgres: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
	}
	if uses(config.BackendSQLite) {
		db, err := sqlite.Open(ctx, a.cfg.Store.SQLite)
		if err != nil {
			return fmt.Errorf("failed to initialize sqlite: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
	}
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	logger := a.logger.Named("store")
	switch a.cfg.Store.Backend {
	case config.BackendPostgres:
		store, err := postgres.NewCampgroundStore(a.pool, a.cfg.Store.Postgres.CampgroundTable, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize campground store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		a.store = store
	case config.BackendSQLite:
		store, err := sqlite.NewCampgroundStore(ctx, a.db, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize campground store: %w", err)
		}
		a.store = store
	case config.BackendMemory:
		logger.Warn("Using in-memory campground store. Records are discarded on exit.")
		a.store = memory.NewCampgroundStore()
	default:
		return fmt.Errorf("unknown store backend: %s", a.cfg.Store.Backend)
	}
	return nil
}

func (a *App) initCheckpoints(ctx context.Context) error {
	cfg := a.cfg.Checkpoint
	switch cfg.Backend {
	case config.BackendFile:
		store, err := local.New(cfg.File)
		if err != nil {
			return fmt.Errorf("failed to initialize checkpoint file: %w", err)
		}
		a.logger.Info("Using file checkpoint", zap.String("path", store.Path()))
		a.checkpoints = store
	case config.BackendGCS:
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, cfg.GCS)
		if err != nil {
			return fmt.Errorf("failed to initialize gcs checkpoint: %w", err)
		}
		a.logger.Info("Using GCS checkpoint", zap.String("uri", store.URI()))
		a.checkpoints = store
	case config.BackendPostgres:
		store, err := postgres.NewCheckpointStore(a.pool, a.cfg.Store.Postgres.CheckpointTable, cfg.Key)
		if err != nil {
			return fmt.Errorf("failed to initialize postgres checkpoint: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		a.checkpoints = store
	case config.BackendSQLite:
		store, err := sqlite.NewCheckpointStore(ctx, a.db, cfg.Key)
		if err != nil {
			return fmt.Errorf("failed to initialize sqlite checkpoint: %w", err)
		}
		a.checkpoints = store
	case config.BackendMemory:
		a.logger.Warn("Using in-memory checkpoint. Progress is lost on exit.")
		a.checkpoints = memory.NewCheckpointStore()
	default:
		return fmt.Errorf("unknown checkpoint backend: %s", cfg.Backend)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.cfg.PubSub.Topic == "" {
		a.logger.Info("No Pub/Sub topic configured. Run events stay in process.")
		a.publisher = pubmemory.New()
		return nil
	}
	client, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to create pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	pub, err := pubsub.New(client, a.cfg.PubSub)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { pub.Close(); return nil })
	a.logger.Info("Publishing run events to Pub/Sub", zap.String("topic", a.cfg.PubSub.Topic))
	a.publisher = pub
	return nil
}

func (a *App) newDriver() (*crawler.Driver, error) {
	cfg := a.cfg
	fetcher, err := dyrt.New(dyrt.Config{
		BaseURL:       cfg.Upstream.BaseURL,
		SiteURL:       cfg.Upstream.SiteURL,
		UserAgent:     cfg.Upstream.UserAgent,
		Referer:       cfg.Upstream.Referer,
		PageSize:      cfg.Upstream.PageSize,
		Timeout:       cfg.Upstream.Timeout,
		SortOptions:   cfg.Upstream.SortOptions,
		ResponseDelay: cfg.Politeness.ResponseDelay,
	},
		dyrt.WithRateLimiter(ratelimit.New(ratelimit.Config{
			RPS:   cfg.Crawler.RequestsPerSecond,
			Burst: cfg.Crawler.Burst,
		})),
		dyrt.WithRetryPolicy(crawler.NewExponentialRetryPolicy(
			cfg.Upstream.MaxRetries, cfg.Politeness.BackoffBase, cfg.Politeness.BackoffJitter,
		)),
		dyrt.WithLogger(a.logger.Named("fetcher")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}
	sink := crawler.NewStoreSink(a.store, cfg.Crawler.BatchSize, a.logger.Named("sink"))
	return crawler.NewDriver(crawler.Config{
		Grid:              cfg.Grid.Grid(),
		Workers:           cfg.Crawler.Workers,
		PageDelay:         cfg.Politeness.PageDelay,
		CellDelay:         cfg.Politeness.CellDelayJitter(),
		RequestsPerSecond: cfg.Crawler.RequestsPerSecond,
		FlushOnInterrupt:  cfg.Crawler.FlushOnInterrupt,
	}, fetcher, a.checkpoints, sink, a.logger.Named("crawler"), crawler.WithClock(a.clock.Now))
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the campground store.
func (a *App) Store() campground.Store {
	return a.store
}

// Checkpoints returns the cursor store.
func (a *App) Checkpoints() crawler.CheckpointStore {
	return a.checkpoints
}

// Dispatcher returns the single-flight crawl runner.
func (a *App) Dispatcher() *dispatcher.Dispatcher {
	return a.dispatcher
}

// NewScheduler builds the daily trigger over the dispatcher.
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(a.cfg.Schedule, a.dispatcher, a.clock, a.logger.Named("scheduler"))
}

// NewServer builds the HTTP API. schedule may be nil.
func (a *App) NewServer(schedule *scheduler.Scheduler) *api.Server {
	deps := api.Deps{
		Campgrounds: a.store,
		Crawls:      a.dispatcher,
		Ready:       a.Ready,
		StatsTTL:    a.cfg.Server.StatsTTL,
	}
	if schedule != nil {
		deps.Schedule = schedule
	}
	return api.NewServer(deps, a.logger.Named("api"))
}

// Ready pings the databases in use.
func (a *App) Ready(ctx context.Context) error {
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
	}
	return nil
}

// Close releases every opened resource in reverse order.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("Error closing application services", zap.Error(err))
	}
}
