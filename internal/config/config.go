// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
	"github.com/JakeFAU/campground-crawler/internal/fetcher/dyrt"
	"github.com/JakeFAU/campground-crawler/internal/geo"
	"github.com/JakeFAU/campground-crawler/internal/logging"
	"github.com/JakeFAU/campground-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/campground-crawler/internal/scheduler"
	"github.com/JakeFAU/campground-crawler/internal/storage/gcs"
	"github.com/JakeFAU/campground-crawler/internal/storage/local"
	"github.com/JakeFAU/campground-crawler/internal/storage/postgres"
	"github.com/JakeFAU/campground-crawler/internal/storage/sqlite"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    logging.Config   `mapstructure:"logging"`
	Grid       GridConfig       `mapstructure:"grid"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Politeness PolitenessConfig `mapstructure:"politeness"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Store      StoreConfig      `mapstructure:"store"`
	PubSub     pubsub.Config    `mapstructure:"pubsub"`
	Schedule   scheduler.Config `mapstructure:"schedule"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StatsTTL        time.Duration `mapstructure:"stats_ttl"`
}

// GridConfig is the crawl universe and its partition.
type GridConfig struct {
	MinLng  float64 `mapstructure:"min_lng"`
	MinLat  float64 `mapstructure:"min_lat"`
	MaxLng  float64 `mapstructure:"max_lng"`
	MaxLat  float64 `mapstructure:"max_lat"`
	Columns int     `mapstructure:"columns"`
	Rows    int     `mapstructure:"rows"`
}

// Grid builds the partition.
func (g GridConfig) Grid() geo.Grid {
	return geo.Grid{
		Bound:   geo.NewBound(g.MinLng, g.MinLat, g.MaxLng, g.MaxLat),
		Columns: g.Columns,
		Rows:    g.Rows,
	}
}

// UpstreamConfig describes the search API.
type UpstreamConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	SiteURL     string        `mapstructure:"site_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	Referer     string        `mapstructure:"referer"`
	PageSize    int           `mapstructure:"page_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	SortOptions []string      `mapstructure:"sort_options"`
}

// PolitenessConfig holds every deliberate pause.
type PolitenessConfig struct {
	// ResponseDelay follows every successful response.
	ResponseDelay crawler.Jitter `mapstructure:"response_delay"`
	// PageDelay separates pages of one cell.
	PageDelay crawler.Jitter `mapstructure:"page_delay"`
	// CellDelay separates cells, scaled by 1±CellJitter.
	CellDelay     time.Duration `mapstructure:"cell_delay"`
	CellJitter    float64       `mapstructure:"cell_jitter"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffJitter time.Duration `mapstructure:"backoff_jitter"`
}

// CellDelayJitter returns the inter-cell pause range.
func (p PolitenessConfig) CellDelayJitter() crawler.Jitter {
	return crawler.Around(p.CellDelay, 1-p.CellJitter, 1+p.CellJitter)
}

// CrawlerConfig governs the driver and its request budget.
type CrawlerConfig struct {
	Workers int `mapstructure:"workers"`
	// RequestsPerSecond caps the aggregate request rate across workers.
	// Zero leaves only the politeness pauses in effect for a single worker;
	// with more workers it defaults to one request per mean page delay.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	FlushOnInterrupt  bool    `mapstructure:"flush_on_interrupt"`
	BatchSize         int     `mapstructure:"batch_size"`
}

// CheckpointConfig selects where the resume cursor lives.
type CheckpointConfig struct {
	Backend string       `mapstructure:"backend"`
	File    local.Config `mapstructure:"file"`
	GCS     gcs.Config   `mapstructure:"gcs"`
	Key     string       `mapstructure:"key"`
}

// StoreConfig selects where campgrounds are persisted.
type StoreConfig struct {
	Backend  string          `mapstructure:"backend"`
	SQLite   sqlite.Config   `mapstructure:"sqlite"`
	Postgres postgres.Config `mapstructure:"postgres"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CAMPCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Crawler.RequestsPerSecond = cfg.requestRate()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.stats_ttl", time.Minute)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")

	v.SetDefault("grid.min_lng", -125.0)
	v.SetDefault("grid.min_lat", 24.3963)
	v.SetDefault("grid.max_lng", -66.9346)
	v.SetDefault("grid.max_lat", 49.3844)
	v.SetDefault("grid.columns", 20)
	v.SetDefault("grid.rows", 25)

	v.SetDefault("upstream.base_url", dyrt.DefaultBaseURL)
	v.SetDefault("upstream.site_url", dyrt.DefaultSiteURL)
	v.SetDefault("upstream.user_agent", dyrt.DefaultUserAgent)
	v.SetDefault("upstream.referer", dyrt.DefaultReferer)
	v.SetDefault("upstream.page_size", dyrt.DefaultPageSize)
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.max_retries", crawler.DefaultMaxAttempts)
	v.SetDefault("upstream.sort_options", dyrt.DefaultSortOptions)

	v.SetDefault("politeness.response_delay.min", 500*time.Millisecond)
	v.SetDefault("politeness.response_delay.max", 1500*time.Millisecond)
	v.SetDefault("politeness.page_delay.min", 800*time.Millisecond)
	v.SetDefault("politeness.page_delay.max", 1200*time.Millisecond)
	v.SetDefault("politeness.cell_delay", time.Second)
	v.SetDefault("politeness.cell_jitter", 0.2)
	v.SetDefault("politeness.backoff_base", crawler.DefaultBaseDelay)
	v.SetDefault("politeness.backoff_jitter", crawler.DefaultMaxJitter)

	v.SetDefault("crawler.workers", 1)
	v.SetDefault("crawler.requests_per_second", 0)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("crawler.flush_on_interrupt", true)
	v.SetDefault("crawler.batch_size", crawler.DefaultBatchSize)

	v.SetDefault("checkpoint.backend", BackendFile)
	v.SetDefault("checkpoint.file.base_dir", ".")
	v.SetDefault("checkpoint.file.file_name", "grid_state_cache.json")
	v.SetDefault("checkpoint.gcs.bucket", "")
	v.SetDefault("checkpoint.gcs.object", gcs.DefaultObject)
	v.SetDefault("checkpoint.key", postgres.DefaultCheckpointKey)

	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.sqlite.path", "campgrounds.db")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.campground_table", "campgrounds")
	v.SetDefault("store.postgres.checkpoint_table", "crawl_checkpoints")
	v.SetDefault("store.postgres.max_conns", 4)
	v.SetDefault("store.postgres.min_conns", 0)
	v.SetDefault("store.postgres.max_conn_lifetime", time.Hour)

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.hour", 0)
	v.SetDefault("schedule.minute", 0)
	v.SetDefault("schedule.location", "UTC")
	v.SetDefault("schedule.run_on_start", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if err := c.Grid.Grid().Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url must be set")
	}
	if c.Upstream.PageSize <= 0 || c.Upstream.PageSize > dyrt.MaxPageSize {
		return fmt.Errorf("upstream.page_size must be between 1 and %d", dyrt.MaxPageSize)
	}
	if c.Upstream.MaxRetries <= 0 {
		return fmt.Errorf("upstream.max_retries must be > 0")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be > 0")
	}
	p := c.Politeness
	if p.ResponseDelay.Min < 0 || p.PageDelay.Min < 0 || p.CellDelay < 0 || p.BackoffBase < 0 || p.BackoffJitter < 0 {
		return fmt.Errorf("politeness delays must be >= 0")
	}
	if p.CellJitter < 0 || p.CellJitter >= 1 {
		return fmt.Errorf("politeness.cell_jitter must be in [0, 1)")
	}
	if c.Crawler.Workers < 1 || c.Crawler.Workers > crawler.MaxWorkers {
		return fmt.Errorf("crawler.workers must be between 1 and %d", crawler.MaxWorkers)
	}
	if c.Crawler.RequestsPerSecond < 0 {
		return fmt.Errorf("crawler.requests_per_second must be >= 0")
	}
	if c.Crawler.Workers > 1 {
		if c.Crawler.RequestsPerSecond == 0 {
			return fmt.Errorf("crawler.requests_per_second must be > 0 when crawler.workers > 1")
		}
		if limit := crawler.SequentialRate(p.PageDelay); limit > 0 && c.Crawler.RequestsPerSecond > limit {
			return fmt.Errorf("crawler.requests_per_second must be <= %g (one request per politeness.page_delay) when crawler.workers > 1", limit)
		}
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if err := c.validateBackends(); err != nil {
		return err
	}
	if c.Schedule.Enabled {
		if err := c.Schedule.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// requestRate fills in the aggregate request cap for concurrent crawls: when
// none is configured, workers share the cadence of a single sequential worker.
func (c Config) requestRate() float64 {
	if c.Crawler.Workers > 1 && c.Crawler.RequestsPerSecond == 0 {
		return crawler.SequentialRate(c.Politeness.PageDelay)
	}
	return c.Crawler.RequestsPerSecond
}

func (c Config) validateBackends() error {
	checkpoints := []string{BackendFile, BackendGCS, BackendPostgres, BackendSQLite, BackendMemory}
	if !slices.Contains(checkpoints, c.Checkpoint.Backend) {
		return fmt.Errorf("checkpoint.backend must be one of %s", strings.Join(checkpoints, ", "))
	}
	stores := []string{BackendSQLite, BackendPostgres, BackendMemory}
	if !slices.Contains(stores, c.Store.Backend) {
		return fmt.Errorf("store.backend must be one of %s", strings.Join(stores, ", "))
	}
	switch c.Checkpoint.Backend {
	case BackendFile:
		if c.Checkpoint.File.BaseDir == "" {
			return fmt.Errorf("checkpoint.file.base_dir must be set")
		}
	case BackendGCS:
		if c.Checkpoint.GCS.Bucket == "" {
			return fmt.Errorf("checkpoint.gcs.bucket must be set when checkpoint.backend is gcs")
		}
	}
	if c.usesPostgres() && c.Store.Postgres.DSN == "" {
		return fmt.Errorf("store.postgres.dsn must be set when a postgres backend is selected")
	}
	if c.usesSQLite() && c.Store.SQLite.Path == "" {
		return fmt.Errorf("store.sqlite.path must be set when a sqlite backend is selected")
	}
	return nil
}

func (c Config) usesPostgres() bool {
	return c.Store.Backend == BackendPostgres || c.Checkpoint.Backend == BackendPostgres
}

func (c Config) usesSQLite() bool {
	return c.Store.Backend == BackendSQLite || c.Checkpoint.Backend == BackendSQLite
}
