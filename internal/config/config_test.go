package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
	"github.com/JakeFAU/campground-crawler/internal/fetcher/dyrt"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Grid.Columns)
	assert.Equal(t, 25, cfg.Grid.Rows)
	assert.InDelta(t, -125.0, cfg.Grid.MinLng, 1e-9)
	assert.InDelta(t, 49.3844, cfg.Grid.MaxLat, 1e-9)
	assert.Equal(t, 500, cfg.Upstream.PageSize)
	assert.Equal(t, 5, cfg.Upstream.MaxRetries)
	assert.Equal(t, dyrt.DefaultSortOptions, cfg.Upstream.SortOptions)
	assert.Equal(t, crawler.Jitter{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond}, cfg.Politeness.ResponseDelay)
	assert.Equal(t, crawler.Jitter{Min: 800 * time.Millisecond, Max: 1200 * time.Millisecond}, cfg.Politeness.PageDelay)
	cell := cfg.Politeness.CellDelayJitter()
	assert.InDelta(t, float64(800*time.Millisecond), float64(cell.Min), float64(time.Microsecond))
	assert.InDelta(t, float64(1200*time.Millisecond), float64(cell.Max), float64(time.Microsecond))
	assert.Equal(t, 1, cfg.Crawler.Workers)
	assert.True(t, cfg.Crawler.FlushOnInterrupt)
	assert.Equal(t, BackendFile, cfg.Checkpoint.Backend)
	assert.Equal(t, "grid_state_cache.json", cfg.Checkpoint.File.FileName)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.False(t, cfg.Schedule.Enabled)
	assert.Equal(t, 500, cfg.Grid.Grid().Columns*cfg.Grid.Grid().Rows)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: true
  level: debug
grid:
  columns: 4
  rows: 5
upstream:
  page_size: 250
  timeout: 10s
politeness:
  page_delay:
    min: 2s
    max: 3s
  cell_delay: 5s
  cell_jitter: 0.5
crawler:
  workers: 3
  requests_per_second: 0.25
store:
  backend: postgres
  postgres:
    dsn: postgres://localhost/campgrounds
checkpoint:
  backend: postgres
  key: west
schedule:
  enabled: true
  hour: 4
  minute: 15
  run_on_start: true
pubsub:
  project_id: proj
  topic: crawl-runs
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Grid.Columns)
	assert.Equal(t, 250, cfg.Upstream.PageSize)
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, crawler.Jitter{Min: 2 * time.Second, Max: 3 * time.Second}, cfg.Politeness.PageDelay)
	assert.Equal(t, crawler.Jitter{Min: 2500 * time.Millisecond, Max: 7500 * time.Millisecond}, cfg.Politeness.CellDelayJitter())
	assert.Equal(t, 3, cfg.Crawler.Workers)
	assert.InDelta(t, 0.25, cfg.Crawler.RequestsPerSecond, 1e-9)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "postgres://localhost/campgrounds", cfg.Store.Postgres.DSN)
	assert.Equal(t, "west", cfg.Checkpoint.Key)
	assert.True(t, cfg.Schedule.Enabled)
	assert.Equal(t, 4, cfg.Schedule.Hour)
	assert.Equal(t, 15, cfg.Schedule.Minute)
	assert.True(t, cfg.Schedule.RunOnStart)
	assert.Equal(t, "crawl-runs", cfg.PubSub.Topic)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CAMPCRAWLER_CRAWLER_WORKERS", "2")
	t.Setenv("CAMPCRAWLER_STORE_BACKEND", "memory")
	t.Setenv("CAMPCRAWLER_CHECKPOINT_FILE_BASE_DIR", "/var/lib/campcrawler")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Crawler.Workers)
	assert.InDelta(t, 1.0, cfg.Crawler.RequestsPerSecond, 1e-9, "workers share one sequential cadence")
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "/var/lib/campcrawler", cfg.Checkpoint.File.BaseDir)
}

func TestLoadRejectsConcurrencyAboveSequentialCadence(t *testing.T) {
	t.Setenv("CAMPCRAWLER_CRAWLER_WORKERS", "4")
	t.Setenv("CAMPCRAWLER_CRAWLER_REQUESTS_PER_SECOND", "4")

	_, err := Load("")
	require.ErrorContains(t, err, "crawler.requests_per_second")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"columns", func(c *Config) { c.Grid.Columns = 0 }, "grid"},
		{"inverted box", func(c *Config) { c.Grid.MinLng, c.Grid.MaxLng = c.Grid.MaxLng, c.Grid.MinLng }, "grid"},
		{"page size", func(c *Config) { c.Upstream.PageSize = 501 }, "upstream.page_size"},
		{"retries", func(c *Config) { c.Upstream.MaxRetries = 0 }, "upstream.max_retries"},
		{"workers", func(c *Config) { c.Crawler.Workers = 5 }, "crawler.workers"},
		{"uncapped workers", func(c *Config) { c.Crawler.Workers = 4; c.Crawler.RequestsPerSecond = 0 }, "crawler.requests_per_second"},
		{"workers above cadence", func(c *Config) { c.Crawler.Workers = 4; c.Crawler.RequestsPerSecond = 4 }, "crawler.requests_per_second"},
		{"negative delay", func(c *Config) { c.Politeness.CellDelay = -time.Second }, "politeness"},
		{"jitter", func(c *Config) { c.Politeness.CellJitter = 1 }, "politeness.cell_jitter"},
		{"checkpoint backend", func(c *Config) { c.Checkpoint.Backend = "s3" }, "checkpoint.backend"},
		{"store backend", func(c *Config) { c.Store.Backend = "mongo" }, "store.backend"},
		{"gcs bucket", func(c *Config) { c.Checkpoint.Backend = BackendGCS }, "checkpoint.gcs.bucket"},
		{"postgres dsn", func(c *Config) { c.Store.Backend = BackendPostgres }, "store.postgres.dsn"},
		{"schedule", func(c *Config) { c.Schedule.Enabled = true; c.Schedule.Hour = 24 }, "schedule.hour"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
