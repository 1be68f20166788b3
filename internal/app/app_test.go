package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/config"
	"github.com/JakeFAU/campground-crawler/internal/crawler"
	"github.com/JakeFAU/campground-crawler/internal/storage/local"
	"github.com/JakeFAU/campground-crawler/internal/storage/memory"
	"github.com/JakeFAU/campground-crawler/internal/storage/sqlite"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Backend = config.BackendMemory
	cfg.Checkpoint.Backend = config.BackendMemory
	return cfg
}

func TestNewWithMemoryBackends(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &memory.CampgroundStore{}, a.Store())
	assert.IsType(t, &memory.CheckpointStore{}, a.Checkpoints())
	require.NotNil(t, a.Dispatcher())
	assert.False(t, a.Dispatcher().Running())
	require.NoError(t, a.Ready(context.Background()))
}

func TestNewWithLocalBackends(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Store.Backend = config.BackendSQLite
	cfg.Store.SQLite.Path = filepath.Join(dir, "campgrounds.db")
	cfg.Checkpoint.Backend = config.BackendFile
	cfg.Checkpoint.File.BaseDir = dir

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &sqlite.CampgroundStore{}, a.Store())
	require.IsType(t, &local.CheckpointStore{}, a.Checkpoints())

	cursor, err := a.Checkpoints().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, crawler.DefaultCursor(), cursor)
	require.NoError(t, a.Ready(context.Background()))
}

func TestNewWithSQLiteCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Checkpoint.Backend = config.BackendSQLite
	cfg.Store.SQLite.Path = filepath.Join(t.TempDir(), "state.db")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &sqlite.CheckpointStore{}, a.Checkpoints())
}

func TestNewServerAndScheduler(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	sched, err := a.NewScheduler()
	require.NoError(t, err)
	srv := a.NewServer(sched)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/scheduler/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewFailsOnUnreachableBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Checkpoint.Backend = config.BackendFile
	cfg.Checkpoint.File.BaseDir = filepath.Join(t.TempDir(), "file")
	require.NoError(t, writeFile(cfg.Checkpoint.File.BaseDir))

	a, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, a)
}

// writeFile occupies path with a regular file so it cannot be used as a directory.
func writeFile(path string) error {
	return os.WriteFile(path, []byte("x"), 0o600)
}
