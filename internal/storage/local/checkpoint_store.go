// Package local implements a checkpoint store on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
)

// DefaultFileName is the checkpoint document written inside BaseDir.
const DefaultFileName = "crawl_state.json"

// Config captures the parameters for the file checkpoint store.
type Config struct {
	// BaseDir is the directory that holds the checkpoint document.
	BaseDir  string `mapstructure:"base_dir" yaml:"base_dir"`
	FileName string `mapstructure:"file_name" yaml:"file_name"`
}

// CheckpointStore keeps the crawl cursor in a single JSON file. Saves write
// a temporary file next to it and rename it into place, so a crash leaves
// either the old or the new document.
type CheckpointStore struct {
	path string
}

// New creates the store, creating BaseDir if needed and checking that it is
// writable.
func New(cfg Config) (*CheckpointStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	name := cfg.FileName
	if strings.TrimSpace(name) == "" {
		name = DefaultFileName
	}
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("file name %q must not contain a directory", name)
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe, err := os.CreateTemp(cfg.BaseDir, ".writable_test")
	if err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	probeName := probe.Name()
	if err := probe.Close(); err != nil {
		return nil, fmt.Errorf("close probe file: %w", err)
	}
	if err := os.Remove(probeName); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &CheckpointStore{path: filepath.Join(cfg.BaseDir, name)}, nil
}

// Path is the checkpoint document's location.
func (s *CheckpointStore) Path() string {
	return s.path
}

// Load reads the cursor. A missing file yields the default cursor; an
// unreadable one yields an error wrapping crawler.ErrInvalidCursor.
func (s *CheckpointStore) Load(_ context.Context) (crawler.Cursor, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return crawler.DefaultCursor(), nil
	}
	if err != nil {
		return crawler.Cursor{}, fmt.Errorf("read checkpoint %s: %w", s.path, err)
	}
	cursor, err := crawler.DecodeCursor(raw)
	if err != nil {
		return crawler.Cursor{}, fmt.Errorf("checkpoint %s: %w", s.path, err)
	}
	return cursor, nil
}

// Save replaces the checkpoint document atomically.
func (s *CheckpointStore) Save(_ context.Context, cursor crawler.Cursor) error {
	raw, err := crawler.EncodeCursor(cursor)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
