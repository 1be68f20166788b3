package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
)

// DefaultCheckpointKey names the cursor row a deployment uses.
const DefaultCheckpointKey = "campgrounds"

// CheckpointStore keeps the crawl cursor as a JSON document in one row.
type CheckpointStore struct {
	db  *sql.DB
	key string
}

// NewCheckpointStore creates the checkpoint table if needed. The store does
// not own db.
func NewCheckpointStore(ctx context.Context, db *sql.DB, key string) (*CheckpointStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if key == "" {
		key = DefaultCheckpointKey
	}
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS crawl_checkpoints (
		key TEXT PRIMARY KEY,
		cursor TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return nil, fmt.Errorf("creating checkpoint schema: %w", err)
	}
	return &CheckpointStore{db: db, key: key}, nil
}

// Load returns the stored cursor, or the default cursor when none exists.
func (s *CheckpointStore) Load(ctx context.Context) (crawler.Cursor, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT cursor FROM crawl_checkpoints WHERE key = ?", s.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return crawler.DefaultCursor(), nil
	}
	if err != nil {
		return crawler.Cursor{}, fmt.Errorf("load checkpoint %q: %w", s.key, err)
	}
	cursor, err := crawler.DecodeCursor([]byte(raw))
	if err != nil {
		return crawler.Cursor{}, fmt.Errorf("checkpoint %q: %w", s.key, err)
	}
	return cursor, nil
}

// Save upserts the cursor row.
func (s *CheckpointStore) Save(ctx context.Context, cursor crawler.Cursor) error {
	raw, err := crawler.EncodeCursor(cursor)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO crawl_checkpoints (key, cursor, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at`,
		s.key, string(raw))
	if err != nil {
		return fmt.Errorf("save checkpoint %q: %w", s.key, err)
	}
	return nil
}
