package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
)

const (
	defaultCheckpointTable = "crawl_checkpoints"
	// DefaultCheckpointKey names the single cursor row a deployment uses.
	DefaultCheckpointKey = "campgrounds"
)

// CheckpointStore keeps the crawl cursor as a JSONB document in one row.
type CheckpointStore struct {
	pool  dbPool
	table string
	key   string
}

// NewCheckpointStore wraps pool. Close is left to the owner of the pool.
func NewCheckpointStore(pool dbPool, table, key string) (*CheckpointStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table, defaultCheckpointTable)
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = DefaultCheckpointKey
	}
	return &CheckpointStore{pool: pool, table: table, key: key}, nil
}

// EnsureSchema creates the checkpoint table if it does not exist.
func (s *CheckpointStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	cursor JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Load returns the stored cursor, or the default cursor when no row exists.
func (s *CheckpointStore) Load(ctx context.Context) (crawler.Cursor, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT cursor FROM %s WHERE key = $1", s.table), s.key,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.DefaultCursor(), nil
	}
	if err != nil {
		return crawler.Cursor{}, fmt.Errorf("load checkpoint %q: %w", s.key, err)
	}
	cursor, err := crawler.DecodeCursor(raw)
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
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (key, cursor, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET cursor = EXCLUDED.cursor, updated_at = EXCLUDED.updated_at`, s.table),
		s.key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %q: %w", s.key, err)
	}
	return nil
}
