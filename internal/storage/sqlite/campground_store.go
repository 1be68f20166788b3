package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/campground"
)

const (
	defaultListLimit = 100
	recordSavepoint  = "campground_upsert"
)

// CampgroundStore persists campgrounds in a SQLite table.
type CampgroundStore struct {
	db        *sql.DB
	mu        sync.Mutex
	upsertSQL string
	selectSQL string
	logger    *zap.Logger
}

// NewCampgroundStore creates the schema if needed. Close closes db.
func NewCampgroundStore(ctx context.Context, db *sql.DB, logger *zap.Logger) (*CampgroundStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := createCampgroundSchema(ctx, db); err != nil {
		return nil, err
	}
	return &CampgroundStore{
		db:        db,
		upsertSQL: buildUpsertSQL(),
		selectSQL: "SELECT id, " + strings.Join(campground.Columns, ", ") + " FROM campgrounds",
		logger:    logger,
	}, nil
}

func createCampgroundSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS campgrounds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		name TEXT,
		region_name TEXT,
		administrative_area TEXT,
		nearest_city_name TEXT,
		operator TEXT,
		latitude REAL,
		longitude REAL,
		location_id INTEGER,
		location_type TEXT,
		accommodation_type_names TEXT,
		camper_types TEXT,
		pin_type TEXT,
		price_low TEXT,
		price_low_cents INTEGER,
		price_low_currency TEXT,
		price_high TEXT,
		price_high_cents INTEGER,
		price_high_currency TEXT,
		rating REAL,
		reviews_count INTEGER,
		photos_count INTEGER,
		videos_count INTEGER,
		bookable BOOLEAN,
		claimed BOOLEAN,
		booking_method TEXT,
		photo_url TEXT,
		photo_urls TEXT,
		slug TEXT,
		availability_updated_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_campgrounds_region ON campgrounds(region_name);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// buildUpsertSQL overwrites only columns whose incoming value is not NULL.
func buildUpsertSQL() string {
	placeholders := make([]string, len(campground.Columns))
	var updates []string
	for i, col := range campground.Columns {
		placeholders[i] = "?"
		if col == "url" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = COALESCE(excluded.%s, campgrounds.%s)", col, col, col))
	}
	return fmt.Sprintf(`INSERT INTO campgrounds (%s) VALUES (%s)
	ON CONFLICT(url) DO UPDATE SET %s`,
		strings.Join(campground.Columns, ", "),
		strings.Join(placeholders, ","),
		strings.Join(updates, ", "),
	)
}

// UpsertBatch applies batch in one transaction with a savepoint per record,
// so a failing record is skipped and counted without losing the others.
func (s *CampgroundStore) UpsertBatch(ctx context.Context, batch []campground.Campground) (campground.UpsertResult, error) {
	var result campground.UpsertResult
	if len(batch) == 0 {
		return result, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("beginning tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, c := range batch {
		inserted, err := s.upsertOne(ctx, tx, c)
		if err != nil {
			if errors.Is(err, errAborted) {
				return campground.UpsertResult{}, err
			}
			result.Failed++
			s.logger.Warn("Campground upsert failed", zap.String("url", c.URL), zap.Error(err))
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return campground.UpsertResult{}, fmt.Errorf("committing tx: %w", err)
	}
	return result, nil
}

var errAborted = errors.New("upsert transaction aborted")

func (s *CampgroundStore) upsertOne(ctx context.Context, tx *sql.Tx, c campground.Campground) (bool, error) {
	args, err := c.Values()
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+recordSavepoint); err != nil {
		return false, fmt.Errorf("%w: savepoint: %w", errAborted, err)
	}
	rollback := func(cause error) (bool, error) {
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+recordSavepoint); err != nil {
			return false, fmt.Errorf("%w: rollback to savepoint: %w", errAborted, err)
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+recordSavepoint); err != nil {
			return false, fmt.Errorf("%w: release savepoint: %w", errAborted, err)
		}
		return false, cause
	}

	var existing int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM campgrounds WHERE url = ?", c.URL).Scan(&existing)
	inserted := errors.Is(err, sql.ErrNoRows)
	if err != nil && !inserted {
		return rollback(err)
	}
	if _, err := tx.ExecContext(ctx, s.upsertSQL, args...); err != nil {
		return rollback(err)
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+recordSavepoint); err != nil {
		return false, fmt.Errorf("%w: release savepoint: %w", errAborted, err)
	}
	return inserted, nil
}

// Get returns the campground with id.
func (s *CampgroundStore) Get(ctx context.Context, id int64) (campground.Campground, error) {
	c, err := campground.ScanRow(s.db.QueryRowContext(ctx, s.selectSQL+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return campground.Campground{}, campground.ErrNotFound
	}
	if err != nil {
		return campground.Campground{}, fmt.Errorf("get campground %d: %w", id, err)
	}
	return c, nil
}

// List pages through campgrounds ordered by id, optionally by region.
func (s *CampgroundStore) List(ctx context.Context, filter campground.ListFilter) ([]campground.Campground, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		s.selectSQL+" WHERE (? = '' OR region_name = ?) ORDER BY id LIMIT ? OFFSET ?",
		filter.Region, filter.Region, limit, max(filter.Skip, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("list campgrounds: %w", err)
	}
	defer rows.Close()

	out := make([]campground.Campground, 0, limit)
	for rows.Next() {
		c, err := campground.ScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campground: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list campgrounds: %w", err)
	}
	return out, nil
}

// Stats counts campgrounds per region.
func (s *CampgroundStore) Stats(ctx context.Context) (campground.Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT COALESCE(region_name, ''), COUNT(*) FROM campgrounds GROUP BY 1")
	if err != nil {
		return campground.Stats{}, fmt.Errorf("campground stats: %w", err)
	}
	defer rows.Close()

	stats := campground.Stats{Regions: make(map[string]int)}
	for rows.Next() {
		var (
			region string
			count  int
		)
		if err := rows.Scan(&region, &count); err != nil {
			return campground.Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.Regions[region] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return campground.Stats{}, fmt.Errorf("campground stats: %w", err)
	}
	return stats, nil
}

// Close closes the database.
func (s *CampgroundStore) Close() error {
	return s.db.Close()
}
