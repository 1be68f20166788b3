package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/campground"
)

const (
	defaultCampgroundTable = "campgrounds"
	defaultListLimit       = 100
	recordSavepoint        = "campground_upsert"
)

// CampgroundStore upserts and serves campgrounds from Postgres.
type CampgroundStore struct {
	pool      dbPool
	table     string
	upsertSQL string
	selectSQL string
	logger    *zap.Logger
}

// NewCampgroundStore wraps an open pool. Close closes the pool.
func NewCampgroundStore(pool dbPool, table string, logger *zap.Logger) (*CampgroundStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table, defaultCampgroundTable)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampgroundStore{
		pool:      pool,
		table:     table,
		upsertSQL: buildUpsertSQL(table),
		selectSQL: fmt.Sprintf("SELECT id, %s FROM %s", strings.Join(campground.Columns, ", "), table),
		logger:    logger,
	}, nil
}

// buildUpsertSQL inserts a row or, on a url conflict, overwrites only the
// columns whose incoming value is not NULL. RETURNING reports whether the
// row was freshly inserted.
func buildUpsertSQL(table string) string {
	placeholders := make([]string, len(campground.Columns))
	var updates []string
	for i, col := range campground.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col == "url" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = COALESCE(EXCLUDED.%s, %s.%s)", col, col, table, col))
	}
	return fmt.Sprintf(`INSERT INTO %s (%s)
VALUES (%s)
ON CONFLICT (url) DO UPDATE SET
	%s
RETURNING (xmax = 0) AS inserted`,
		table,
		strings.Join(campground.Columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ",\n\t"),
	)
}

// EnsureSchema creates the campground table if it does not exist.
func (s *CampgroundStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	name TEXT,
	region_name TEXT,
	administrative_area TEXT,
	nearest_city_name TEXT,
	operator TEXT,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	location_id BIGINT,
	location_type TEXT,
	accommodation_type_names JSONB,
	camper_types JSONB,
	pin_type TEXT,
	price_low TEXT,
	price_low_cents BIGINT,
	price_low_currency TEXT,
	price_high TEXT,
	price_high_cents BIGINT,
	price_high_currency TEXT,
	rating DOUBLE PRECISION,
	reviews_count BIGINT,
	photos_count BIGINT,
	videos_count BIGINT,
	bookable BOOLEAN,
	claimed BOOLEAN,
	booking_method TEXT,
	photo_url TEXT,
	photo_urls JSONB,
	slug TEXT,
	availability_updated_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS %s_region_name_idx ON %s (region_name);`, s.table, s.table, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// UpsertBatch applies batch in one transaction. Each record runs inside its
// own savepoint so a failing record is rolled back alone and counted as
// failed while the rest of the batch commits.
func (s *CampgroundStore) UpsertBatch(ctx context.Context, batch []campground.Campground) (campground.UpsertResult, error) {
	var result campground.UpsertResult
	if len(batch) == 0 {
		return result, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		// No-op once committed.
		_ = tx.Rollback(ctx)
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

	if err := tx.Commit(ctx); err != nil {
		return campground.UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}
	return result, nil
}

var errAborted = errors.New("upsert transaction aborted")

func (s *CampgroundStore) upsertOne(ctx context.Context, tx pgx.Tx, c campground.Campground) (bool, error) {
	args, err := c.Values()
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, "SAVEPOINT "+recordSavepoint); err != nil {
		return false, fmt.Errorf("%w: savepoint: %w", errAborted, err)
	}
	var inserted bool
	if err := tx.QueryRow(ctx, s.upsertSQL, args...).Scan(&inserted); err != nil {
		if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+recordSavepoint); rbErr != nil {
			return false, fmt.Errorf("%w: rollback to savepoint: %w", errAborted, rbErr)
		}
		return false, err
	}
	if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+recordSavepoint); err != nil {
		return false, fmt.Errorf("%w: release savepoint: %w", errAborted, err)
	}
	return inserted, nil
}

// Get returns the campground with id.
func (s *CampgroundStore) Get(ctx context.Context, id int64) (campground.Campground, error) {
	row := s.pool.QueryRow(ctx, s.selectSQL+" WHERE id = $1", id)
	c, err := campground.ScanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx,
		s.selectSQL+" WHERE ($1 = '' OR region_name = $1) ORDER BY id LIMIT $2 OFFSET $3",
		filter.Region, limit, max(filter.Skip, 0),
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

// Stats counts campgrounds per region; the total is their sum.
func (s *CampgroundStore) Stats(ctx context.Context) (campground.Stats, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT COALESCE(region_name, '') AS region, COUNT(*) FROM %s GROUP BY 1", s.table))
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

// Close releases the pool.
func (s *CampgroundStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
