package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/campground"
)

func strPtr(s string) *string { return &s }

func newMockStore(t *testing.T) (*CampgroundStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	store, err := NewCampgroundStore(mock, "", zap.NewNop())
	require.NoError(t, err)
	return store, mock
}

func upsertArgs() []any {
	args := make([]any, len(campground.Columns))
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func expectUpsert(mock pgxmock.PgxPoolIface, inserted bool) {
	mock.ExpectExec("^SAVEPOINT campground_upsert").WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectQuery("INSERT INTO campgrounds").
		WithArgs(upsertArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).AddRow(inserted))
	mock.ExpectExec("^RELEASE SAVEPOINT campground_upsert").WillReturnResult(pgxmock.NewResult("RELEASE", 0))
}

func sample(url string) campground.Campground {
	return campground.Campground{URL: url, Name: strPtr("Site")}
}

func TestNewCampgroundStoreRejectsBadTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	_, err = NewCampgroundStore(mock, "campgrounds; DROP TABLE x", nil)
	require.Error(t, err)

	_, err = NewCampgroundStore(nil, "", nil)
	require.Error(t, err)
}

func TestBuildUpsertSQLKeepsExistingValuesForNulls(t *testing.T) {
	sql := buildUpsertSQL("campgrounds")
	assert.Contains(t, sql, "ON CONFLICT (url) DO UPDATE SET")
	assert.Contains(t, sql, "name = COALESCE(EXCLUDED.name, campgrounds.name)")
	assert.Contains(t, sql, "updated_at = COALESCE(EXCLUDED.updated_at, campgrounds.updated_at)")
	assert.Contains(t, sql, "photo_url = COALESCE(EXCLUDED.photo_url, campgrounds.photo_url)")
	assert.NotContains(t, sql, "\n\turl = COALESCE", "the conflict key is never rewritten")
	assert.Contains(t, sql, "$32")
	assert.NotContains(t, sql, "$33")
	assert.True(t, strings.HasSuffix(sql, "RETURNING (xmax = 0) AS inserted"))
}

func TestUpsertBatchCountsInsertsAndUpdates(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectUpsert(mock, true)
	expectUpsert(mock, false)
	mock.ExpectCommit()

	result, err := store.UpsertBatch(context.Background(), []campground.Campground{
		sample("https://thedyrt.com/camping/utah/a"),
		sample("https://thedyrt.com/camping/utah/b"),
	})
	require.NoError(t, err)
	assert.Equal(t, campground.UpsertResult{Inserted: 1, Updated: 1}, result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatchIsolatesFailingRecord(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectUpsert(mock, true)
	mock.ExpectExec("^SAVEPOINT campground_upsert").WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectQuery("INSERT INTO campgrounds").
		WithArgs(upsertArgs()...).
		WillReturnError(errors.New("value too long"))
	mock.ExpectExec("^ROLLBACK TO SAVEPOINT campground_upsert").WillReturnResult(pgxmock.NewResult("ROLLBACK", 0))
	expectUpsert(mock, true)
	mock.ExpectCommit()

	result, err := store.UpsertBatch(context.Background(), []campground.Campground{
		sample("https://thedyrt.com/camping/utah/a"),
		sample("https://thedyrt.com/camping/utah/b"),
		sample("https://thedyrt.com/camping/utah/c"),
	})
	require.NoError(t, err)
	assert.Equal(t, campground.UpsertResult{Inserted: 2, Failed: 1}, result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatchReturnsCommitError(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectUpsert(mock, true)
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.UpsertBatch(context.Background(), []campground.Campground{sample("https://thedyrt.com/camping/utah/a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit upsert")
}

func TestUpsertBatchEmptyIsNoop(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	result, err := store.UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Total())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMapsNoRowsToNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, url, name").WithArgs(int64(42)).WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), 42)
	require.ErrorIs(t, err, campground.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAppliesDefaultsAndFilter(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	cols := append([]string{"id"}, campground.Columns...)
	mock.ExpectQuery("WHERE \\(\\$1 = '' OR region_name = \\$1\\) ORDER BY id LIMIT \\$2 OFFSET \\$3").
		WithArgs("Utah", 100, 0).
		WillReturnRows(pgxmock.NewRows(cols))

	list, err := store.List(context.Background(), campground.ListFilter{Region: "Utah", Skip: -5})
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsSumsRegions(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT COALESCE\\(region_name, ''\\)").
		WillReturnRows(pgxmock.NewRows([]string{"region", "count"}).
			AddRow("Utah", 3).
			AddRow("", 1))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, map[string]int{"Utah": 3, "": 1}, stats.Regions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaCreatesTable(t *testing.T) {
	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS campgrounds").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
