package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/campground-crawler/internal/campground"
	"github.com/JakeFAU/campground-crawler/internal/crawler"
)

func ptr[T any](v T) *T { return &v }

func TestUpsertBatchIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewCampgroundStore()
	ctx := context.Background()
	batch := []campground.Campground{
		{URL: "u1", Name: ptr("One"), RegionName: ptr("Utah"), Rating: ptr(4.0)},
		{URL: "u2", Name: ptr("Two"), RegionName: ptr("Ohio")},
	}

	first, err := store.UpsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, campground.UpsertResult{Inserted: 2}, first)
	before, err := store.List(ctx, campground.ListFilter{})
	require.NoError(t, err)

	second, err := store.UpsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, campground.UpsertResult{Updated: 2}, second)
	after, err := store.List(ctx, campground.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpsertBatchPartialUpdate(t *testing.T) {
	t.Parallel()

	store := NewCampgroundStore()
	ctx := context.Background()
	_, err := store.UpsertBatch(ctx, []campground.Campground{{URL: "u1", Name: ptr("Old"), Rating: ptr(3.5)}})
	require.NoError(t, err)
	_, err = store.UpsertBatch(ctx, []campground.Campground{{URL: "u1", Name: ptr("New")}, {Name: ptr("no url")}})
	require.NoError(t, err)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "New", *got.Name)
	require.NotNil(t, got.Rating)
	assert.InDelta(t, 3.5, *got.Rating, 1e-9)

	_, err = store.Get(ctx, 99)
	require.ErrorIs(t, err, campground.ErrNotFound)
}

func TestListAndStats(t *testing.T) {
	t.Parallel()

	store := NewCampgroundStore()
	ctx := context.Background()
	_, err := store.UpsertBatch(ctx, []campground.Campground{
		{URL: "a", RegionName: ptr("Utah")},
		{URL: "b", RegionName: ptr("Ohio")},
		{URL: "c", RegionName: ptr("Utah")},
		{URL: "d"},
	})
	require.NoError(t, err)

	page, err := store.List(ctx, campground.ListFilter{Skip: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].URL)
	assert.Equal(t, "c", page[1].URL)

	utah, err := store.List(ctx, campground.ListFilter{Region: "Utah"})
	require.NoError(t, err)
	assert.Len(t, utah, 2)

	empty, err := store.List(ctx, campground.ListFilter{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, map[string]int{"Utah": 2, "Ohio": 1, "": 1}, stats.Regions)
}

func TestCheckpointStore(t *testing.T) {
	t.Parallel()

	store := NewCheckpointStore()
	ctx := context.Background()
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsDefault())

	require.NoError(t, store.Save(ctx, crawler.Cursor{GridX: 2, GridY: 5, Page: 3}))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, crawler.Cursor{GridX: 2, GridY: 5, Page: 3}, got)
}
