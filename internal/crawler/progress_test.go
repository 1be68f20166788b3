package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/geo"
)

func TestProgressTrackerWatermark(t *testing.T) {
	t.Parallel()

	grid := testGrid(2, 2)
	store := &memoryCheckpoints{}
	tracker := newProgressTracker(grid, store, zap.NewNop(), DefaultCursor())
	ctx := context.Background()

	tracker.beginPage(ctx, geo.Cell{X: 0, Y: 0}, 1)
	tracker.beginPage(ctx, geo.Cell{X: 0, Y: 1}, 1)
	tracker.beginPage(ctx, geo.Cell{X: 0, Y: 0}, 2)
	assert.Equal(t, Cursor{Page: 2}, store.last())

	tracker.finishCell(ctx, geo.Cell{X: 0, Y: 1})
	assert.Equal(t, Cursor{Page: 2, Completed: []geo.Cell{{X: 0, Y: 1}}}, store.last())

	tracker.finishCell(ctx, geo.Cell{X: 0, Y: 0})
	assert.Equal(t, Cursor{GridX: 1, GridY: 0, Page: 1}, store.last())

	tracker.beginPage(ctx, geo.Cell{X: 1, Y: 0}, 1)
	assert.Len(t, store.saved(), 4, "unchanged cursors are not rewritten")

	tracker.finishCell(ctx, geo.Cell{X: 1, Y: 0})
	tracker.finishCell(ctx, geo.Cell{X: 1, Y: 1})
	assert.Equal(t, DefaultCursor(), tracker.cursor())
	assert.Equal(t, Cursor{GridX: 1, GridY: 1, Page: 1}, store.last(), "the final cell leaves the reset to the driver")
}

func TestProgressTrackerIgnoresStaleCompletedCells(t *testing.T) {
	t.Parallel()

	grid := testGrid(2, 2)
	resume := Cursor{GridX: 1, GridY: 0, Page: 1, Completed: []geo.Cell{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 7, Y: 7}}}
	tracker := newProgressTracker(grid, &memoryCheckpoints{}, zap.NewNop(), resume)

	assert.False(t, tracker.isDone(geo.Cell{X: 0, Y: 1}))
	assert.True(t, tracker.isDone(geo.Cell{X: 1, Y: 1}))
	assert.Equal(t, resume.Completed[1:2], tracker.cursor().Completed)
}
