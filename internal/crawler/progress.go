package crawler

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/geo"
	"github.com/JakeFAU/campground-crawler/internal/metrics"
)

// progressTracker owns the run's resume position and writes it through the
// checkpoint store. The cursor points at the first cell in traversal order
// that has not finished, at the page that cell is fetching; cells past it
// that already finished are listed in Completed. With a single worker this
// is exactly the cell and page about to be fetched.
type progressTracker struct {
	mu        sync.Mutex
	grid      geo.Grid
	store     CheckpointStore
	logger    *zap.Logger
	watermark int
	done      map[int]struct{}
	active    map[int]int
	lastSaved *Cursor
}

func newProgressTracker(grid geo.Grid, store CheckpointStore, logger *zap.Logger, resume Cursor) *progressTracker {
	t := &progressTracker{
		grid:      grid,
		store:     store,
		logger:    logger,
		watermark: grid.Index(resume.Cell()),
		done:      make(map[int]struct{}),
		active:    make(map[int]int),
	}
	for _, cell := range resume.Completed {
		if !grid.Contains(cell) {
			continue
		}
		if idx := grid.Index(cell); idx > t.watermark {
			t.done[idx] = struct{}{}
		}
	}
	return t
}

// isDone reports whether cell finished in an earlier run.
func (t *progressTracker) isDone(cell geo.Cell) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.done[t.grid.Index(cell)]
	return ok
}

// beginPage marks page as the one cell is about to fetch and persists the
// resulting cursor before returning.
func (t *progressTracker) beginPage(ctx context.Context, cell geo.Cell, page int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[t.grid.Index(cell)] = page
	t.persistLocked(ctx)
}

// finishCell marks cell complete and persists the advanced cursor. Once the
// final cell finishes nothing is written; the driver resets the cursor.
func (t *progressTracker) finishCell(ctx context.Context, cell geo.Cell) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.grid.Index(cell)
	delete(t.active, idx)
	t.done[idx] = struct{}{}
	t.advanceLocked()
	if t.watermark >= t.grid.Total() {
		return
	}
	t.persistLocked(ctx)
}

// cursor returns the current resume position.
func (t *progressTracker) cursor() Cursor {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advanceLocked()
	return t.cursorLocked()
}

func (t *progressTracker) advanceLocked() {
	for t.watermark < t.grid.Total() {
		if _, ok := t.done[t.watermark]; !ok {
			return
		}
		delete(t.done, t.watermark)
		t.watermark++
	}
}

func (t *progressTracker) cursorLocked() Cursor {
	if t.watermark >= t.grid.Total() {
		return DefaultCursor()
	}
	cell := t.grid.CellAt(t.watermark)
	page, ok := t.active[t.watermark]
	if !ok {
		page = 1
	}
	cursor := Cursor{GridX: cell.X, GridY: cell.Y, Page: page}
	if len(t.done) > 0 {
		indexes := make([]int, 0, len(t.done))
		for idx := range t.done {
			indexes = append(indexes, idx)
		}
		slices.Sort(indexes)
		cursor.Completed = make([]geo.Cell, len(indexes))
		for i, idx := range indexes {
			cursor.Completed[i] = t.grid.CellAt(idx)
		}
	}
	return cursor
}

// persistLocked writes the cursor unless it matches the last successful
// write. Failures are logged and the crawl carries on.
func (t *progressTracker) persistLocked(ctx context.Context) {
	t.advanceLocked()
	cursor := t.cursorLocked()
	if t.lastSaved != nil && cursorsEqual(*t.lastSaved, cursor) {
		return
	}
	if err := t.store.Save(ctx, cursor); err != nil {
		metrics.ObserveCheckpointError("save")
		t.logger.Warn("Failed to save checkpoint",
			zap.Int("grid_x", cursor.GridX),
			zap.Int("grid_y", cursor.GridY),
			zap.Int("page", cursor.Page),
			zap.Error(err),
		)
		return
	}
	t.lastSaved = &cursor
}

func cursorsEqual(a, b Cursor) bool {
	return a.GridX == b.GridX && a.GridY == b.GridY && a.Page == b.Page && slices.Equal(a.Completed, b.Completed)
}
