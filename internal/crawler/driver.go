package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/campground-crawler/internal/campground"
	"github.com/JakeFAU/campground-crawler/internal/geo"
	"github.com/JakeFAU/campground-crawler/internal/metrics"
)

const (
	// MaxWorkers caps concurrent cell crawls.
	MaxWorkers = 4

	flushTimeout = 2 * time.Minute
)

// Config tunes a Driver.
type Config struct {
	Grid geo.Grid
	// Workers is the number of cells crawled at once. One reproduces the
	// strictly sequential cadence.
	Workers int
	// PageDelay separates consecutive page requests within a cell.
	PageDelay Jitter
	// CellDelay follows each finished cell except the final one.
	CellDelay Jitter
	// RequestsPerSecond is the aggregate cap the fetcher's shared limiter
	// enforces. It is required with more than one worker and may not exceed
	// SequentialRate(PageDelay).
	RequestsPerSecond float64
	// FlushOnInterrupt persists the records gathered so far when a run is
	// canceled before the traversal completes.
	FlushOnInterrupt bool
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", MaxWorkers, c.Workers)
	}
	if c.PageDelay.Min < 0 || c.CellDelay.Min < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.Workers > 1 {
		if c.RequestsPerSecond <= 0 {
			return fmt.Errorf("requests per second must be set when running %d workers", c.Workers)
		}
		if limit := SequentialRate(c.PageDelay); limit > 0 && c.RequestsPerSecond > limit {
			return fmt.Errorf("requests per second %g exceeds the sequential rate %g", c.RequestsPerSecond, limit)
		}
	}
	return nil
}

// Driver runs full crawl passes over a grid.
type Driver struct {
	cfg         Config
	fetcher     PageFetcher
	checkpoints CheckpointStore
	sink        Sink
	pauser      Pauser
	logger      *zap.Logger
	now         func() time.Time
}

// Option customizes a Driver.
type Option func(*Driver)

// WithPauser replaces the timer-based pauser.
func WithPauser(p Pauser) Option {
	return func(d *Driver) {
		if p != nil {
			d.pauser = p
		}
	}
}

// WithClock overrides the wall clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDriver wires a Driver.
func NewDriver(
	cfg Config,
	fetcher PageFetcher,
	checkpoints CheckpointStore,
	sink Sink,
	logger *zap.Logger,
	opts ...Option,
) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crawler config: %w", err)
	}
	if fetcher == nil || checkpoints == nil || sink == nil {
		return nil, errors.New("crawler requires a fetcher, checkpoint store and sink")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		cfg:         cfg,
		fetcher:     fetcher,
		checkpoints: checkpoints,
		sink:        sink,
		pauser:      TimerPauser{},
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// cellResult is what one cell contributed to the run.
type cellResult struct {
	records  []campground.RawRecord
	pages    int
	finished bool
}

// Run performs one crawl pass from the persisted cursor to the end of the
// grid. Upstream failures never fail a run. It returns an error only when
// ctx ends before the traversal completes or the final persist fails; in
// both cases the returned summary describes the work done.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	summary := Summary{StartedAt: d.now()}
	resume := d.loadCursor(ctx)
	summary.ResumedFrom = resume

	tracker := newProgressTracker(d.cfg.Grid, d.checkpoints, d.logger, resume)
	pending := d.pendingCells(resume, tracker)
	d.logger.Info("Crawl starting",
		zap.Int("grid_x", resume.GridX),
		zap.Int("grid_y", resume.GridY),
		zap.Int("page", resume.Page),
		zap.Bool("resumed", !resume.IsDefault()),
		zap.Int("cells_pending", len(pending)),
		zap.Int("workers", d.cfg.Workers),
	)

	results := make([]cellResult, len(pending))
	crawlErr := d.crawlCells(ctx, pending, resume, tracker, results)

	var records []campground.RawRecord
	for _, r := range results {
		summary.Pages += r.pages
		if r.finished {
			summary.Cells++
		}
		records = append(records, r.records...)
	}
	summary.RawRecords = len(records)

	if crawlErr != nil {
		at := tracker.cursor()
		d.logger.Warn("Crawl interrupted",
			zap.Int("grid_x", at.GridX),
			zap.Int("grid_y", at.GridY),
			zap.Int("page", at.Page),
			zap.Int("raw_records", summary.RawRecords),
			zap.Error(crawlErr),
		)
		if d.cfg.FlushOnInterrupt && len(records) > 0 {
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			defer cancel()
			summary.UniqueRecords, summary.Persist, _ = d.persist(flushCtx, records)
		}
		summary.FinishedAt = d.now()
		return summary, fmt.Errorf("crawl interrupted: %w", crawlErr)
	}

	if err := d.checkpoints.Save(ctx, DefaultCursor()); err != nil {
		metrics.ObserveCheckpointError("save")
		d.logger.Warn("Failed to reset checkpoint", zap.Error(err))
	}

	unique, result, err := d.persist(ctx, records)
	summary.UniqueRecords = unique
	summary.Persist = result
	summary.FinishedAt = d.now()
	if err != nil {
		return summary, fmt.Errorf("persist records: %w", err)
	}
	summary.Completed = true
	d.logger.Info("Crawl complete",
		zap.Int("cells", summary.Cells),
		zap.Int("pages", summary.Pages),
		zap.Int("raw_records", summary.RawRecords),
		zap.Int("unique_records", summary.UniqueRecords),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", summary.Duration()),
	)
	return summary, nil
}

// loadCursor reads the resume position, falling back to a fresh start when
// the checkpoint is unreadable or does not fit the grid.
func (d *Driver) loadCursor(ctx context.Context) Cursor {
	cursor, err := d.checkpoints.Load(ctx)
	if err != nil {
		metrics.ObserveCheckpointError("load")
		d.logger.Warn("Checkpoint unreadable, starting from scratch", zap.Error(err))
		return DefaultCursor()
	}
	if err := cursor.Validate(); err != nil {
		metrics.ObserveCheckpointError("load")
		d.logger.Warn("Checkpoint invalid, starting from scratch", zap.Error(err))
		return DefaultCursor()
	}
	if !d.cfg.Grid.Contains(cursor.Cell()) {
		d.logger.Warn("Checkpoint outside the configured grid, starting from scratch",
			zap.Int("grid_x", cursor.GridX),
			zap.Int("grid_y", cursor.GridY),
			zap.Int("columns", d.cfg.Grid.Columns),
			zap.Int("rows", d.cfg.Grid.Rows),
		)
		return DefaultCursor()
	}
	return cursor
}

// pendingCells lists the cells still to visit, skipping those a previous
// concurrent run already finished.
func (d *Driver) pendingCells(resume Cursor, tracker *progressTracker) []geo.Cell {
	all := d.cfg.Grid.CellsFrom(resume.Cell())
	pending := make([]geo.Cell, 0, len(all))
	for _, cell := range all {
		if tracker.isDone(cell) {
			continue
		}
		pending = append(pending, cell)
	}
	return pending
}

func (d *Driver) crawlCells(
	ctx context.Context,
	pending []geo.Cell,
	resume Cursor,
	tracker *progressTracker,
	results []cellResult,
) error {
	startPage := func(i int) int {
		if i == 0 && pending[0] == resume.Cell() {
			return resume.Page
		}
		return 1
	}

	if d.cfg.Workers == 1 {
		for i, cell := range pending {
			if err := d.crawlCell(ctx, cell, startPage(i), tracker, &results[i]); err != nil {
				return err
			}
			if i < len(pending)-1 {
				d.pause(ctx, d.cfg.CellDelay)
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, cell := range pending {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := d.crawlCell(gctx, cell, startPage(i), tracker, &results[i]); err != nil {
				return err
			}
			if i < len(pending)-1 {
				d.pause(gctx, d.cfg.CellDelay)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, r := range results {
		if !r.finished {
			return context.Cause(ctx)
		}
	}
	return nil
}

// crawlCell pages through one cell until the fetcher signals the end. The
// cursor is persisted before every request.
func (d *Driver) crawlCell(
	ctx context.Context,
	cell geo.Cell,
	startPage int,
	tracker *progressTracker,
	out *cellResult,
) error {
	metrics.IncActiveCells()
	defer metrics.DecActiveCells()

	bound := d.cfg.Grid.CellBound(cell)
	for page := startPage; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tracker.beginPage(ctx, cell, page)

		result, err := d.fetcher.FetchPage(ctx, bound, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			d.logger.Warn("Page fetch failed, treating cell as exhausted",
				zap.Stringer("cell", cell),
				zap.Int("page", page),
				zap.Error(err),
			)
			result = Page{Signal: SignalEmpty}
		}
		out.pages++
		out.records = append(out.records, result.Records...)
		d.logger.Debug("Fetched page",
			zap.Stringer("cell", cell),
			zap.Int("page", page),
			zap.Int("records", len(result.Records)),
			zap.Stringer("signal", result.Signal),
		)

		if result.Signal != SignalMore {
			break
		}
		d.pause(ctx, d.cfg.PageDelay)
	}

	out.finished = true
	tracker.finishCell(ctx, cell)
	metrics.ObserveCellCompleted()
	d.logger.Info("Cell complete",
		zap.Stringer("cell", cell),
		zap.Int("region", d.cfg.Grid.Index(cell)+1),
		zap.Int("regions", d.cfg.Grid.Total()),
		zap.Int("pages", out.pages),
		zap.Int("records", len(out.records)),
	)
	return nil
}

func (d *Driver) pause(ctx context.Context, j Jitter) {
	d.pauser.Pause(ctx, j.Draw())
}

// persist deduplicates records and hands them to the sink.
func (d *Driver) persist(ctx context.Context, records []campground.RawRecord) (int, campground.UpsertResult, error) {
	unique := Deduplicate(records)
	d.logger.Info("Persisting records",
		zap.Int("raw_records", len(records)),
		zap.Int("unique_records", len(unique)),
	)
	result, err := d.sink.Persist(ctx, unique)
	if err != nil {
		d.logger.Error("Persisting records failed", zap.Error(err))
	}
	return len(unique), result, err
}
