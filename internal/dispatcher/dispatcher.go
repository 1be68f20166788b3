// Package dispatcher runs crawl passes one at a time, whether started by the
// CLI, the scheduler or the HTTP API, and announces each finished run.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
	"github.com/JakeFAU/campground-crawler/internal/metrics"
)

// ErrCrawlInProgress is returned when a run is requested while one is active.
var ErrCrawlInProgress = errors.New("crawl already in progress")

// Run outcomes, used in status reports, events and metrics.
const (
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// Runner performs one crawl pass.
type Runner interface {
	Run(ctx context.Context) (crawler.Summary, error)
}

// IDGenerator issues run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// RunEvent is published after every run.
type RunEvent struct {
	RunID   string          `json:"run_id"`
	Status  string          `json:"status"`
	Error   string          `json:"error,omitempty"`
	Summary crawler.Summary `json:"summary"`
}

// Status reports the active run, if any, and the last finished one.
type Status struct {
	Running   bool      `json:"running"`
	RunID     string    `json:"run_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Last      *RunEvent `json:"last,omitempty"`
}

// Dispatcher serializes crawl runs.
type Dispatcher struct {
	runner    Runner
	publisher crawler.Publisher
	ids       IDGenerator
	topic     string
	logger    *zap.Logger
	now       func() time.Time

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	active  string
	started time.Time
	last    *RunEvent
}

// New creates a Dispatcher. publisher may be nil, in which case runs are not
// announced.
func New(runner Runner, publisher crawler.Publisher, ids IDGenerator, topic string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		runner:    runner,
		publisher: publisher,
		ids:       ids,
		topic:     topic,
		logger:    logger,
		now:       time.Now,
		base:      base,
		cancel:    cancel,
	}
}

// RunCrawl performs a run on the caller's goroutine.
func (d *Dispatcher) RunCrawl(ctx context.Context) (crawler.Summary, error) {
	runID, err := d.acquire()
	if err != nil {
		return crawler.Summary{}, err
	}
	return d.execute(ctx, runID)
}

// Trigger starts a run in the background and returns its ID. The run
// outlives ctx and stops only on Shutdown.
func (d *Dispatcher) Trigger(_ context.Context) (string, error) {
	runID, err := d.acquire()
	if err != nil {
		return "", err
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_, _ = d.execute(d.base, runID)
	}()
	return runID, nil
}

// Status returns a snapshot of the dispatcher state.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{Running: d.active != "", RunID: d.active, StartedAt: d.started}
	if d.last != nil {
		last := *d.last
		st.Last = &last
	}
	return st
}

// Running reports whether a run is active.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active != ""
}

// Shutdown cancels background runs and waits for them to return.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for crawl to stop: %w", ctx.Err())
	}
}

func (d *Dispatcher) acquire() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active != "" {
		return "", ErrCrawlInProgress
	}
	runID, err := d.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	d.active = runID
	d.started = d.now()
	return runID, nil
}

func (d *Dispatcher) execute(ctx context.Context, runID string) (crawler.Summary, error) {
	logger := d.logger.With(zap.String("run_id", runID))
	logger.Info("Crawl run started")

	summary, err := d.runner.Run(ctx)
	summary.RunID = runID

	event := RunEvent{RunID: runID, Status: StatusCompleted, Summary: summary}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		event.Status = StatusInterrupted
		event.Error = err.Error()
	default:
		event.Status = StatusFailed
		event.Error = err.Error()
	}
	metrics.ObserveRun(event.Status, summary.Duration())
	logger.Info("Crawl run finished",
		zap.String("status", event.Status),
		zap.Duration("duration", summary.Duration()),
		zap.Int("unique_records", summary.UniqueRecords),
	)

	if d.publisher != nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		msgID, pubErr := d.publisher.Publish(pubCtx, d.topic, event)
		cancel()
		if pubErr != nil {
			logger.Warn("Failed to publish run event", zap.Error(pubErr))
		} else {
			logger.Debug("Run event published", zap.String("message_id", msgID))
		}
	}

	d.mu.Lock()
	d.active = ""
	d.started = time.Time{}
	d.last = &event
	d.mu.Unlock()
	return summary, err
}
