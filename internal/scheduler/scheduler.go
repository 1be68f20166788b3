// Package scheduler starts a crawl once a day at a fixed wall-clock time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
	"github.com/JakeFAU/campground-crawler/internal/dispatcher"
)

// Config sets the daily run time.
type Config struct {
	Enabled    bool   `mapstructure:"enabled"`
	Hour       int    `mapstructure:"hour"`
	Minute     int    `mapstructure:"minute"`
	Location   string `mapstructure:"location"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// Validate checks the time of day and location.
func (c Config) Validate() error {
	if c.Hour < 0 || c.Hour > 23 {
		return fmt.Errorf("schedule.hour must be between 0 and 23")
	}
	if c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("schedule.minute must be between 0 and 59")
	}
	if _, err := time.LoadLocation(c.Location); err != nil {
		return fmt.Errorf("schedule.location: %w", err)
	}
	return nil
}

// Runner performs a blocking crawl run.
type Runner interface {
	RunCrawl(ctx context.Context) (crawler.Summary, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Status is reported by the API.
type Status struct {
	Enabled bool      `json:"enabled"`
	NextRun time.Time `json:"next_run,omitzero"`
	LastRun time.Time `json:"last_run,omitzero"`
	Skipped int       `json:"skipped"`
}

// Scheduler fires Runner daily.
type Scheduler struct {
	cfg    Config
	loc    *time.Location
	runner Runner
	clock  Clock
	logger *zap.Logger

	mu      sync.Mutex
	next    time.Time
	last    time.Time
	skipped int
}

// New validates cfg and creates a Scheduler.
func New(cfg Config, runner Runner, clock Clock, logger *zap.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if runner == nil || clock == nil {
		return nil, errors.New("scheduler requires a runner and a clock")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, _ := time.LoadLocation(cfg.Location)
	return &Scheduler{cfg: cfg, loc: loc, runner: runner, clock: clock, logger: logger}, nil
}

// NextRunAt returns the first scheduled time strictly after now.
func (s *Scheduler) NextRunAt(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.Hour, s.cfg.Minute, 0, 0, s.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.cfg.Hour, s.cfg.Minute, 0, 0, s.loc)
	}
	return next
}

// Status returns the schedule state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Enabled: s.cfg.Enabled, NextRun: s.next, LastRun: s.last, Skipped: s.skipped}
}

// Run blocks until ctx ends, firing a crawl at each scheduled time. A
// disabled scheduler returns immediately.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("Scheduler disabled")
		return
	}
	if s.cfg.RunOnStart {
		s.fire(ctx)
	}
	for {
		next := s.NextRunAt(s.clock.Now())
		s.mu.Lock()
		s.next = next
		s.mu.Unlock()
		s.logger.Info("Next crawl scheduled", zap.Time("at", next))

		timer := time.NewTimer(next.Sub(s.clock.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	s.mu.Lock()
	s.last = s.clock.Now()
	s.mu.Unlock()

	summary, err := s.runner.RunCrawl(ctx)
	switch {
	case errors.Is(err, dispatcher.ErrCrawlInProgress):
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		s.logger.Warn("Scheduled crawl skipped, a crawl is already running")
	case err != nil:
		s.logger.Error("Scheduled crawl failed", zap.String("run_id", summary.RunID), zap.Error(err))
	default:
		s.logger.Info("Scheduled crawl finished", zap.String("run_id", summary.RunID))
	}
}
