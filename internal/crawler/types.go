package crawler

import (
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/JakeFAU/campground-crawler/internal/campground"
	"github.com/JakeFAU/campground-crawler/internal/geo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidCursor reports a checkpoint document that cannot be resumed from.
var ErrInvalidCursor = errors.New("invalid checkpoint cursor")

// Cursor is the persisted resume position: the cell and page the next fetch
// targets. Completed lists cells after that position that already finished,
// which only happens when cells are crawled concurrently.
type Cursor struct {
	GridX     int        `json:"grid_x"`
	GridY     int        `json:"grid_y"`
	Page      int        `json:"page"`
	Completed []geo.Cell `json:"completed,omitempty"`
}

// DefaultCursor is the start of a fresh crawl.
func DefaultCursor() Cursor {
	return Cursor{Page: 1}
}

// Cell returns the cell the cursor points at.
func (c Cursor) Cell() geo.Cell {
	return geo.Cell{X: c.GridX, Y: c.GridY}
}

// IsDefault reports whether c is the fresh-crawl cursor.
func (c Cursor) IsDefault() bool {
	return c.GridX == 0 && c.GridY == 0 && c.Page == 1 && len(c.Completed) == 0
}

func (c Cursor) String() string {
	return fmt.Sprintf("cell %s page %d", c.Cell(), c.Page)
}

// Validate checks the cursor against basic invariants.
func (c Cursor) Validate() error {
	if c.GridX < 0 || c.GridY < 0 {
		return fmt.Errorf("%w: negative cell %s", ErrInvalidCursor, c.Cell())
	}
	if c.Page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidCursor, c.Page)
	}
	return nil
}

// EncodeCursor renders c as the checkpoint document.
func EncodeCursor(c Cursor) ([]byte, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode cursor: %w", err)
	}
	return raw, nil
}

// DecodeCursor parses and validates a checkpoint document. Missing keys take
// their fresh-crawl values, so a document without a page resumes its cell at
// page 1.
func DecodeCursor(raw []byte) (Cursor, error) {
	c := DefaultCursor()
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	if err := c.Validate(); err != nil {
		return Cursor{}, err
	}
	return c, nil
}

// Signal tells the driver whether a cell has more pages.
type Signal int

const (
	// SignalEmpty means the page had no records, or every retry failed.
	SignalEmpty Signal = iota
	// SignalLast means the page was short: there are no further pages.
	SignalLast
	// SignalMore means the page was full: the next page may have records.
	SignalMore
)

func (s Signal) String() string {
	switch s {
	case SignalMore:
		return "more"
	case SignalLast:
		return "last"
	default:
		return "empty"
	}
}

// Page is one fetched result page.
type Page struct {
	Records []campground.RawRecord
	Signal  Signal
}

// Summary describes a completed or interrupted run.
type Summary struct {
	RunID         string                  `json:"run_id"`
	StartedAt     time.Time               `json:"started_at"`
	FinishedAt    time.Time               `json:"finished_at"`
	ResumedFrom   Cursor                  `json:"resumed_from"`
	Cells         int                     `json:"cells"`
	Pages         int                     `json:"pages"`
	RawRecords    int                     `json:"raw_records"`
	UniqueRecords int                     `json:"unique_records"`
	Persist       campground.UpsertResult `json:"persist"`
	Completed     bool                    `json:"completed"`
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
