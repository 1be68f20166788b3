package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/JakeFAU/campground-crawler/internal/campground"
	"github.com/JakeFAU/campground-crawler/internal/geo"
)

// scriptedFetcher serves per-cell page scripts. Cells without a script
// return an empty page.
type scriptedFetcher struct {
	mu      sync.Mutex
	grid    geo.Grid
	scripts map[geo.Cell][]Page
	calls   []fetchCall
	onFetch func(call fetchCall) error
}

type fetchCall struct {
	Cell geo.Cell
	Page int
}

func newScriptedFetcher(grid geo.Grid) *scriptedFetcher {
	return &scriptedFetcher{grid: grid, scripts: make(map[geo.Cell][]Page)}
}

func (f *scriptedFetcher) script(cell geo.Cell, pages ...Page) {
	f.scripts[cell] = pages
}

func (f *scriptedFetcher) cellOf(bound orb.Bound) (geo.Cell, bool) {
	for _, cell := range f.grid.CellsFrom(geo.Cell{}) {
		if f.grid.CellBound(cell) == bound {
			return cell, true
		}
	}
	return geo.Cell{}, false
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, bound orb.Bound, page int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	cell, ok := f.cellOf(bound)
	if !ok {
		return Page{}, fmt.Errorf("bound %v outside grid", bound)
	}
	call := fetchCall{Cell: cell, Page: page}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.onFetch
	pages := f.scripts[cell]
	f.mu.Unlock()

	if hook != nil {
		if err := hook(call); err != nil {
			return Page{}, err
		}
	}
	if page-1 < len(pages) {
		return pages[page-1], nil
	}
	return Page{Signal: SignalEmpty}, nil
}

func (f *scriptedFetcher) fetches() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fetchCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *scriptedFetcher) cellsVisited() map[geo.Cell]struct{} {
	visited := make(map[geo.Cell]struct{})
	for _, c := range f.fetches() {
		visited[c.Cell] = struct{}{}
	}
	return visited
}

// memoryCheckpoints records every saved cursor.
type memoryCheckpoints struct {
	mu      sync.Mutex
	current *Cursor
	saves   []Cursor
	loadErr error
	saveErr error
}

func (m *memoryCheckpoints) Load(context.Context) (Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return Cursor{}, m.loadErr
	}
	if m.current == nil {
		return DefaultCursor(), nil
	}
	return *m.current, nil
}

func (m *memoryCheckpoints) Save(_ context.Context, c Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.current = &c
	m.saves = append(m.saves, c)
	return nil
}

func (m *memoryCheckpoints) saved() []Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Cursor, len(m.saves))
	copy(out, m.saves)
	return out
}

func (m *memoryCheckpoints) last() Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return DefaultCursor()
	}
	return *m.current
}

// captureSink keeps the records handed to it.
type captureSink struct {
	mu      sync.Mutex
	batches [][]campground.RawRecord
	err     error
}

func (s *captureSink) Persist(_ context.Context, records []campground.RawRecord) (campground.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, records)
	if s.err != nil {
		return campground.UpsertResult{Failed: len(records)}, s.err
	}
	return campground.UpsertResult{Inserted: len(records)}, nil
}

// recordingPauser records delays without sleeping.
type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays = append(p.delays, delay)
}

func (p *recordingPauser) count(d time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, got := range p.delays {
		if got == d {
			n++
		}
	}
	return n
}

var errStopped = errors.New("stopped")

// records builds n distinct records tagged with prefix.
func records(prefix string, n int) []campground.RawRecord {
	out := make([]campground.RawRecord, n)
	for i := range out {
		out[i] = campground.RawRecord{
			URL: fmt.Sprintf("https://thedyrt.com/camping/test/%s-%d", prefix, i),
			Attributes: map[string]any{
				"name":      fmt.Sprintf("%s-%d", prefix, i),
				"latitude":  float64(i),
				"longitude": float64(-i),
			},
		}
	}
	return out
}
