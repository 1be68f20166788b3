package campground

import "context"

// UpsertResult tallies one batch upsert.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// Add accumulates other into r.
func (r *UpsertResult) Add(other UpsertResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Failed += other.Failed
}

// Total is the number of records the batch attempted.
func (r UpsertResult) Total() int {
	return r.Inserted + r.Updated + r.Failed
}

// ListFilter pages through stored campgrounds ordered by id.
type ListFilter struct {
	Skip   int
	Limit  int
	Region string
}

// Stats summarizes the stored campgrounds.
type Stats struct {
	Total   int            `json:"total_campgrounds"`
	Regions map[string]int `json:"regions"`
}

// Writer persists campgrounds keyed by URL.
//
// UpsertBatch applies the whole batch as one unit of work. A record that
// fails is counted in Failed and skipped; the others still apply. A
// non-nil error means the batch as a whole could not be committed.
type Writer interface {
	UpsertBatch(ctx context.Context, batch []Campground) (UpsertResult, error)
}

// Reader serves stored campgrounds.
type Reader interface {
	Get(ctx context.Context, id int64) (Campground, error)
	List(ctx context.Context, filter ListFilter) ([]Campground, error)
	Stats(ctx context.Context) (Stats, error)
}

// Store is the full persistence surface.
type Store interface {
	Writer
	Reader
	Close() error
}
