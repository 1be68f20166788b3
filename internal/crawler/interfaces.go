package crawler

import (
	"context"
	"time"

	"github.com/paulmach/orb"

	"github.com/JakeFAU/campground-crawler/internal/campground"
)

// PageFetcher retrieves one page of results for a cell.
//
// Upstream failures never surface as errors: after retries are exhausted the
// fetcher returns an empty page. The only error is the context's.
type PageFetcher interface {
	FetchPage(ctx context.Context, bound orb.Bound, page int) (Page, error)
}

// CheckpointStore persists the resume cursor. Load returns DefaultCursor
// when nothing has been saved yet.
type CheckpointStore interface {
	Load(ctx context.Context) (Cursor, error)
	Save(ctx context.Context, cursor Cursor) error
}

// Sink receives the deduplicated records of a completed crawl.
type Sink interface {
	Persist(ctx context.Context, records []campground.RawRecord) (campground.UpsertResult, error)
}

// Pauser waits between requests. Implementations return early when ctx ends.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// Publisher emits run notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
