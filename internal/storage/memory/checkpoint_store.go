package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/JakeFAU/campground-crawler/internal/crawler"
)

// CheckpointStore holds the cursor in memory. State is lost on exit.
type CheckpointStore struct {
	mu     sync.RWMutex
	cursor *crawler.Cursor
}

// NewCheckpointStore constructs an empty store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{}
}

// Load returns the saved cursor or the default one.
func (s *CheckpointStore) Load(_ context.Context) (crawler.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cursor == nil {
		return crawler.DefaultCursor(), nil
	}
	cursor := *s.cursor
	cursor.Completed = slices.Clone(cursor.Completed)
	return cursor, nil
}

// Save replaces the cursor.
func (s *CheckpointStore) Save(_ context.Context, cursor crawler.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursor.Completed = slices.Clone(cursor.Completed)
	s.cursor = &cursor
	return nil
}
