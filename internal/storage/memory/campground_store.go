// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/JakeFAU/campground-crawler/internal/campground"
)

// CampgroundStore keeps campgrounds in a map keyed by URL.
type CampgroundStore struct {
	mu     sync.RWMutex
	byURL  map[string]campground.Campground
	nextID int64
}

// NewCampgroundStore constructs an empty store.
func NewCampgroundStore() *CampgroundStore {
	return &CampgroundStore{byURL: make(map[string]campground.Campground)}
}

// UpsertBatch inserts new URLs and merges non-nil fields into existing ones.
func (s *CampgroundStore) UpsertBatch(_ context.Context, batch []campground.Campground) (campground.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result campground.UpsertResult
	for _, c := range batch {
		if c.URL == "" {
			result.Failed++
			continue
		}
		if existing, ok := s.byURL[c.URL]; ok {
			s.byURL[c.URL] = campground.Merge(existing, c)
			result.Updated++
			continue
		}
		s.nextID++
		c.ID = s.nextID
		s.byURL[c.URL] = c
		result.Inserted++
	}
	return result, nil
}

// Get returns the campground with id.
func (s *CampgroundStore) Get(_ context.Context, id int64) (campground.Campground, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.byURL {
		if c.ID == id {
			return c, nil
		}
	}
	return campground.Campground{}, campground.ErrNotFound
}

// List returns campgrounds ordered by id.
func (s *CampgroundStore) List(_ context.Context, filter campground.ListFilter) ([]campground.Campground, error) {
	s.mu.RLock()
	all := make([]campground.Campground, 0, len(s.byURL))
	for _, c := range s.byURL {
		if filter.Region != "" && (c.RegionName == nil || *c.RegionName != filter.Region) {
			continue
		}
		all = append(all, c)
	}
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b campground.Campground) int {
		return int(a.ID - b.ID)
	})
	if filter.Skip >= len(all) {
		return []campground.Campground{}, nil
	}
	all = all[max(filter.Skip, 0):]
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, nil
}

// Stats counts campgrounds in total and per region.
func (s *CampgroundStore) Stats(_ context.Context) (campground.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := campground.Stats{Total: len(s.byURL), Regions: make(map[string]int)}
	for _, c := range s.byURL {
		region := ""
		if c.RegionName != nil {
			region = *c.RegionName
		}
		stats.Regions[region]++
	}
	return stats, nil
}

// Close is a no-op.
func (s *CampgroundStore) Close() error {
	return nil
}
