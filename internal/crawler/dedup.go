package crawler

import "github.com/JakeFAU/campground-crawler/internal/campground"

// Deduplicate collapses records that share a (name, latitude, longitude) key.
// The last occurrence of a key wins outright; fields are never merged across
// duplicates. Keys keep the position of their first occurrence. Records
// without a complete key are dropped.
func Deduplicate(records []campground.RawRecord) []campground.RawRecord {
	index := make(map[campground.Key]int, len(records))
	out := make([]campground.RawRecord, 0, len(records))
	for _, rec := range records {
		key, ok := rec.DedupKey()
		if !ok {
			continue
		}
		if i, seen := index[key]; seen {
			out[i] = rec
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}
	return out
}
