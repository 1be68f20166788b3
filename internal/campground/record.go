package campground

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// RawRecord is one search result: the retained upstream attributes plus the
// canonical URL derived from them.
type RawRecord struct {
	Attributes map[string]any `json:"attributes"`
	URL        string         `json:"url"`
}

// NewRawRecord projects attrs onto Fields and derives the canonical URL.
// siteURL is the public camping root, e.g. "https://thedyrt.com/camping".
func NewRawRecord(attrs map[string]any, siteURL string) RawRecord {
	kept := make(map[string]any, len(Fields))
	for _, field := range Fields {
		kept[field] = attrs[field]
	}
	region, _ := kept[FieldRegionName].(string)
	slug, _ := kept[FieldSlug].(string)
	return RawRecord{
		Attributes: kept,
		URL:        CanonicalURL(siteURL, region, slug),
	}
}

// Get returns the attribute stored under field, or nil.
func (r RawRecord) Get(field string) any {
	if r.Attributes == nil {
		return nil
	}
	return r.Attributes[field]
}

// Key identifies a campground for deduplication within one run.
type Key struct {
	Name      string
	Latitude  float64
	Longitude float64
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%v,%v", k.Name, k.Latitude, k.Longitude)
}

// DedupKey builds the (name, latitude, longitude) key. ok is false when the
// name is empty or either coordinate is missing or not numeric.
func (r RawRecord) DedupKey() (Key, bool) {
	name, err := cast.ToStringE(r.Get(FieldName))
	if err != nil || name == "" {
		return Key{}, false
	}
	lat, ok := coordinate(r.Get(FieldLatitude))
	if !ok {
		return Key{}, false
	}
	lng, ok := coordinate(r.Get(FieldLongitude))
	if !ok {
		return Key{}, false
	}
	return Key{Name: name, Latitude: lat, Longitude: lng}, true
}

func coordinate(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s, collapses every run of characters outside [a-z0-9]
// into a single hyphen and trims hyphens from both ends.
func Slugify(s string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// CanonicalURL builds "<siteURL>/<slugified region>/<slug>".
func CanonicalURL(siteURL, region, slug string) string {
	return strings.TrimRight(siteURL, "/") + "/" + Slugify(region) + "/" + slug
}
