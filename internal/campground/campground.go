package campground

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

var (
	// ErrNotFound is returned by stores when no campground matches a lookup.
	ErrNotFound = errors.New("campground not found")
	// ErrMissingURL marks a record that cannot be persisted because it has no canonical URL.
	ErrMissingURL = errors.New("campground record has no url")
)

// Campground is the persisted entity, unique by URL. Nil fields are unknown.
type Campground struct {
	ID                     int64      `json:"id"`
	URL                    string     `json:"url"`
	Name                   *string    `json:"name"`
	RegionName             *string    `json:"region_name"`
	AdministrativeArea     *string    `json:"administrative_area"`
	NearestCityName        *string    `json:"nearest_city_name"`
	Operator               *string    `json:"operator"`
	Latitude               *float64   `json:"latitude"`
	Longitude              *float64   `json:"longitude"`
	LocationID             *int64     `json:"location_id"`
	LocationType           *string    `json:"location_type"`
	AccommodationTypeNames []string   `json:"accommodation_type_names"`
	CamperTypes            []string   `json:"camper_types"`
	PinType                *string    `json:"pin_type"`
	PriceLow               *string    `json:"price_low"`
	PriceLowCents          *int64     `json:"price_low_cents"`
	PriceLowCurrency       *string    `json:"price_low_currency"`
	PriceHigh              *string    `json:"price_high"`
	PriceHighCents         *int64     `json:"price_high_cents"`
	PriceHighCurrency      *string    `json:"price_high_currency"`
	Rating                 *float64   `json:"rating"`
	ReviewsCount           *int64     `json:"reviews_count"`
	PhotosCount            *int64     `json:"photos_count"`
	VideosCount            *int64     `json:"videos_count"`
	Bookable               *bool      `json:"bookable"`
	Claimed                *bool      `json:"claimed"`
	BookingMethod          *string    `json:"booking_method"`
	PhotoURL               *string    `json:"photo_url"`
	PhotoURLs              []string   `json:"photo_urls"`
	Slug                   *string    `json:"slug"`
	AvailabilityUpdatedAt  *time.Time `json:"availability_updated_at"`
	CreatedAt              *time.Time `json:"created_at"`
	UpdatedAt              *time.Time `json:"updated_at"`
}

// FromRecord coerces a raw record into the entity shape. Values that fail
// coercion become nil rather than failing the record; only a missing URL is
// an error.
func FromRecord(r RawRecord) (Campground, error) {
	if strings.TrimSpace(r.URL) == "" {
		return Campground{}, ErrMissingURL
	}
	return Campground{
		URL:                    r.URL,
		Name:                   toString(r.Get(FieldName)),
		RegionName:             toString(r.Get(FieldRegionName)),
		AdministrativeArea:     toString(r.Get(FieldAdministrativeArea)),
		NearestCityName:        toString(r.Get(FieldNearestCityName)),
		Operator:               toString(r.Get(FieldOperator)),
		Latitude:               toFloat(r.Get(FieldLatitude)),
		Longitude:              toFloat(r.Get(FieldLongitude)),
		LocationID:             toInt(r.Get(FieldLocationID)),
		LocationType:           toString(r.Get(FieldLocationType)),
		AccommodationTypeNames: toStrings(r.Get(FieldAccommodationTypeNames)),
		CamperTypes:            toStrings(r.Get(FieldCamperTypes)),
		PinType:                toString(r.Get(FieldPinType)),
		PriceLow:               toString(r.Get(FieldPriceLow)),
		PriceLowCents:          toInt(r.Get(FieldPriceLowCents)),
		PriceLowCurrency:       toString(r.Get(FieldPriceLowCurrency)),
		PriceHigh:              toString(r.Get(FieldPriceHigh)),
		PriceHighCents:         toInt(r.Get(FieldPriceHighCents)),
		PriceHighCurrency:      toString(r.Get(FieldPriceHighCurrency)),
		Rating:                 toFloat(r.Get(FieldRating)),
		ReviewsCount:           toInt(r.Get(FieldReviewsCount)),
		PhotosCount:            toInt(r.Get(FieldPhotosCount)),
		VideosCount:            toInt(r.Get(FieldVideosCount)),
		Bookable:               toBool(r.Get(FieldBookable)),
		Claimed:                toBool(r.Get(FieldClaimed)),
		BookingMethod:          toString(r.Get(FieldBookingMethod)),
		PhotoURL:               toString(r.Get(FieldPhotoURL)),
		PhotoURLs:              toStrings(r.Get(FieldPhotoURLs)),
		Slug:                   toString(r.Get(FieldSlug)),
		AvailabilityUpdatedAt:  toTime(r.Get(FieldAvailabilityUpdatedAt)),
		CreatedAt:              toTime(r.Get(FieldCreatedAt)),
		UpdatedAt:              toTime(r.Get(FieldUpdatedAt)),
	}, nil
}

// Merge applies incoming over existing: every non-nil incoming field replaces
// the stored value and nil fields leave it untouched. ID and URL come from
// existing.
func Merge(existing, incoming Campground) Campground {
	out := existing
	out.Name = pick(incoming.Name, existing.Name)
	out.RegionName = pick(incoming.RegionName, existing.RegionName)
	out.AdministrativeArea = pick(incoming.AdministrativeArea, existing.AdministrativeArea)
	out.NearestCityName = pick(incoming.NearestCityName, existing.NearestCityName)
	out.Operator = pick(incoming.Operator, existing.Operator)
	out.Latitude = pick(incoming.Latitude, existing.Latitude)
	out.Longitude = pick(incoming.Longitude, existing.Longitude)
	out.LocationID = pick(incoming.LocationID, existing.LocationID)
	out.LocationType = pick(incoming.LocationType, existing.LocationType)
	out.AccommodationTypeNames = pickSlice(incoming.AccommodationTypeNames, existing.AccommodationTypeNames)
	out.CamperTypes = pickSlice(incoming.CamperTypes, existing.CamperTypes)
	out.PinType = pick(incoming.PinType, existing.PinType)
	out.PriceLow = pick(incoming.PriceLow, existing.PriceLow)
	out.PriceLowCents = pick(incoming.PriceLowCents, existing.PriceLowCents)
	out.PriceLowCurrency = pick(incoming.PriceLowCurrency, existing.PriceLowCurrency)
	out.PriceHigh = pick(incoming.PriceHigh, existing.PriceHigh)
	out.PriceHighCents = pick(incoming.PriceHighCents, existing.PriceHighCents)
	out.PriceHighCurrency = pick(incoming.PriceHighCurrency, existing.PriceHighCurrency)
	out.Rating = pick(incoming.Rating, existing.Rating)
	out.ReviewsCount = pick(incoming.ReviewsCount, existing.ReviewsCount)
	out.PhotosCount = pick(incoming.PhotosCount, existing.PhotosCount)
	out.VideosCount = pick(incoming.VideosCount, existing.VideosCount)
	out.Bookable = pick(incoming.Bookable, existing.Bookable)
	out.Claimed = pick(incoming.Claimed, existing.Claimed)
	out.BookingMethod = pick(incoming.BookingMethod, existing.BookingMethod)
	out.PhotoURL = pick(incoming.PhotoURL, existing.PhotoURL)
	out.PhotoURLs = pickSlice(incoming.PhotoURLs, existing.PhotoURLs)
	out.Slug = pick(incoming.Slug, existing.Slug)
	out.AvailabilityUpdatedAt = pick(incoming.AvailabilityUpdatedAt, existing.AvailabilityUpdatedAt)
	out.CreatedAt = pick(incoming.CreatedAt, existing.CreatedAt)
	out.UpdatedAt = pick(incoming.UpdatedAt, existing.UpdatedAt)
	return out
}

func pick[T any](incoming, existing *T) *T {
	if incoming != nil {
		return incoming
	}
	return existing
}

func pickSlice[T any](incoming, existing []T) []T {
	if incoming != nil {
		return incoming
	}
	return existing
}

func toString(v any) *string {
	if v == nil {
		return nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil
	}
	return &s
}

func toInt(v any) *int64 {
	if v == nil {
		return nil
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return nil
	}
	return &n
}

func toFloat(v any) *float64 {
	if v == nil {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	return &f
}

// toBool treats strings as true only when they read "true" in any case.
func toBool(v any) *bool {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		b := strings.EqualFold(strings.TrimSpace(t), "true")
		return &b
	default:
		b, err := cast.ToBoolE(t)
		if err != nil {
			return nil
		}
		return &b
	}
}

func toStrings(v any) []string {
	if v == nil {
		return nil
	}
	s, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil
	}
	return s
}

// toTime parses ISO-8601 timestamps with a trailing Z or an explicit offset.
// Anything unparseable is nil.
func toTime(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		utc := t.UTC()
		return &utc
	case string:
		parsed, err := parseTimestamp(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		utc := parsed.UTC()
		return &utc
	default:
		return nil
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
