package campground

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Columns lists the persisted columns in the order Values and ScanRow use.
// The surrogate id column is not included.
var Columns = []string{
	"url",
	"name",
	"region_name",
	"administrative_area",
	"nearest_city_name",
	"operator",
	"latitude",
	"longitude",
	"location_id",
	"location_type",
	"accommodation_type_names",
	"camper_types",
	"pin_type",
	"price_low",
	"price_low_cents",
	"price_low_currency",
	"price_high",
	"price_high_cents",
	"price_high_currency",
	"rating",
	"reviews_count",
	"photos_count",
	"videos_count",
	"bookable",
	"claimed",
	"booking_method",
	"photo_url",
	"photo_urls",
	"slug",
	"availability_updated_at",
	"created_at",
	"updated_at",
}

// Values returns the column values of c in Columns order. List fields are
// encoded as JSON text; nil lists become NULL.
func (c Campground) Values() ([]any, error) {
	accommodations, err := encodeList(c.AccommodationTypeNames)
	if err != nil {
		return nil, fmt.Errorf("encode accommodation_type_names: %w", err)
	}
	camperTypes, err := encodeList(c.CamperTypes)
	if err != nil {
		return nil, fmt.Errorf("encode camper_types: %w", err)
	}
	photoURLs, err := encodeList(c.PhotoURLs)
	if err != nil {
		return nil, fmt.Errorf("encode photo_urls: %w", err)
	}
	return []any{
		c.URL,
		c.Name,
		c.RegionName,
		c.AdministrativeArea,
		c.NearestCityName,
		c.Operator,
		c.Latitude,
		c.Longitude,
		c.LocationID,
		c.LocationType,
		accommodations,
		camperTypes,
		c.PinType,
		c.PriceLow,
		c.PriceLowCents,
		c.PriceLowCurrency,
		c.PriceHigh,
		c.PriceHighCents,
		c.PriceHighCurrency,
		c.Rating,
		c.ReviewsCount,
		c.PhotosCount,
		c.VideosCount,
		c.Bookable,
		c.Claimed,
		c.BookingMethod,
		c.PhotoURL,
		photoURLs,
		c.Slug,
		c.AvailabilityUpdatedAt,
		c.CreatedAt,
		c.UpdatedAt,
	}, nil
}

// Scanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanRow reads one row laid out as id followed by Columns.
func ScanRow(s Scanner) (Campground, error) {
	var c Campground
	var accommodations, camperTypes, photoURLs *string
	err := s.Scan(
		&c.ID,
		&c.URL,
		&c.Name,
		&c.RegionName,
		&c.AdministrativeArea,
		&c.NearestCityName,
		&c.Operator,
		&c.Latitude,
		&c.Longitude,
		&c.LocationID,
		&c.LocationType,
		&accommodations,
		&camperTypes,
		&c.PinType,
		&c.PriceLow,
		&c.PriceLowCents,
		&c.PriceLowCurrency,
		&c.PriceHigh,
		&c.PriceHighCents,
		&c.PriceHighCurrency,
		&c.Rating,
		&c.ReviewsCount,
		&c.PhotosCount,
		&c.VideosCount,
		&c.Bookable,
		&c.Claimed,
		&c.BookingMethod,
		&c.PhotoURL,
		&photoURLs,
		&c.Slug,
		&c.AvailabilityUpdatedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Campground{}, err
	}
	if c.AccommodationTypeNames, err = decodeList(accommodations); err != nil {
		return Campground{}, fmt.Errorf("decode accommodation_type_names: %w", err)
	}
	if c.CamperTypes, err = decodeList(camperTypes); err != nil {
		return Campground{}, fmt.Errorf("decode camper_types: %w", err)
	}
	if c.PhotoURLs, err = decodeList(photoURLs); err != nil {
		return Campground{}, fmt.Errorf("decode photo_urls: %w", err)
	}
	return c, nil
}

func encodeList(list []string) (*string, error) {
	if list == nil {
		return nil, nil
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

func decodeList(raw *string) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(*raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}
