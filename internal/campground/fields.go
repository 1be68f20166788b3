package campground

// Upstream attribute keys retained from each search result.
const (
	FieldName                   = "name"
	FieldRegionName             = "region-name"
	FieldAdministrativeArea     = "administrative-area"
	FieldNearestCityName        = "nearest-city-name"
	FieldOperator               = "operator"
	FieldLatitude               = "latitude"
	FieldLongitude              = "longitude"
	FieldLocationID             = "location-id"
	FieldLocationType           = "location-type"
	FieldAccommodationTypeNames = "accommodation-type-names"
	FieldCamperTypes            = "camper-types"
	FieldPinType                = "pin-type"
	FieldPriceLow               = "price-low"
	FieldPriceLowCents          = "price-low-cents"
	FieldPriceLowCurrency       = "price-low-currency"
	FieldPriceHigh              = "price-high"
	FieldPriceHighCents         = "price-high-cents"
	FieldPriceHighCurrency      = "price-high-currency"
	FieldRating                 = "rating"
	FieldReviewsCount           = "reviews-count"
	FieldPhotosCount            = "photos-count"
	FieldVideosCount            = "videos-count"
	FieldBookable               = "bookable"
	FieldClaimed                = "claimed"
	FieldBookingMethod          = "booking-method"
	FieldPhotoURL               = "photo-url"
	FieldPhotoURLs              = "photo-urls"
	FieldSlug                   = "slug"
	FieldAvailabilityUpdatedAt  = "availability-updated-at"
	FieldCreatedAt              = "created-at"
	FieldUpdatedAt              = "updated-at"
)

// Fields is the fixed attribute set a normalized record carries. Keys absent
// upstream are kept with a nil value.
var Fields = []string{
	FieldName,
	FieldRegionName,
	FieldAdministrativeArea,
	FieldNearestCityName,
	FieldOperator,
	FieldLatitude,
	FieldLongitude,
	FieldLocationID,
	FieldLocationType,
	FieldAccommodationTypeNames,
	FieldCamperTypes,
	FieldPinType,
	FieldPriceLow,
	FieldPriceLowCents,
	FieldPriceLowCurrency,
	FieldPriceHigh,
	FieldPriceHighCents,
	FieldPriceHighCurrency,
	FieldRating,
	FieldReviewsCount,
	FieldPhotosCount,
	FieldVideosCount,
	FieldBookable,
	FieldClaimed,
	FieldBookingMethod,
	FieldPhotoURL,
	FieldPhotoURLs,
	FieldSlug,
	FieldAvailabilityUpdatedAt,
	FieldCreatedAt,
	FieldUpdatedAt,
}
