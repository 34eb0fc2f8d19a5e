package weather

import (
	"fmt"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	// ConditionUnknown means the provider supplied no condition code at all.
	ConditionUnknown Condition = "unknown"
	// ConditionOther means a code was supplied but matched no band.
	ConditionOther Condition = "other"

	ConditionThunder Condition = "thunder"
	ConditionDrizzle Condition = "drizzle"
	ConditionRainy   Condition = "rainy"
	ConditionSnowy   Condition = "snowy"
	ConditionFoggy   Condition = "foggy"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionStorm   Condition = "storm"
	ConditionIcy     Condition = "icy"
)

// LocationType tells how the coordinates of a poll were derived.
type LocationType string

const (
	LocationGPS     LocationType = "GPS"
	LocationNetwork LocationType = "NETWORK"
	LocationOther   LocationType = "OTHER"
)

// ParseLocationType maps a source tag onto a LocationType. Anything outside
// the explicit GPS/NETWORK set is OTHER.
func ParseLocationType(s string) LocationType {
	switch LocationType(s) {
	case LocationGPS, LocationNetwork:
		return LocationType(s)
	default:
		return LocationOther
	}
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinates validates latitude and longitude ranges.
func NewCoordinates(lat, lon float64) (Coordinates, error) {
	if lat < -90 || lat > 90 {
		return Coordinates{}, fmt.Errorf("latitude %v out of range [-90,90]", lat)
	}
	if lon < -180 || lon > 180 {
		return Coordinates{}, fmt.Errorf("longitude %v out of range [-180,180]", lon)
	}
	return Coordinates{Lat: lat, Lon: lon}, nil
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.5f,%.5f", c.Lat, c.Lon)
}

// Observation is one normalized current-conditions reading.
//
// Every pointer field is optional: nil means the provider payload did not
// contain the value, never that the value was zero. PrecipitationMm and
// PrecipitationPeriodHours are either both set or both nil.
type Observation struct {
	ObservedAt time.Time
	FetchedAt  time.Time

	// Minutes since local midnight.
	SunRise *int
	SunSet  *int

	TemperatureC  *float64
	PressureHPa   *float64
	HumidityPct   *float64
	CloudinessPct *float64

	PrecipitationMm          *float64
	PrecipitationPeriodHours *int

	Condition Condition
	Source    string
}
