package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-poller/internal/weather"
)

// StaticSource always answers with a configured position.
type StaticSource struct {
	coords weather.Coordinates
}

func NewStaticSource(coords weather.Coordinates) *StaticSource {
	return &StaticSource{coords: coords}
}

func (s *StaticSource) Name() string               { return "static" }
func (s *StaticSource) Type() weather.LocationType { return weather.LocationOther }

func (s *StaticSource) LastKnown(context.Context) (Fix, error) {
	return Fix{Coordinates: s.coords, Type: weather.LocationOther, Source: s.Name(), Time: time.Now()}, nil
}

// Address is a postal address to geocode.
type Address struct {
	Street  string
	Number  int
	City    string
	State   string
	Country string
}

// GeocodeFunc resolves an address to a position.
type GeocodeFunc func(Address) (weather.Coordinates, error)

// GoogleGeocoder returns a GeocodeFunc backed by the Google Maps geocoding
// API. The kelvins/geocoder client keeps its key in a package variable.
func GoogleGeocoder(apiKey string) GeocodeFunc {
	geocoder.ApiKey = apiKey
	return func(a Address) (weather.Coordinates, error) {
		loc, err := geocoder.Geocoding(geocoder.Address{
			Street:  a.Street,
			Number:  a.Number,
			City:    a.City,
			State:   a.State,
			Country: a.Country,
		})
		if err != nil {
			return weather.Coordinates{}, err
		}
		return weather.NewCoordinates(loc.Latitude, loc.Longitude)
	}
}

// GeocodedSource resolves a configured address once and then answers with
// the result. A failed lookup is retried on the next call.
type GeocodedSource struct {
	addr    Address
	geocode GeocodeFunc

	mu     sync.Mutex
	coords *weather.Coordinates
}

func NewGeocodedSource(addr Address, geocode GeocodeFunc) *GeocodedSource {
	return &GeocodedSource{addr: addr, geocode: geocode}
}

func (s *GeocodedSource) Name() string               { return "geocoded" }
func (s *GeocodedSource) Type() weather.LocationType { return weather.LocationOther }

func (s *GeocodedSource) LastKnown(context.Context) (Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.coords == nil {
		c, err := s.geocode(s.addr)
		if err != nil {
			return Fix{}, fmt.Errorf("geocode %s, %s: %w", s.addr.City, s.addr.Country, err)
		}
		s.coords = &c
	}
	return Fix{Coordinates: *s.coords, Type: weather.LocationOther, Source: s.Name(), Time: time.Now()}, nil
}
