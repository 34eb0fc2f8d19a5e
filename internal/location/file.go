package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/i474232898/weather-poller/internal/weather"
)

// FileSource reads the last satellite fix that the device's GNSS daemon
// writes to disk as {"lat":..,"lon":..,"time":"RFC3339"}.
type FileSource struct {
	path   string
	maxAge time.Duration
	now    func() time.Time
}

// NewFileSource returns a GPS source. Fixes older than maxAge are ignored;
// maxAge <= 0 accepts any age.
func NewFileSource(path string, maxAge time.Duration) *FileSource {
	return &FileSource{path: path, maxAge: maxAge, now: time.Now}
}

func (s *FileSource) Name() string               { return "gps" }
func (s *FileSource) Type() weather.LocationType { return weather.LocationGPS }

type fileFix struct {
	Lat  *float64  `json:"lat"`
	Lon  *float64  `json:"lon"`
	Time time.Time `json:"time"`
}

func (s *FileSource) LastKnown(_ context.Context) (Fix, error) {
	b, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Fix{}, ErrNoFix
	case errors.Is(err, os.ErrPermission):
		return Fix{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case err != nil:
		return Fix{}, fmt.Errorf("read fix file: %w", err)
	}

	var ff fileFix
	if err := json.Unmarshal(b, &ff); err != nil {
		return Fix{}, fmt.Errorf("decode fix file: %w", err)
	}
	if ff.Lat == nil || ff.Lon == nil {
		return Fix{}, ErrNoFix
	}
	if s.maxAge > 0 && !ff.Time.IsZero() && s.now().Sub(ff.Time) > s.maxAge {
		return Fix{}, ErrNoFix
	}

	coords, err := weather.NewCoordinates(*ff.Lat, *ff.Lon)
	if err != nil {
		return Fix{}, err
	}
	return Fix{Coordinates: coords, Type: weather.LocationGPS, Source: s.Name(), Time: ff.Time}, nil
}
