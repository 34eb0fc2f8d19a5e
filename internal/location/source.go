package location

import (
	"context"
	"errors"
	"time"

	"github.com/i474232898/weather-poller/internal/weather"
)

var (
	// ErrNoFix means the source currently has no last-known position.
	ErrNoFix = errors.New("no location fix")
	// ErrUnauthorized means the process is not allowed to query the source.
	ErrUnauthorized = errors.New("not authorized to read location")
)

// Fix is one resolved position. It is created fresh for every poll.
type Fix struct {
	Coordinates weather.Coordinates
	Type        weather.LocationType
	Source      string
	Time        time.Time
}

// Source yields the last position it knows about. It must not block on
// acquiring a new position.
type Source interface {
	Name() string
	Type() weather.LocationType
	LastKnown(ctx context.Context) (Fix, error)
}
