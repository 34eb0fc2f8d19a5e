package location

import (
	"context"
	"errors"
	"log/slog"

	"github.com/i474232898/weather-poller/internal/weather"
)

// Resolver walks its sources from most to least precise and returns the
// first fix found.
type Resolver struct {
	sources []Source
	log     *slog.Logger
}

func NewResolver(sources ...Source) *Resolver {
	return &Resolver{
		sources: sources,
		log:     slog.Default().With("component", "location"),
	}
}

// Len reports how many sources are configured.
func (r *Resolver) Len() int {
	return len(r.sources)
}

// Resolve returns the best available fix. ok is false when no source has a
// fix or the process is not authorized to query location at all.
func (r *Resolver) Resolve(ctx context.Context) (fix Fix, ok bool) {
	for _, src := range r.sources {
		f, err := src.LastKnown(ctx)
		switch {
		case err == nil:
			if f.Type == "" {
				f.Type = src.Type()
			}
			f.Type = weather.ParseLocationType(string(f.Type))
			if f.Source == "" {
				f.Source = src.Name()
			}
			return f, true
		case errors.Is(err, ErrUnauthorized):
			r.log.WarnContext(ctx, "location access denied", "source", src.Name(), "error", err)
			return Fix{}, false
		case errors.Is(err, ErrNoFix):
			r.log.DebugContext(ctx, "no fix from source", "source", src.Name())
		default:
			r.log.WarnContext(ctx, "location source failed", "source", src.Name(), "error", err)
		}
	}
	return Fix{}, false
}
