package weather

import "context"

// Provider abstracts a current-conditions weather source (e.g. OpenWeatherMap).
//
// Fetch either returns a complete Observation or a *ProviderError; it never
// returns a partially filled observation alongside an error.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, at Coordinates) (Observation, error)
}
