package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/i474232898/weather-poller/internal/weather"
)

// DefaultProvider is the selector used when none is configured.
const DefaultProvider = "openweathermap"

// Factory builds a provider from its API key.
type Factory func(apiKey string) weather.Provider

// Registry maps provider selectors to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry holding every built-in provider.
func NewRegistry(cfg HTTPClientConfig) *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(DefaultProvider, func(apiKey string) weather.Provider {
		return NewOpenWeatherProvider(cfg, apiKey)
	})
	return r
}

// Register adds or replaces a factory. Selectors are case-insensitive.
func (r *Registry) Register(name string, f Factory) {
	r.factories[strings.ToLower(name)] = f
}

// New builds the provider registered under name.
func (r *Registry) New(name, apiKey string) (weather.Provider, error) {
	if name == "" {
		name = DefaultProvider
	}
	f, ok := r.factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown weather provider %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(apiKey), nil
}

// Names lists the registered selectors in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
