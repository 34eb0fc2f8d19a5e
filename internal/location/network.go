package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/i474232898/weather-poller/internal/weather"
)

// DefaultNetworkURL asks ip-api.com for a coarse, network-derived position.
const DefaultNetworkURL = "http://ip-api.com/json/?fields=status,message,lat,lon"

// NetworkSource derives a position from the device's public IP address.
type NetworkSource struct {
	client *http.Client
	url    string
}

func NewNetworkSource(client *http.Client, url string) *NetworkSource {
	if url == "" {
		url = DefaultNetworkURL
	}
	return &NetworkSource{client: client, url: url}
}

func (s *NetworkSource) Name() string               { return "network" }
func (s *NetworkSource) Type() weather.LocationType { return weather.LocationNetwork }

func (s *NetworkSource) LastKnown(ctx context.Context) (Fix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Fix{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Fix{}, fmt.Errorf("network location: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Fix{}, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Fix{}, fmt.Errorf("network location: status %d", resp.StatusCode)
	}

	var payload struct {
		Status  string   `json:"status"`
		Message string   `json:"message"`
		Lat     *float64 `json:"lat"`
		Lon     *float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Fix{}, fmt.Errorf("network location: decode: %w", err)
	}
	if (payload.Status != "" && payload.Status != "success") || payload.Lat == nil || payload.Lon == nil {
		return Fix{}, ErrNoFix
	}

	coords, err := weather.NewCoordinates(*payload.Lat, *payload.Lon)
	if err != nil {
		return Fix{}, err
	}
	return Fix{Coordinates: coords, Type: weather.LocationNetwork, Source: s.Name(), Time: time.Now()}, nil
}
