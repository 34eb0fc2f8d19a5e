package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-poller/internal/weather"
)

const fullPayload = `{
	"cod": 200,
	"coord": {"lon": 4.89, "lat": 52.37},
	"weather": [{"id": 501, "main": "Rain"}, {"id": 800}],
	"main": {"temp": 11.2, "pressure": 1013, "humidity": 87},
	"clouds": {"all": 75},
	"rain": {"3h": 2.0},
	"snow": {"3h": 1.5},
	"sys": {"sunrise": 1714537800, "sunset": 1714591800}
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenWeatherProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewOpenWeatherProvider(HTTPClientConfig{Client: srv.Client()}, "secret", WithBaseURL(srv.URL))
	p.now = func() time.Time { return time.Unix(1714560000, 0) }
	return p
}

func TestOpenWeatherFetchFullPayload(t *testing.T) {
	var query string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(fullPayload))
	})

	obs, err := p.Fetch(context.Background(), weather.Coordinates{Lat: 52.37, Lon: 4.89})
	require.NoError(t, err)

	assert.Contains(t, query, "lat=52.37")
	assert.Contains(t, query, "lon=4.89")
	assert.Contains(t, query, "appid=secret")
	assert.Contains(t, query, "units=metric")

	assert.Equal(t, OpenWeatherMapName, p.Name())
	assert.Equal(t, OpenWeatherMapName, obs.Source)
	assert.Equal(t, weather.ConditionRainy, obs.Condition)
	assert.Equal(t, time.Unix(1714560000, 0), obs.ObservedAt)
	assert.Equal(t, obs.ObservedAt, obs.FetchedAt)

	require.NotNil(t, obs.TemperatureC)
	assert.Equal(t, 11.2, *obs.TemperatureC)
	require.NotNil(t, obs.PressureHPa)
	assert.Equal(t, 1013.0, *obs.PressureHPa)
	require.NotNil(t, obs.HumidityPct)
	assert.Equal(t, 87.0, *obs.HumidityPct)
	require.NotNil(t, obs.CloudinessPct)
	assert.Equal(t, 75.0, *obs.CloudinessPct)

	require.NotNil(t, obs.PrecipitationMm)
	assert.Equal(t, 3.5, *obs.PrecipitationMm)
	require.NotNil(t, obs.PrecipitationPeriodHours)
	assert.Equal(t, 3, *obs.PrecipitationPeriodHours)

	wantRise := weather.MinuteOfDay(ptrTime(time.Unix(1714537800, 0)))
	require.NotNil(t, obs.SunRise)
	assert.Equal(t, *wantRise, *obs.SunRise)
	require.NotNil(t, obs.SunSet)
}

func TestOpenWeatherFetchMissingBlocks(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cod": 200, "main": {"temp": 4.0}, "rain": {"1h": 0.4}, "sys": {"sunrise": 0}}`))
	})

	obs, err := p.Fetch(context.Background(), weather.Coordinates{Lat: 1, Lon: 2})
	require.NoError(t, err)

	require.NotNil(t, obs.TemperatureC)
	assert.Equal(t, 4.0, *obs.TemperatureC)
	assert.Nil(t, obs.HumidityPct)
	assert.Nil(t, obs.PressureHPa)
	assert.Nil(t, obs.CloudinessPct)
	assert.Nil(t, obs.SunRise)
	assert.Nil(t, obs.SunSet)
	assert.Nil(t, obs.PrecipitationMm)
	assert.Nil(t, obs.PrecipitationPeriodHours)
	assert.Equal(t, weather.ConditionUnknown, obs.Condition)
}

func TestOpenWeatherFetchEmptyPrecipitationBlock(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cod": 200, "rain": {}, "snow": {"3h": 1}}`))
	})

	obs, err := p.Fetch(context.Background(), weather.Coordinates{Lat: 1, Lon: 2})
	require.NoError(t, err)

	// A block without 3h contributes nothing; the other channel still counts.
	require.NotNil(t, obs.PrecipitationMm)
	assert.Equal(t, 1.0, *obs.PrecipitationMm)
	require.NotNil(t, obs.PrecipitationPeriodHours)
	assert.Equal(t, 3, *obs.PrecipitationPeriodHours)
}

func TestOpenWeatherFetchOnlyEmptyPrecipitationBlocks(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cod": 200, "rain": {}, "snow": {}}`))
	})

	obs, err := p.Fetch(context.Background(), weather.Coordinates{Lat: 1, Lon: 2})
	require.NoError(t, err)
	assert.Nil(t, obs.PrecipitationMm)
	assert.Nil(t, obs.PrecipitationPeriodHours)
}

func TestOpenWeatherFetchErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"cod marks answer unusable", http.StatusOK, `{"cod": "404", "message": "city not found"}`, weather.ErrInvalidResponse},
		{"empty object", http.StatusOK, `{}`, weather.ErrInvalidResponse},
		{"null body", http.StatusOK, `null`, weather.ErrInvalidResponse},
		{"message without cod", http.StatusOK, `{"message": "x"}`, weather.ErrInvalidResponse},
		{"null cod", http.StatusOK, `{"cod": null, "main": {"temp": 3}}`, weather.ErrInvalidResponse},
		{"unauthorized", http.StatusUnauthorized, `{"cod": 401, "message": "Invalid API key"}`, weather.ErrInvalidResponse},
		{"malformed json", http.StatusOK, `{"cod": 200, "main": `, weather.ErrParse},
		{"server error", http.StatusBadGateway, `oops`, weather.ErrTransport},
		{"rate limited", http.StatusTooManyRequests, ``, weather.ErrTransport},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			obs, err := p.Fetch(context.Background(), weather.Coordinates{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
			assert.Equal(t, weather.Observation{}, obs)
		})
	}
}

func TestOpenWeatherBreakerOpensAfterTransportFailures(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 5; i++ {
		_, err := p.Fetch(context.Background(), weather.Coordinates{})
		require.ErrorIs(t, err, weather.ErrTransport)
	}

	_, err := p.Fetch(context.Background(), weather.Coordinates{})
	require.ErrorIs(t, err, weather.ErrTransport)
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.EqualValues(t, 5, calls.Load())
}

func TestOpenWeatherWithoutKey(t *testing.T) {
	p := NewOpenWeatherProvider(HTTPClientConfig{Client: http.DefaultClient}, "")
	_, err := p.Fetch(context.Background(), weather.Coordinates{})
	assert.ErrorIs(t, err, weather.ErrInvalidResponse)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(HTTPClientConfig{Client: http.DefaultClient})

	p, err := r.New("", "k")
	require.NoError(t, err)
	assert.Equal(t, OpenWeatherMapName, p.Name())

	p, err = r.New("OpenWeatherMap", "k")
	require.NoError(t, err)
	assert.Equal(t, OpenWeatherMapName, p.Name())

	_, err = r.New("darksky", "k")
	assert.Error(t, err)
	assert.Equal(t, []string{"openweathermap"}, r.Names())
}

func ptrTime(t time.Time) *time.Time { return &t }
