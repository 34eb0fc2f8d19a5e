package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-poller/internal/weather"
)

// OpenWeatherMapName is the identifier written verbatim into every record.
const OpenWeatherMapName = "OpenWeatherMap"

const openWeatherBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherProvider implements weather.Provider against the OpenWeatherMap
// current weather endpoint.
type OpenWeatherProvider struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

// OpenWeatherOption customises an OpenWeatherProvider.
type OpenWeatherOption func(*OpenWeatherProvider)

// WithBaseURL points the provider at another endpoint, e.g. a test server.
func WithBaseURL(u string) OpenWeatherOption {
	return func(p *OpenWeatherProvider) { p.baseURL = u }
}

func NewOpenWeatherProvider(cfg HTTPClientConfig, apiKey string, opts ...OpenWeatherOption) *OpenWeatherProvider {
	p := &OpenWeatherProvider{
		apiKey:  apiKey,
		baseURL: openWeatherBaseURL,
		httpCfg: cfg,
		circuit: newCircuitBreaker("openweathermap", cfg),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return OpenWeatherMapName
}

// owmCode is the "cod" field, which the service sends as a number on success
// and sometimes as a string on errors.
type owmCode int

func (c *owmCode) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("cod %q: %w", s, err)
	}
	*c = owmCode(n)
	return nil
}

type owmPayload struct {
	Cod     *owmCode `json:"cod"`
	Message string   `json:"message"`
	Main    *struct {
		Temp     *float64 `json:"temp"`
		Pressure *float64 `json:"pressure"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Clouds *struct {
		All *float64 `json:"all"`
	} `json:"clouds"`
	Sys *struct {
		Sunrise *int64 `json:"sunrise"`
		Sunset  *int64 `json:"sunset"`
	} `json:"sys"`
	Rain    *owmVolume `json:"rain"`
	Snow    *owmVolume `json:"snow"`
	Weather []struct {
		ID *int `json:"id"`
	} `json:"weather"`
}

type owmVolume struct {
	ThreeH *float64 `json:"3h"`
}

func (v *owmVolume) threeHours() *float64 {
	if v == nil {
		return nil
	}
	return v.ThreeH
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, at weather.Coordinates) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, p.fail(weather.ErrInvalidResponse, errors.New("api key is not configured"))
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(at.Lon, 'f', -1, 64))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			msg := readMessage(se.resp)
			return weather.Observation{}, p.fail(weather.ErrInvalidResponse, fmt.Errorf("%w: %s", err, msg))
		}
		return weather.Observation{}, p.fail(weather.ErrTransport, err)
	}
	defer resp.Body.Close()

	var payload owmPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, p.fail(weather.ErrParse, err)
	}

	// Only an explicit cod 200 marks a usable answer.
	if payload.Cod == nil {
		return weather.Observation{}, p.fail(weather.ErrInvalidResponse,
			fmt.Errorf("missing cod: %s", payload.Message))
	}
	if *payload.Cod != http.StatusOK {
		return weather.Observation{}, p.fail(weather.ErrInvalidResponse,
			fmt.Errorf("cod %d: %s", int(*payload.Cod), payload.Message))
	}

	return p.normalize(payload), nil
}

func (p *OpenWeatherProvider) normalize(payload owmPayload) weather.Observation {
	now := p.now()
	obs := weather.Observation{
		ObservedAt: now,
		FetchedAt:  now,
		Condition:  weather.ConditionUnknown,
		Source:     OpenWeatherMapName,
	}

	if m := payload.Main; m != nil {
		obs.TemperatureC = m.Temp
		obs.PressureHPa = m.Pressure
		obs.HumidityPct = m.Humidity
	}
	if c := payload.Clouds; c != nil {
		obs.CloudinessPct = c.All
	}
	if s := payload.Sys; s != nil {
		obs.SunRise, obs.SunSet = weather.SunTimes(s.Sunrise, s.Sunset)
	}

	obs.PrecipitationMm, obs.PrecipitationPeriodHours =
		weather.AggregatePrecipitation(payload.Rain.threeHours(), payload.Snow.threeHours())

	if len(payload.Weather) > 0 && payload.Weather[0].ID != nil {
		obs.Condition = weather.ClassifyCode(*payload.Weather[0].ID)
	}

	return obs
}

func (p *OpenWeatherProvider) fail(kind, err error) error {
	return weather.NewProviderError(kind, OpenWeatherMapName, err)
}

func readMessage(resp *http.Response) string {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(body))
}
