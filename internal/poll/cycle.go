package poll

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/weather-poller/internal/location"
	"github.com/i474232898/weather-poller/internal/metrics"
	"github.com/i474232898/weather-poller/internal/sink"
	"github.com/i474232898/weather-poller/internal/weather"
)

// Outcome is the result of one poll cycle.
type Outcome string

const (
	OutcomeEmitted        Outcome = "emitted"
	OutcomeSkippedOffline Outcome = "skipped_offline"
	OutcomeNoLocation     Outcome = "skipped_no_location"
	OutcomeFetchFailed    Outcome = "skipped_fetch_failed"
	OutcomeEmitFailed     Outcome = "emit_failed"
)

// Gate reports whether the network is currently reachable.
type Gate interface {
	Connected() bool
}

// Resolver yields the device's last known location.
type Resolver interface {
	Resolve(ctx context.Context) (location.Fix, bool)
	Len() int
}

// Config wires a Cycle.
type Config struct {
	Key      weather.ObservationKey
	Gate     Gate
	Resolver Resolver
	Provider weather.Provider
	Sink     sink.Sink
	Metrics  *metrics.Collector
	Status   *StatusTracker

	// Timeout bounds the fetch and the emit of one cycle.
	Timeout time.Duration
}

// Cycle runs one acquisition: location, fetch, normalize, emit.
type Cycle struct {
	cfg Config
	log *slog.Logger
}

func NewCycle(cfg Config) *Cycle {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Status == nil {
		cfg.Status = NewStatusTracker()
	}
	return &Cycle{
		cfg: cfg,
		log: slog.Default().With("component", "poll"),
	}
}

// Run executes one cycle. It never returns an error: every failure is logged
// and the cycle waits for the next tick.
//
// The fetch and emit get their own deadline derived from a background
// context, so shutting the process down does not abort an in-flight fetch.
func (c *Cycle) Run(_ context.Context) Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.TicksTotal.Inc()
	}
	outcome := c.run(ctx)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordOutcome(string(outcome))
	}
	c.cfg.Status.Record(outcome, time.Now())
	return outcome
}

func (c *Cycle) run(ctx context.Context) Outcome {
	online := c.cfg.Gate.Connected()
	if !online {
		c.log.WarnContext(ctx, "no internet connection, skipping weather query")
	}

	if c.cfg.Resolver.Len() == 0 {
		c.log.ErrorContext(ctx, "cannot get location without a location source")
		c.cfg.Status.Set(StatusDisconnected)
	}

	fix, ok := c.cfg.Resolver.Resolve(ctx)
	if !online {
		return OutcomeSkippedOffline
	}
	if !ok {
		c.log.ErrorContext(ctx, "could not retrieve location, no input for weather provider")
		return OutcomeNoLocation
	}

	var timer *prometheus.Timer
	if c.cfg.Metrics != nil {
		timer = c.cfg.Metrics.FetchTimer()
	}
	obs, err := c.cfg.Provider.Fetch(ctx, fix.Coordinates)
	if timer != nil {
		timer.ObserveDuration()
	}
	if err != nil {
		c.log.ErrorContext(ctx, "could not get weather", "provider", c.cfg.Provider.Name(), "error", err)
		return OutcomeFetchFailed
	}

	rec := weather.NewRecord(c.cfg.Key, obs, fix.Type, c.cfg.Provider.Name())
	c.log.InfoContext(ctx, "weather",
		"condition", obs.Condition,
		"location_type", fix.Type,
		"sunrise", optional(obs.SunRise),
		"sunset", optional(obs.SunSet),
		"temperature_c", optional(obs.TemperatureC),
	)

	if err := c.cfg.Sink.Emit(ctx, rec); err != nil {
		c.log.ErrorContext(ctx, "failed to emit weather record", "sink", c.cfg.Sink.Name(), "error", err)
		return OutcomeEmitFailed
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordEmitSuccess(time.Now())
	}
	return OutcomeEmitted
}

// optional renders a nil pointer as a JSON null in logs.
func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
