package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the poller's Prometheus metrics.
type Collector struct {
	Registry *prometheus.Registry

	TicksTotal      prometheus.Counter
	CycleOutcomes   *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	EmitErrorsTotal *prometheus.CounterVec
	LastEmitSuccess prometheus.Gauge
	Connected       prometheus.Gauge
	IntervalSeconds prometheus.Gauge
}

// NewCollector registers every metric under namespace on a fresh registry,
// which also carries the Go and process collectors.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		Registry: reg,

		TicksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Total number of poll cycles started",
		}),

		CycleOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycle_outcomes_total",
			Help:      "Poll cycles by outcome",
		}, []string{"outcome"}),

		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_fetch_duration_seconds",
			Help:      "Duration of weather provider fetches in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		EmitErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_emit_errors_total",
			Help:      "Failed record emissions by sink",
		}, []string{"sink"}),

		LastEmitSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_emit_success_timestamp_seconds",
			Help:      "Unix time of the last successfully emitted record",
		}),

		Connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "network_connected",
			Help:      "1 when the network is reachable, 0 otherwise",
		}),

		IntervalSeconds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_interval_seconds",
			Help:      "Configured poll interval in seconds",
		}),
	}
}

// FetchTimer starts timing one provider fetch into FetchDuration.
func (c *Collector) FetchTimer() *prometheus.Timer {
	return prometheus.NewTimer(c.FetchDuration)
}

func (c *Collector) RecordOutcome(outcome string) {
	c.CycleOutcomes.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordEmitError(sink string) {
	c.EmitErrorsTotal.WithLabelValues(sink).Inc()
}

func (c *Collector) RecordEmitSuccess(at time.Time) {
	c.LastEmitSuccess.Set(float64(at.Unix()))
}

func (c *Collector) SetConnected(online bool) {
	if online {
		c.Connected.Set(1)
		return
	}
	c.Connected.Set(0)
}

func (c *Collector) SetInterval(d time.Duration) {
	c.IntervalSeconds.Set(d.Seconds())
}
