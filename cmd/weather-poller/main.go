package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-poller/internal/api/http"
	"github.com/i474232898/weather-poller/internal/config"
	"github.com/i474232898/weather-poller/internal/connectivity"
	"github.com/i474232898/weather-poller/internal/exitcode"
	"github.com/i474232898/weather-poller/internal/location"
	"github.com/i474232898/weather-poller/internal/metrics"
	"github.com/i474232898/weather-poller/internal/poll"
	"github.com/i474232898/weather-poller/internal/scheduler"
	"github.com/i474232898/weather-poller/internal/sink"
	"github.com/i474232898/weather-poller/internal/state"
	"github.com/i474232898/weather-poller/internal/store"
	"github.com/i474232898/weather-poller/internal/weather"
	"github.com/i474232898/weather-poller/internal/weather/providers"
)

const serviceName = "weather-poller"

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitcode.ConfigError
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", serviceName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Device state: scheduler anchor and source ID.
	stateStore, err := state.NewFileStore(cfg.StateDir)
	if err != nil {
		slog.Error("failed to open state directory", "dir", cfg.StateDir, "error", err)
		return exitcode.StateError
	}
	sourceID := cfg.Identity.SourceID
	if sourceID == "" {
		if sourceID, err = stateStore.SourceID(); err != nil {
			slog.Error("failed to load source id", "error", err)
			return exitcode.StateError
		}
	}
	key := weather.ObservationKey{
		ProjectID: cfg.Identity.ProjectID,
		UserID:    cfg.Identity.UserID,
		SourceID:  sourceID,
	}

	collector := metrics.NewCollector("weather_poller")

	// Shared HTTP client for outbound provider and location calls.
	httpClient := &http.Client{
		Timeout: cfg.Weather.HTTPTimeout,
	}

	// Connectivity gate.
	monitor := connectivity.NewMonitor(
		connectivity.DialProbe(cfg.Connectivity.ProbeAddr, cfg.Connectivity.ProbeTimeout),
		cfg.Connectivity.ProbeInterval,
	)
	unsubscribe := monitor.Subscribe(collector.SetConnected)
	defer unsubscribe()
	monitor.Start(ctx)
	defer monitor.Close()

	resolver := location.NewResolver(buildLocationSources(cfg, httpClient)...)

	// In-memory store with configured retention. It is always a sink so the
	// API can serve what was emitted.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	sinks, err := buildSinks(ctx, cfg, sourceID)
	if err != nil {
		slog.Error("failed to initialise sink", "error", err)
		return exitcode.SinkError
	}
	out := sink.NewMulti(collector.RecordEmitError, append([]sink.Sink{memStore}, sinks...)...)
	defer func() {
		if err := out.Close(); err != nil {
			slog.Warn("error closing sinks", "error", err)
		}
	}()
	slog.Info("sinks ready", "sinks", out.Names())

	status := poll.NewStatusTracker()

	// Poller. Without an API key or with an unknown provider there is nothing
	// to poll, but the API keeps serving stored data and status.
	var poller httpapi.Poller
	provider, err := providers.NewRegistry(providers.HTTPClientConfig{Client: httpClient}).
		New(cfg.Weather.Provider, cfg.Weather.APIKey)
	switch {
	case err != nil:
		slog.Error("weather polling disabled", "error", err)
		status.Set(poll.StatusDisabled)
	case cfg.Weather.APIKey == "":
		slog.Warn("weather polling disabled: no API key configured")
		status.Set(poll.StatusDisabled)
	default:
		cycle := poll.NewCycle(poll.Config{
			Key:      key,
			Gate:     monitor,
			Resolver: resolver,
			Provider: provider,
			Sink:     out,
			Metrics:  collector,
			Status:   status,
			Timeout:  cfg.Weather.CycleTimeout,
		})

		var waker scheduler.Waker
		if cfg.Weather.WakeDevice {
			waker = scheduler.NewRTCWaker(cfg.Weather.WakeAlarmPath)
		}

		interval := cfg.Weather.QueryInterval()
		sched := scheduler.New(stateStore, interval, waker, func(ctx context.Context) {
			cycle.Run(ctx)
		})
		if err := sched.Start(ctx); err != nil {
			slog.Error("failed to start scheduler", "error", err)
			return exitcode.SchedulerError
		}
		defer sched.Stop()

		collector.SetInterval(interval)
		status.Set(poll.StatusConnected)
		poller = sched
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.Weather.CycleTimeout + 10*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   serviceName,
			"connected": monitor.Connected(),
		})
	})

	httpapi.RegisterMetrics(app, collector.Registry)
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Key:              key,
		History:          memStore,
		Poller:           poller,
		Status:           status,
		OnIntervalChange: collector.SetInterval,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("fiber server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
	return exitcode.Success
}

// buildLocationSources returns the configured sources in priority order:
// GPS fix file, network, static coordinates, geocoded address.
func buildLocationSources(cfg *config.AppConfig, client *http.Client) []location.Source {
	lc := cfg.Location
	var sources []location.Source

	if lc.GPSFixFile != "" {
		sources = append(sources, location.NewFileSource(lc.GPSFixFile, lc.GPSMaxAge))
	}
	if lc.NetworkEnabled {
		sources = append(sources, location.NewNetworkSource(client, lc.NetworkURL))
	}
	if lc.StaticLat != nil && lc.StaticLon != nil {
		coords, err := weather.NewCoordinates(*lc.StaticLat, *lc.StaticLon)
		if err != nil {
			slog.Warn("ignoring static location", "error", err)
		} else {
			sources = append(sources, location.NewStaticSource(coords))
		}
	}
	if lc.GeocodeCity != "" {
		if lc.GeocoderAPIKey == "" {
			slog.Warn("ignoring geocoded location: GEOCODER_API_KEY is not set")
		} else {
			addr := location.Address{
				Street:  lc.GeocodeStreet,
				Number:  lc.GeocodeNumber,
				City:    lc.GeocodeCity,
				State:   lc.GeocodeState,
				Country: lc.GeocodeCountry,
			}
			sources = append(sources, location.NewGeocodedSource(addr, location.GoogleGeocoder(lc.GeocoderAPIKey)))
		}
	}

	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}
	slog.Info("location sources", "sources", names)
	return sources
}

// buildSinks creates the external sinks named in the config. On failure the
// sinks created so far are closed.
func buildSinks(ctx context.Context, cfg *config.AppConfig, sourceID string) ([]sink.Sink, error) {
	sc := cfg.Sinks
	var sinks []sink.Sink

	fail := func(err error) ([]sink.Sink, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, err
	}

	for _, name := range sc.Types {
		switch name {
		case "memory":
			// always present
		case "kafka":
			sinks = append(sinks, sink.NewKafka(sink.KafkaConfig{
				Brokers:      sc.KafkaBrokers,
				Topic:        sc.KafkaTopic,
				WriteTimeout: cfg.Weather.HTTPTimeout,
			}))
		case "mqtt":
			m, err := sink.NewMQTT(sink.MQTTConfig{
				BrokerURL: sc.MQTTBroker,
				ClientID:  serviceName + "-" + sourceID,
				Username:  sc.MQTTUsername,
				Password:  sc.MQTTPassword,
				Topic:     sc.MQTTTopic,
				QoS:       byte(sc.MQTTQoS),
				Timeout:   cfg.Weather.HTTPTimeout,
			})
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, m)
		case "minio":
			m, err := sink.NewMinIO(ctx, sink.MinIOConfig{
				Endpoint:  sc.MinIOEndpoint,
				AccessKey: sc.MinIOAccessKey,
				SecretKey: sc.MinIOSecretKey,
				Bucket:    sc.MinIOBucket,
				UseSSL:    sc.MinIOUseSSL,
			})
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, m)
		case "postgres":
			p, err := sink.OpenPostgres(ctx, sc.PostgresDSN)
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, p)
		}
	}
	return sinks, nil
}
