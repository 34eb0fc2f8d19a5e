package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-poller/internal/poll"
	"github.com/i474232898/weather-poller/internal/scheduler"
	"github.com/i474232898/weather-poller/internal/store"
	"github.com/i474232898/weather-poller/internal/weather"
)

var validate = validator.New()

// History serves previously emitted records.
type History interface {
	GetLatest(key weather.ObservationKey) (weather.Record, error)
	GetRange(key weather.ObservationKey, from, to time.Time) ([]weather.Record, error)
}

// Poller is the runtime control surface of the scheduler.
type Poller interface {
	Status() scheduler.Status
	SetInterval(d time.Duration) error
	RunNow(ctx context.Context) bool
}

// Deps are the collaborators the routes read from.
type Deps struct {
	Key     weather.ObservationKey
	History History
	Status  *poll.StatusTracker

	// Poller is nil when polling is disabled.
	Poller Poller

	// OnIntervalChange, if set, is called after a successful interval update.
	OnIntervalChange func(time.Duration)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/latest", func(c *fiber.Ctx) error {
		rec, err := deps.History.GetLatest(deps.Key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather data yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}

		return c.JSON(rec)
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records, err := deps.History.GetRange(deps.Key, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}

		return c.JSON(fiber.Map{
			"key":     deps.Key,
			"from":    req.From,
			"to":      req.To,
			"records": records,
		})
	})

	v1.Get("/poller", func(c *fiber.Ctx) error {
		resp := fiber.Map{"status": deps.Status.Snapshot()}
		if deps.Poller == nil {
			resp["enabled"] = false
			return c.JSON(resp)
		}

		st := deps.Poller.Status()
		resp["enabled"] = true
		resp["scheduler"] = fiber.Map{
			"state":            st.State,
			"interval_seconds": int64(st.Interval / time.Second),
			"next_run":         optionalTime(st.NextRun),
			"last_run":         optionalTime(st.LastRun),
		}
		return c.JSON(resp)
	})

	v1.Put("/poller/interval", func(c *fiber.Ctx) error {
		if deps.Poller == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "polling is disabled")
		}

		var req intervalRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		d := time.Duration(req.Seconds) * time.Second
		if err := deps.Poller.SetInterval(d); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if deps.OnIntervalChange != nil {
			deps.OnIntervalChange(d)
		}

		return c.JSON(fiber.Map{"interval_seconds": req.Seconds})
	})

	v1.Post("/poller/run", func(c *fiber.Ctx) error {
		if deps.Poller == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "polling is disabled")
		}
		if !deps.Poller.RunNow(c.UserContext()) {
			return fiber.NewError(fiber.StatusConflict, "a poll cycle is already running")
		}

		return c.JSON(fiber.Map{"status": deps.Status.Snapshot()})
	})
}

// RegisterMetrics exposes the Prometheus registry on /metrics.
func RegisterMetrics(app *fiber.App, reg *prometheus.Registry) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
}

// maxIntervalSeconds caps the poll interval at 30 days.
const maxIntervalSeconds = 30 * 24 * 60 * 60

// intervalRequest is the body of PUT /poller/interval.
type intervalRequest struct {
	Seconds int64 `json:"seconds" validate:"required,gt=0,lte=2592000"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
