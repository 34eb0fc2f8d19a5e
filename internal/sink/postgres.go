package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/i474232898/weather-poller/internal/weather"
)

const createObservationsTable = `
	CREATE TABLE IF NOT EXISTS local_weather (
		id                   BIGSERIAL PRIMARY KEY,
		project_id           TEXT NOT NULL,
		user_id              TEXT NOT NULL,
		source_id            TEXT NOT NULL,
		observed_at          TIMESTAMPTZ NOT NULL,
		received_at          TIMESTAMPTZ NOT NULL,
		sunrise_minute       INTEGER,
		sunset_minute        INTEGER,
		temperature_c        DOUBLE PRECISION,
		pressure_hpa         DOUBLE PRECISION,
		humidity_pct         DOUBLE PRECISION,
		cloudiness_pct       DOUBLE PRECISION,
		precipitation_mm     DOUBLE PRECISION,
		precipitation_period INTEGER,
		condition            TEXT NOT NULL,
		source               TEXT NOT NULL,
		location_type        TEXT NOT NULL
	)`

const insertObservation = `
	INSERT INTO local_weather (
		project_id, user_id, source_id, observed_at, received_at,
		sunrise_minute, sunset_minute, temperature_c, pressure_hpa, humidity_pct,
		cloudiness_pct, precipitation_mm, precipitation_period, condition, source, location_type
	) VALUES (
		:project_id, :user_id, :source_id, :observed_at, :received_at,
		:sunrise_minute, :sunset_minute, :temperature_c, :pressure_hpa, :humidity_pct,
		:cloudiness_pct, :precipitation_mm, :precipitation_period, :condition, :source, :location_type
	)`

// observationRow maps a record onto the table. NULL values are represented
// as nil pointers.
type observationRow struct {
	ProjectID           string    `db:"project_id"`
	UserID              string    `db:"user_id"`
	SourceID            string    `db:"source_id"`
	ObservedAt          time.Time `db:"observed_at"`
	ReceivedAt          time.Time `db:"received_at"`
	SunriseMinute       *int      `db:"sunrise_minute"`
	SunsetMinute        *int      `db:"sunset_minute"`
	TemperatureC        *float64  `db:"temperature_c"`
	PressureHPa         *float64  `db:"pressure_hpa"`
	HumidityPct         *float64  `db:"humidity_pct"`
	CloudinessPct       *float64  `db:"cloudiness_pct"`
	PrecipitationMm     *float64  `db:"precipitation_mm"`
	PrecipitationPeriod *int      `db:"precipitation_period"`
	Condition           string    `db:"condition"`
	Source              string    `db:"source"`
	LocationType        string    `db:"location_type"`
}

func newObservationRow(rec weather.Record) observationRow {
	v := rec.Value
	return observationRow{
		ProjectID:           rec.Key.ProjectID,
		UserID:              rec.Key.UserID,
		SourceID:            rec.Key.SourceID,
		ObservedAt:          rec.ObservedAt().UTC(),
		ReceivedAt:          rec.ReceivedAt().UTC(),
		SunriseMinute:       v.SunRise,
		SunsetMinute:        v.SunSet,
		TemperatureC:        v.Temperature,
		PressureHPa:         v.Pressure,
		HumidityPct:         v.Humidity,
		CloudinessPct:       v.Cloudiness,
		PrecipitationMm:     v.Precipitation,
		PrecipitationPeriod: v.PrecipitationPeriod,
		Condition:           string(v.Condition),
		Source:              v.Source,
		LocationType:        string(v.LocationSource),
	}
}

// Postgres inserts each record as a row of local_weather.
type Postgres struct {
	db *sqlx.DB
}

// OpenPostgres connects with a lib/pq DSN and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := NewPostgres(db)
	if err := p.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createObservationsTable); err != nil {
		return fmt.Errorf("failed to create local_weather table: %w", err)
	}
	return nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Emit(ctx context.Context, rec weather.Record) error {
	if _, err := p.db.NamedExecContext(ctx, insertObservation, newObservationRow(rec)); err != nil {
		return &EmitError{Sink: p.Name(), Err: err}
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
