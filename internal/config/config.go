package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultQueryInterval is the poll interval used when none is configured.
const DefaultQueryInterval = 3 * time.Hour

type AppConfig struct {
	Weather      WeatherConfig      `yaml:"weather"`
	Identity     IdentityConfig     `yaml:"identity"`
	Location     LocationConfig     `yaml:"location"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Sinks        SinksConfig        `yaml:"sinks"`

	// StateDir holds the scheduler anchor and the device source ID.
	StateDir string `yaml:"state_dir" validate:"required"`

	// In-memory store retention.
	StoreMaxHistory int           `yaml:"store_max_history" validate:"gte=0"` // max records kept (0 = unlimited)
	StoreMaxAge     time.Duration `yaml:"store_max_age" validate:"gte=0"`     // max age of records (0 = unlimited)

	Port     string `yaml:"port" validate:"required,numeric"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

type WeatherConfig struct {
	// QueryIntervalSeconds is how often the weather is polled.
	QueryIntervalSeconds int `yaml:"query_interval" validate:"gt=0"`
	// WakeDevice programs the RTC to wake the device for each poll.
	WakeDevice    bool   `yaml:"wake_device"`
	WakeAlarmPath string `yaml:"wake_alarm_path"`

	Provider string `yaml:"provider"`
	// APIKey may be empty, which disables polling.
	APIKey string `yaml:"api_key"`

	HTTPTimeout  time.Duration `yaml:"http_timeout" validate:"gt=0"`
	CycleTimeout time.Duration `yaml:"cycle_timeout" validate:"gt=0"`
}

// QueryInterval returns the poll interval as a duration.
func (w WeatherConfig) QueryInterval() time.Duration {
	return time.Duration(w.QueryIntervalSeconds) * time.Second
}

type IdentityConfig struct {
	ProjectID string `yaml:"project_id"`
	UserID    string `yaml:"user_id"`
	// SourceID overrides the generated, persisted source ID.
	SourceID string `yaml:"source_id"`
}

type LocationConfig struct {
	GPSFixFile string        `yaml:"gps_fix_file"`
	GPSMaxAge  time.Duration `yaml:"gps_max_age" validate:"gte=0"`

	NetworkEnabled bool   `yaml:"network_enabled"`
	NetworkURL     string `yaml:"network_url" validate:"omitempty,url"`

	StaticLat *float64 `yaml:"static_lat" validate:"omitempty,latitude"`
	StaticLon *float64 `yaml:"static_lon" validate:"omitempty,longitude"`

	GeocodeStreet  string `yaml:"geocode_street"`
	GeocodeNumber  int    `yaml:"geocode_number"`
	GeocodeCity    string `yaml:"geocode_city"`
	GeocodeState   string `yaml:"geocode_state"`
	GeocodeCountry string `yaml:"geocode_country"`
	GeocoderAPIKey string `yaml:"geocoder_api_key"`
}

type ConnectivityConfig struct {
	ProbeAddr     string        `yaml:"probe_addr" validate:"required,hostname_port"`
	ProbeInterval time.Duration `yaml:"probe_interval" validate:"gt=0"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout" validate:"gt=0"`
}

type SinksConfig struct {
	Types []string `yaml:"types" validate:"min=1,dive,oneof=memory kafka mqtt minio postgres"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTUsername string `yaml:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password"`
	MQTTQoS      int    `yaml:"mqtt_qos" validate:"gte=0,lte=2"`

	MinIOEndpoint  string `yaml:"minio_endpoint"`
	MinIOAccessKey string `yaml:"minio_access_key"`
	MinIOSecretKey string `yaml:"minio_secret_key"`
	MinIOBucket    string `yaml:"minio_bucket"`
	MinIOUseSSL    bool   `yaml:"minio_use_ssl"`

	PostgresDSN string `yaml:"postgres_dsn"`
}

// Enabled reports whether the named sink is configured.
func (s SinksConfig) Enabled(name string) bool {
	return slices.Contains(s.Types, name)
}

type ErrMissingRequiredEnvVar struct {
	Name string
}

func (e *ErrMissingRequiredEnvVar) Error() string {
	return fmt.Sprintf("required environment variable %q is not set", e.Name)
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *AppConfig {
	return &AppConfig{
		Weather: WeatherConfig{
			QueryIntervalSeconds: int(DefaultQueryInterval / time.Second),
			Provider:             "openweathermap",
			HTTPTimeout:          15 * time.Second,
			CycleTimeout:         45 * time.Second,
		},
		Identity: IdentityConfig{
			ProjectID: "weather-poller",
			UserID:    "device",
		},
		Location: LocationConfig{
			NetworkEnabled: true,
		},
		Connectivity: ConnectivityConfig{
			ProbeAddr:     "api.openweathermap.org:443",
			ProbeInterval: time.Minute,
			ProbeTimeout:  5 * time.Second,
		},
		Sinks: SinksConfig{
			Types:      []string{"memory"},
			KafkaTopic: "android_local_weather",
			MQTTTopic:  "android_local_weather",
			MQTTQoS:    1,
		},
		StateDir:        "./state",
		StoreMaxHistory: 96,
		StoreMaxAge:     14 * 24 * time.Hour,
		Port:            "8080",
		LogLevel:        "info",
	}
}

// Load reads configuration from an optional YAML file (CONFIG_FILE), then
// overrides it with environment variables, then validates the result.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the settings each enabled sink needs.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if (c.Location.StaticLat == nil) != (c.Location.StaticLon == nil) {
		return errors.New("invalid config: LOCATION_STATIC_LAT and LOCATION_STATIC_LON must be set together")
	}

	s := c.Sinks
	switch {
	case s.Enabled("kafka") && len(s.KafkaBrokers) == 0:
		return &ErrMissingRequiredEnvVar{Name: "KAFKA_BROKERS"}
	case s.Enabled("mqtt") && s.MQTTBroker == "":
		return &ErrMissingRequiredEnvVar{Name: "MQTT_BROKER"}
	case s.Enabled("minio") && s.MinIOEndpoint == "":
		return &ErrMissingRequiredEnvVar{Name: "MINIO_ENDPOINT"}
	case s.Enabled("minio") && s.MinIOBucket == "":
		return &ErrMissingRequiredEnvVar{Name: "MINIO_BUCKET"}
	case s.Enabled("postgres") && s.PostgresDSN == "":
		return &ErrMissingRequiredEnvVar{Name: "POSTGRES_DSN"}
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	w := &cfg.Weather
	collect(getenvInt("WEATHER_QUERY_INTERVAL", &w.QueryIntervalSeconds))
	collect(getenvBool("WEATHER_WAKE_DEVICE", &w.WakeDevice))
	getenvString("WEATHER_WAKE_ALARM_PATH", &w.WakeAlarmPath)
	getenvString("WEATHER_PROVIDER", &w.Provider)
	getenvString("WEATHER_API_KEY", &w.APIKey)
	collect(getenvDuration("HTTP_TIMEOUT", &w.HTTPTimeout))
	collect(getenvDuration("CYCLE_TIMEOUT", &w.CycleTimeout))

	getenvString("PROJECT_ID", &cfg.Identity.ProjectID)
	getenvString("USER_ID", &cfg.Identity.UserID)
	getenvString("SOURCE_ID", &cfg.Identity.SourceID)

	l := &cfg.Location
	getenvString("LOCATION_GPS_FILE", &l.GPSFixFile)
	collect(getenvDuration("LOCATION_GPS_MAX_AGE", &l.GPSMaxAge))
	collect(getenvBool("LOCATION_NETWORK_ENABLED", &l.NetworkEnabled))
	getenvString("LOCATION_NETWORK_URL", &l.NetworkURL)
	collect(getenvFloatPtr("LOCATION_STATIC_LAT", &l.StaticLat))
	collect(getenvFloatPtr("LOCATION_STATIC_LON", &l.StaticLon))
	getenvString("LOCATION_GEOCODE_STREET", &l.GeocodeStreet)
	collect(getenvInt("LOCATION_GEOCODE_NUMBER", &l.GeocodeNumber))
	getenvString("LOCATION_GEOCODE_CITY", &l.GeocodeCity)
	getenvString("LOCATION_GEOCODE_STATE", &l.GeocodeState)
	getenvString("LOCATION_GEOCODE_COUNTRY", &l.GeocodeCountry)
	getenvString("GEOCODER_API_KEY", &l.GeocoderAPIKey)

	c := &cfg.Connectivity
	getenvString("CONNECTIVITY_PROBE_ADDR", &c.ProbeAddr)
	collect(getenvDuration("CONNECTIVITY_PROBE_INTERVAL", &c.ProbeInterval))
	collect(getenvDuration("CONNECTIVITY_PROBE_TIMEOUT", &c.ProbeTimeout))

	s := &cfg.Sinks
	getenvList("SINK_TYPES", &s.Types)
	getenvList("KAFKA_BROKERS", &s.KafkaBrokers)
	getenvString("KAFKA_TOPIC", &s.KafkaTopic)
	getenvString("MQTT_BROKER", &s.MQTTBroker)
	getenvString("MQTT_TOPIC", &s.MQTTTopic)
	getenvString("MQTT_USERNAME", &s.MQTTUsername)
	getenvString("MQTT_PASSWORD", &s.MQTTPassword)
	collect(getenvInt("MQTT_QOS", &s.MQTTQoS))
	getenvString("MINIO_ENDPOINT", &s.MinIOEndpoint)
	getenvString("MINIO_ACCESS_KEY", &s.MinIOAccessKey)
	getenvString("MINIO_SECRET_KEY", &s.MinIOSecretKey)
	getenvString("MINIO_BUCKET", &s.MinIOBucket)
	collect(getenvBool("MINIO_USE_SSL", &s.MinIOUseSSL))
	getenvString("POSTGRES_DSN", &s.PostgresDSN)

	getenvString("STATE_DIR", &cfg.StateDir)
	collect(getenvInt("STORE_MAX_HISTORY", &cfg.StoreMaxHistory))
	collect(getenvDuration("STORE_MAX_AGE", &cfg.StoreMaxAge))
	getenvString("PORT", &cfg.Port)
	getenvString("LOG_LEVEL", &cfg.LogLevel)

	return errors.Join(errs...)
}

func getenvString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func getenvInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func getenvBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func getenvDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func getenvFloatPtr(key string, dst **float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = &f
	return nil
}

func getenvList(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
