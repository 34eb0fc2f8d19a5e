package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Hour, cfg.Weather.QueryInterval())
	assert.Equal(t, "openweathermap", cfg.Weather.Provider)
	assert.Empty(t, cfg.Weather.APIKey)
	assert.False(t, cfg.Weather.WakeDevice)
	assert.Equal(t, []string{"memory"}, cfg.Sinks.Types)
	assert.True(t, cfg.Location.NetworkEnabled)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("WEATHER_QUERY_INTERVAL", "3600")
	t.Setenv("WEATHER_WAKE_DEVICE", "true")
	t.Setenv("WEATHER_API_KEY", "k")
	t.Setenv("SINK_TYPES", "memory, kafka")
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("LOCATION_STATIC_LAT", "52.37")
	t.Setenv("LOCATION_STATIC_LON", "4.89")
	t.Setenv("STORE_MAX_AGE", "48h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Weather.QueryInterval())
	assert.True(t, cfg.Weather.WakeDevice)
	assert.Equal(t, "k", cfg.Weather.APIKey)
	assert.Equal(t, []string{"memory", "kafka"}, cfg.Sinks.Types)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Sinks.KafkaBrokers)
	require.NotNil(t, cfg.Location.StaticLat)
	assert.Equal(t, 52.37, *cfg.Location.StaticLat)
	assert.Equal(t, 48*time.Hour, cfg.StoreMaxAge)
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "poller.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
weather:
  query_interval: 7200
  provider: openweathermap
location:
  gps_fix_file: /run/gnss/fix.json
  gps_max_age: 30m
sinks:
  types: [memory, mqtt]
  mqtt_broker: tcp://localhost:1883
port: "9090"
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Weather.QueryInterval())
	assert.Equal(t, "/run/gnss/fix.json", cfg.Location.GPSFixFile)
	assert.Equal(t, 30*time.Minute, cfg.Location.GPSMaxAge)
	assert.Equal(t, "tcp://localhost:1883", cfg.Sinks.MQTTBroker)
	assert.Equal(t, "9191", cfg.Port)
	// Untouched defaults survive the file.
	assert.Equal(t, 15*time.Second, cfg.Weather.HTTPTimeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"malformed interval": {"WEATHER_QUERY_INTERVAL": "soon"},
		"zero interval":      {"WEATHER_QUERY_INTERVAL": "0"},
		"unknown sink":       {"SINK_TYPES": "memory,carrier-pigeon"},
		"bad duration":       {"HTTP_TIMEOUT": "fast"},
		"latitude only":      {"LOCATION_STATIC_LAT": "10"},
		"latitude range":     {"LOCATION_STATIC_LAT": "91", "LOCATION_STATIC_LON": "0"},
		"bad log level":      {"LOG_LEVEL": "loud"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			chdir(t, t.TempDir())
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingSinkSettings(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SINK_TYPES", "postgres")

	_, err := Load()
	var missing *ErrMissingRequiredEnvVar
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "POSTGRES_DSN", missing.Name)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
