package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-poller/internal/weather"
)

var testKey = weather.ObservationKey{ProjectID: "p", UserID: "u", SourceID: "s"}

func recordAt(t time.Time) weather.Record {
	return weather.NewRecord(testKey, weather.Observation{
		ObservedAt: t,
		FetchedAt:  t,
		Condition:  weather.ConditionClear,
	}, weather.LocationGPS, "OpenWeatherMap")
}

func TestMemoryStoreLatestAndRange(t *testing.T) {
	s := NewMemoryStore(0, 0)
	base := time.Unix(1714560000, 0)

	_, err := s.GetLatest(testKey)
	assert.ErrorIs(t, err, ErrNotFound)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Emit(context.Background(), recordAt(base.Add(time.Duration(i)*time.Hour))))
	}

	latest, err := s.GetLatest(testKey)
	require.NoError(t, err)
	assert.True(t, base.Add(4*time.Hour).Equal(latest.ObservedAt()))

	got, err := s.GetRange(testKey, base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = s.GetRange(testKey, base.Add(10*time.Hour), base.Add(11*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetLatest(weather.ObservationKey{SourceID: "other"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreRetentionByCount(t *testing.T) {
	s := NewMemoryStore(2, 0)
	base := time.Unix(1714560000, 0)
	for i := 0; i < 4; i++ {
		s.Save(recordAt(base.Add(time.Duration(i) * time.Minute)))
	}

	got, err := s.GetRange(testKey, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, base.Add(2*time.Minute).Equal(got[0].ObservedAt()))
}

func TestMemoryStoreRetentionByAge(t *testing.T) {
	now := time.Unix(1714560000, 0)
	s := NewMemoryStore(0, time.Hour)
	s.now = func() time.Time { return now }

	s.Save(recordAt(now.Add(-3 * time.Hour)))
	s.Save(recordAt(now.Add(-2 * time.Hour)))
	s.Save(recordAt(now.Add(-10 * time.Minute)))

	got, err := s.GetRange(testKey, now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// A lone stale record is still the latest thing we know.
	s2 := NewMemoryStore(0, time.Hour)
	s2.now = func() time.Time { return now }
	s2.Save(recordAt(now.Add(-5 * time.Hour)))
	_, err = s2.GetLatest(testKey)
	assert.NoError(t, err)
}
