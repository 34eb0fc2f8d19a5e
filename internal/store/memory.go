package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-poller/internal/weather"
)

var (
	// ErrNotFound is returned when no record is available for a key.
	ErrNotFound = errors.New("no weather data for key")
)

// RecordHistory holds a time-ordered list of records for one observation key.
type RecordHistory struct {
	Records []weather.Record
}

// MemoryStore is a concurrency-safe in-memory record history. It doubles as
// a sink so the HTTP API can serve what the poller emitted.
type MemoryStore struct {
	mu sync.RWMutex

	// key: observation key, value: history
	data map[weather.ObservationKey]*RecordHistory

	// retention configuration
	maxHistory int           // max number of records per key
	maxAge     time.Duration // optional max age of records

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[weather.ObservationKey]*RecordHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func (s *MemoryStore) Name() string { return "memory" }

// Emit appends rec and enforces retention.
func (s *MemoryStore) Emit(_ context.Context, rec weather.Record) error {
	s.Save(rec)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Save appends a record for its key and enforces retention.
func (s *MemoryStore) Save(rec weather.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[rec.Key]
	if !ok {
		history = &RecordHistory{}
		s.data[rec.Key] = history
	}

	history.Records = append(history.Records, rec)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Records) > s.maxHistory {
		over := len(history.Records) - s.maxHistory
		history.Records = history.Records[over:]
	}

	// Enforce retention by age. The newest record always survives.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Records)-1; i++ {
			if !history.Records[i].ObservedAt().Before(cutoff) {
				break
			}
		}
		history.Records = history.Records[i:]
	}
}

// GetLatest returns the most recent record for key.
func (s *MemoryStore) GetLatest(key weather.ObservationKey) (weather.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Records) == 0 {
		return weather.Record{}, ErrNotFound
	}
	return history.Records[len(history.Records)-1], nil
}

// GetRange returns all records for key observed between from and to (inclusive).
func (s *MemoryStore) GetRange(key weather.ObservationKey, from, to time.Time) ([]weather.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Records) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Record
	for _, rec := range history.Records {
		at := rec.ObservedAt()
		if !at.Before(from) && !at.After(to) {
			result = append(result, rec)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
