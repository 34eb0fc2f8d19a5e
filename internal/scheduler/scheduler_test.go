package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/i474232898/weather-poller/internal/state"
)

type recordingWaker struct {
	mu       sync.Mutex
	reserved []time.Time
	released int
}

func (w *recordingWaker) Reserve(at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reserved = append(w.reserved, at)
	return nil
}

func (w *recordingWaker) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.released++
	return nil
}

func newStore(t *testing.T) *state.FileStore {
	t.Helper()
	s, err := state.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNextTick(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	iv := 3 * time.Hour

	cases := []struct {
		name   string
		anchor *Anchor
		want   time.Time
	}{
		{"no anchor", nil, now},
		{"zero anchor", &Anchor{}, now},
		{"future anchor kept", &Anchor{Next: now.Add(time.Hour)}, now.Add(time.Hour)},
		{"future anchor capped", &Anchor{Next: now.Add(10 * time.Hour)}, now.Add(iv)},
		{"anchor exactly now", &Anchor{Next: now}, now},
		{"past anchor aligned", &Anchor{Next: now.Add(-4 * time.Hour)}, now.Add(2 * time.Hour)},
		{"past anchor on grid", &Anchor{Next: now.Add(-6 * time.Hour)}, now},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextTick(tc.anchor, iv, now))
		})
	}
}

func TestFreshStartTicksImmediately(t *testing.T) {
	store := newStore(t)
	waker := &recordingWaker{}
	var ticks atomic.Int32

	s := New(store, time.Hour, waker, func(context.Context) { ticks.Inc() })
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return ticks.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		st := s.Status()
		return st.State == StateScheduled && st.NextRun.Sub(st.LastRun) == time.Hour
	}, time.Second, 10*time.Millisecond)

	var a Anchor
	require.NoError(t, store.Load(anchorKey, &a))
	assert.Equal(t, time.Hour, a.Interval)
	assert.True(t, a.Next.Equal(s.Status().NextRun))
}

func TestRestartWithFutureAnchorDoesNotTick(t *testing.T) {
	store := newStore(t)
	next := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.Save(anchorKey, Anchor{Next: next, Interval: 3 * time.Hour}))

	waker := &recordingWaker{}
	var ticks atomic.Int32
	s := New(store, 3*time.Hour, waker, func(context.Context) { ticks.Inc() })
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 0, ticks.Load())

	st := s.Status()
	assert.Equal(t, StateScheduled, st.State)
	assert.True(t, next.Equal(st.NextRun))

	waker.mu.Lock()
	defer waker.mu.Unlock()
	require.Len(t, waker.reserved, 1)
	assert.True(t, next.Equal(waker.reserved[0]))
}

func TestSetIntervalAffectsOnlyNextTick(t *testing.T) {
	store := newStore(t)
	pending := time.Now().Add(150 * time.Millisecond)
	require.NoError(t, store.Save(anchorKey, Anchor{Next: pending, Interval: 10 * time.Hour}))

	var ticks atomic.Int32
	s := New(store, 10*time.Hour, nil, func(context.Context) { ticks.Inc() })
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, s.SetInterval(20*time.Hour))
	assert.True(t, pending.Equal(s.Status().NextRun), "pending tick keeps its time")

	require.Eventually(t, func() bool { return ticks.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		st := s.Status()
		return st.State == StateScheduled && st.NextRun.Sub(st.LastRun) == 20*time.Hour
	}, time.Second, 10*time.Millisecond)

	st := s.Status()
	assert.False(t, st.LastRun.Before(pending.Add(-50*time.Millisecond)), "tick fired at the old time")
	assert.Equal(t, 20*time.Hour, st.Interval)
}

func TestRestartKeepsRuntimeInterval(t *testing.T) {
	store := newStore(t)
	next := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.Save(anchorKey, Anchor{Next: next, Interval: 2 * time.Hour, Base: 3 * time.Hour}))

	s := New(store, 3*time.Hour, nil, func(context.Context) {})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	st := s.Status()
	assert.Equal(t, 2*time.Hour, st.Interval)
	assert.True(t, next.Equal(st.NextRun))

	var a Anchor
	require.NoError(t, store.Load(anchorKey, &a))
	assert.Equal(t, 2*time.Hour, a.Interval)
	assert.Equal(t, 3*time.Hour, a.Base)
}

func TestRestartWithChangedConfigDropsRuntimeInterval(t *testing.T) {
	store := newStore(t)
	next := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.Save(anchorKey, Anchor{Next: next, Interval: 2 * time.Hour, Base: 5 * time.Hour}))

	s := New(store, 3*time.Hour, nil, func(context.Context) {})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, 3*time.Hour, s.Status().Interval)
}

func TestSetIntervalPersistsForRestart(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Save(anchorKey, Anchor{Next: time.Now().Add(time.Hour), Interval: time.Hour, Base: time.Hour}))

	first := New(store, time.Hour, nil, func(context.Context) {})
	require.NoError(t, first.Start(context.Background()))
	require.NoError(t, first.SetInterval(90*time.Minute))
	first.Stop()

	second := New(store, time.Hour, nil, func(context.Context) {})
	require.NoError(t, second.Start(context.Background()))
	defer second.Stop()

	assert.Equal(t, 90*time.Minute, second.Status().Interval)
}

func TestSetIntervalRejectsNonPositive(t *testing.T) {
	s := New(newStore(t), time.Hour, nil, func(context.Context) {})
	assert.Error(t, s.SetInterval(0))
	assert.Error(t, s.SetInterval(-time.Second))
}

func TestStopIsIdempotent(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Save(anchorKey, Anchor{Next: time.Now().Add(time.Hour), Interval: time.Hour}))

	waker := &recordingWaker{}
	s := New(store, time.Hour, waker, func(context.Context) {})
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	s.Stop()

	st := s.Status()
	assert.Equal(t, StateStopped, st.State)
	assert.True(t, st.NextRun.IsZero())
	assert.Equal(t, 1, waker.released)
	assert.False(t, s.RunNow(context.Background()))
}

func TestRunNowIsSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32

	s := New(newStore(t), time.Hour, nil, func(context.Context) {
		if runs.Inc() == 1 {
			close(started)
			<-release
		}
	})

	done := make(chan bool)
	go func() { done <- s.RunNow(context.Background()) }()
	<-started

	assert.False(t, s.RunNow(context.Background()))
	close(release)
	assert.True(t, <-done)
	assert.True(t, s.RunNow(context.Background()))
	assert.EqualValues(t, 2, runs.Load())
}

func TestRTCWaker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wakealarm")
	w := NewRTCWaker(path)

	at := time.Unix(1714560000, 0)
	require.NoError(t, w.Reserve(at))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(at.Unix(), 10), string(b))

	require.NoError(t, w.Release())
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0", string(b))
}
