package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-poller/internal/state"
)

const anchorKey = "scheduler_anchor"

// State of the poll timer.
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StateStopped   State = "stopped"
)

// Anchor is the persisted schedule. A restarted process continues on the
// grid it defines instead of polling immediately.
//
// Interval is the interval in effect, which differs from Base after a runtime
// SetInterval. Base is the configured interval the process started with; a
// restart keeps Interval only while the configuration still matches Base.
type Anchor struct {
	Next     time.Time     `json:"next"`
	Interval time.Duration `json:"interval"`
	Base     time.Duration `json:"base,omitempty"`
}

// AnchorStore persists the anchor across restarts.
type AnchorStore interface {
	Load(key string, v any) error
	Save(key string, v any) error
}

// RunFunc executes one poll cycle.
type RunFunc func(ctx context.Context)

// Status is a point-in-time view of the scheduler.
type Status struct {
	State    State         `json:"state"`
	Interval time.Duration `json:"interval"`
	NextRun  time.Time     `json:"nextRun"`
	LastRun  time.Time     `json:"lastRun"`
}

// Scheduler drives poll cycles on a fixed interval with gocron.
type Scheduler struct {
	cron  *gocron.Scheduler
	store AnchorStore
	waker Waker
	run   RunFunc
	log   *slog.Logger
	now   func() time.Time

	// runMu keeps cycles single-flight across scheduled and manual runs.
	runMu sync.Mutex

	mu          sync.Mutex
	state       State
	interval    time.Duration
	base        time.Duration
	job         *gocron.Job
	jobInterval time.Duration
	next        time.Time
	lastRun     time.Time
}

// New creates a Scheduler. A nil waker disables wake reservations.
func New(store AnchorStore, interval time.Duration, waker Waker, run RunFunc) *Scheduler {
	if waker == nil {
		waker = NopWaker{}
	}
	return &Scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		store:    store,
		waker:    waker,
		run:      run,
		log:      slog.Default().With("component", "scheduler"),
		now:      time.Now,
		state:    StateIdle,
		interval: interval,
		base:     interval,
	}
}

// Start arms the first tick from the persisted anchor, if any, and starts the
// underlying scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler: interval must be positive, got %s", s.interval)
	}

	var anchor *Anchor
	var a Anchor
	switch err := s.store.Load(anchorKey, &a); {
	case err == nil:
		anchor = &a
	case errors.Is(err, state.ErrNotFound):
	default:
		s.log.WarnContext(ctx, "ignoring unreadable anchor", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return errors.New("scheduler: already stopped")
	}

	if anchor != nil && anchor.Interval > 0 && anchor.Base == s.base && anchor.Interval != s.interval {
		s.log.InfoContext(ctx, "restoring runtime interval", "interval", anchor.Interval.String())
		s.interval = anchor.Interval
	}

	next := NextTick(anchor, s.interval, s.now())
	if err := s.scheduleLocked(next); err != nil {
		return err
	}
	s.armLocked(ctx, next)

	s.log.InfoContext(ctx, "scheduler started", "interval", s.interval.String(), "next_run", next)
	s.cron.StartAsync()
	return nil
}

// NextTick computes the first tick of a process. With no anchor it is now.
// A future anchor is kept, capped at one interval from now. A past anchor is
// moved forward along its grid to the first slot not before now.
func NextTick(anchor *Anchor, interval time.Duration, now time.Time) time.Time {
	if anchor == nil || anchor.Next.IsZero() || interval <= 0 {
		return now
	}
	if anchor.Next.After(now) {
		if limit := now.Add(interval); anchor.Next.After(limit) {
			return limit
		}
		return anchor.Next
	}
	behind := now.Sub(anchor.Next)
	k := behind / interval
	if behind%interval != 0 {
		k++
	}
	return anchor.Next.Add(k * interval)
}

func (s *Scheduler) scheduleLocked(next time.Time) error {
	iv := s.interval
	sched := s.cron.Every(iv).SingletonMode()
	if next.After(s.now()) {
		sched = sched.StartAt(next)
	} else {
		sched = sched.StartImmediately()
	}

	job, err := sched.Do(s.tick)
	if err != nil {
		return fmt.Errorf("scheduler: schedule job: %w", err)
	}
	s.job = job
	s.jobInterval = iv
	return nil
}

// armLocked records next as the pending tick, persists it and reserves a
// device wake-up for it.
func (s *Scheduler) armLocked(ctx context.Context, next time.Time) {
	s.next = next
	s.state = StateScheduled

	if err := s.store.Save(anchorKey, Anchor{Next: next, Interval: s.interval, Base: s.base}); err != nil {
		s.log.WarnContext(ctx, "failed to persist anchor", "error", err)
	}
	if err := s.waker.Reserve(next); err != nil {
		s.log.WarnContext(ctx, "failed to reserve wake-up", "error", err)
	}
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	start := s.now()

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.lastRun = start
	s.mu.Unlock()

	if s.runMu.TryLock() {
		s.run(ctx)
		s.runMu.Unlock()
	} else {
		s.log.WarnContext(ctx, "previous cycle still running, skipping tick")
	}

	s.rearm(ctx, start)
}

func (s *Scheduler) rearm(ctx context.Context, tickStart time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return
	}

	next := tickStart.Add(s.interval)
	if s.interval != s.jobInterval {
		s.cron.RemoveByReference(s.job)
		if err := s.scheduleLocked(next); err != nil {
			s.log.ErrorContext(ctx, "failed to reschedule", "error", err)
			return
		}
		s.log.InfoContext(ctx, "interval change applied", "interval", s.interval.String(), "next_run", next)
	}
	s.armLocked(ctx, next)
}

// RunNow executes one cycle immediately unless a cycle is already running.
// It does not move the schedule.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	if !s.runMu.TryLock() {
		return false
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	stopped := s.state == StateStopped
	s.mu.Unlock()
	if stopped {
		return false
	}

	s.run(ctx)
	return true
}

// SetInterval changes the interval used for every tick after the pending one.
// The pending tick keeps its time.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("scheduler: interval must be positive, got %s", d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval = d
	if s.state == StateScheduled {
		if err := s.store.Save(anchorKey, Anchor{Next: s.next, Interval: d, Base: s.base}); err != nil {
			s.log.Warn("failed to persist anchor", "error", err)
		}
	}
	s.log.Info("interval updated", "interval", d.String())
	return nil
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:    s.state,
		Interval: s.interval,
		NextRun:  s.next,
		LastRun:  s.lastRun,
	}
}

// Stop cancels the pending tick and releases the wake reservation. It is
// idempotent. An in-flight cycle is left to finish on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.next = time.Time{}
	s.mu.Unlock()

	s.cron.Stop()
	if err := s.waker.Release(); err != nil {
		s.log.Warn("failed to release wake-up", "error", err)
	}
	s.log.Info("scheduler stopped")
}
