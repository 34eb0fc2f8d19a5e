package poll

import (
	"sync"
	"time"
)

// Status is the device-level state of the poller.
type Status string

const (
	StatusReady        Status = "ready"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusDisabled     Status = "disabled"
)

// Snapshot is what the status endpoint reports.
type Snapshot struct {
	Status      Status    `json:"status"`
	LastOutcome Outcome   `json:"lastOutcome,omitempty"`
	LastCycle   time.Time `json:"lastCycle,omitempty"`
	LastEmit    time.Time `json:"lastEmit,omitempty"`
}

// StatusTracker is shared between the cycle and the API.
type StatusTracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{snap: Snapshot{Status: StatusReady}}
}

func (t *StatusTracker) Set(s Status) {
	t.mu.Lock()
	t.snap.Status = s
	t.mu.Unlock()
}

// Record stores the outcome of a finished cycle.
func (t *StatusTracker) Record(o Outcome, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.LastOutcome = o
	t.snap.LastCycle = at
	if o == OutcomeEmitted {
		t.snap.LastEmit = at
	}
}

func (t *StatusTracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}
