package connectivity

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// ProbeFunc reports whether the network is usable.
type ProbeFunc func(ctx context.Context) bool

// DialProbe returns a probe that succeeds when a TCP connection to addr can
// be opened within timeout.
func DialProbe(addr string, timeout time.Duration) ProbeFunc {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// Monitor periodically probes the network, keeps a Gate current and notifies
// subscribers on every change.
type Monitor struct {
	gate     *Gate
	probe    ProbeFunc
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]func(bool)

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(probe ProbeFunc, interval time.Duration) *Monitor {
	return &Monitor{
		gate:     NewGate(false),
		probe:    probe,
		interval: interval,
		log:      slog.Default().With("component", "connectivity"),
		subs:     make(map[int]func(bool)),
	}
}

// Gate returns the gate fed by this monitor.
func (m *Monitor) Gate() *Gate {
	return m.gate
}

func (m *Monitor) Connected() bool {
	return m.gate.Connected()
}

// Subscribe registers fn for state changes and returns a func that removes it.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Start probes once synchronously and then in the background until Close.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	m.check(ctx)

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

// Check runs one probe immediately.
func (m *Monitor) Check(ctx context.Context) {
	m.check(ctx)
}

func (m *Monitor) check(ctx context.Context) {
	online := m.probe(ctx)
	if !m.gate.Set(online) {
		return
	}
	m.log.InfoContext(ctx, "connectivity changed", "online", online)

	m.mu.Lock()
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// Close stops background probing. It is safe to call more than once.
func (m *Monitor) Close() error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	<-m.done
	return nil
}
