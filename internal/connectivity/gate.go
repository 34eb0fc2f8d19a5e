package connectivity

import "go.uber.org/atomic"

// Gate holds the last known connectivity state. Reads are lock-free
// snapshots; callers must not assume the value stays fixed for a whole cycle.
type Gate struct {
	online atomic.Bool
}

func NewGate(initial bool) *Gate {
	g := &Gate{}
	g.online.Store(initial)
	return g
}

func (g *Gate) Connected() bool {
	return g.online.Load()
}

// Set stores the new state and reports whether it changed.
func (g *Gate) Set(online bool) bool {
	return g.online.Swap(online) != online
}
