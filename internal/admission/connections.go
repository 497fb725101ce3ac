package admission

import (
	"sync"

	"carbid/pkg/logger"
)

// ConnectionGate caps the number of concurrent connections per client origin.
// The counter is independent of auction logic; it only sees acquire/release.
type ConnectionGate struct {
	mu    sync.Mutex
	conns map[string]int
	max   int
	log   *logger.Logger
}

func NewConnectionGate(max int, log *logger.Logger) *ConnectionGate {
	return &ConnectionGate{
		conns: make(map[string]int),
		max:   max,
		log:   log,
	}
}

// TryAcquire reserves a connection slot for the origin. It reports false when
// the origin already holds the configured maximum.
func (g *ConnectionGate) TryAcquire(origin string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conns[origin] >= g.max {
		g.log.Warn("Connection cap exceeded", "origin", origin, "max", g.max)
		return false
	}
	g.conns[origin]++
	return true
}

// Release returns a slot for the origin, floored at zero.
func (g *ConnectionGate) Release(origin string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conns[origin] <= 1 {
		delete(g.conns, origin)
		return
	}
	g.conns[origin]--
}

// Count reports the current connection count for an origin.
func (g *ConnectionGate) Count(origin string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conns[origin]
}
