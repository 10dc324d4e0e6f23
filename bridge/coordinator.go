package bridge

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/Alia5/padbridge/internal/log"
)

// Coordinator tracks remote sessions that share the controller I/O with
// running bridges and decides which bridges should hold their polling.
//
// In exclusive mode only the most recently registered connection is live:
// every other gate, including gates for bridges without a connection,
// reports paused while at least one connection is registered.
type Coordinator struct {
	mu        sync.Mutex
	exclusive bool
	active    []string
	logger    *slog.Logger
}

// NewCoordinator returns a Coordinator. A non-exclusive coordinator never pauses.
func NewCoordinator(exclusive bool, logger *slog.Logger) *Coordinator {
	return &Coordinator{exclusive: exclusive, logger: log.Or(logger)}
}

// RegisterActiveConnection records that a remote session opened.
// Registering an id twice moves it to the front.
func (c *Coordinator) RegisterActiveConnection(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = slices.DeleteFunc(c.active, func(s string) bool { return s == id })
	c.active = append(c.active, id)
	c.logger.Debug("connection registered", "conn", id, "active", len(c.active))
}

// UnregisterActiveConnection records that a remote session closed.
func (c *Coordinator) UnregisterActiveConnection(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = slices.DeleteFunc(c.active, func(s string) bool { return s == id })
	c.logger.Debug("connection unregistered", "conn", id, "active", len(c.active))
}

// ActiveConnections returns the registered ids, oldest first.
func (c *Coordinator) ActiveConnections() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.active)
}

// Gate returns the pause gate for the bridge serving connection id. Use an
// empty id for a bridge that is not tied to a remote session.
func (c *Coordinator) Gate(id string) PauseGate {
	return coordinatorGate{c: c, id: id}
}

func (c *Coordinator) paused(id string) bool {
	if !c.exclusive {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.active)
	return n > 0 && c.active[n-1] != id
}

type coordinatorGate struct {
	c  *Coordinator
	id string
}

func (g coordinatorGate) Paused() bool { return g.c.paused(g.id) }
