package client

import (
	"sync"
	"sync/atomic"
	"time"
)

// Transition is a change of connectivity.
type Transition struct {
	Online bool
	At     time.Time
}

// Connectivity is the client's view of whether the API is reachable.
//
// Transitions are delivered on a channel with room for one value. A
// transition that has not been consumed yet is replaced by the newer one,
// so a slow consumer always sees the latest state.
type Connectivity struct {
	online      atomic.Bool
	mu          sync.Mutex
	transitions chan Transition
	now         func() time.Time
}

// NewConnectivity creates a Connectivity in the given initial state.
func NewConnectivity(online bool) *Connectivity {
	c := &Connectivity{
		transitions: make(chan Transition, 1),
		now:         time.Now,
	}
	c.online.Store(online)
	return c
}

// Online reports the current state.
func (c *Connectivity) Online() bool {
	return c.online.Load()
}

// SetOnline updates the state and reports whether it changed.
func (c *Connectivity) SetOnline(online bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.online.Load() == online {
		return false
	}
	c.online.Store(online)

	select {
	case <-c.transitions:
	default:
	}
	// Only senders hold mu, so the buffer has room.
	c.transitions <- Transition{Online: online, At: c.now()}
	return true
}

// Transitions returns the channel of state changes.
func (c *Connectivity) Transitions() <-chan Transition {
	return c.transitions
}
