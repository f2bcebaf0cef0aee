package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow to the dependency normally.
	StateClosed State = iota
	// StateOpen means calls are short-circuited until the cooldown elapses.
	StateOpen
	// StateHalfOpen means the next call is let through as a probe.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	// Default: 5
	FailureThreshold int

	// Cooldown is how long the circuit stays open before a probe is allowed.
	// Default: 60 seconds
	Cooldown time.Duration

	// OnStateChange is called on every state transition, with the
	// breaker's lock held. It must not call back into the breaker.
	OnStateChange func(from, to State)

	// IsFailure determines if an error returned by Execute counts as a
	// dependency failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// CircuitBreaker guards a single dependency. It has no per-caller
// dimension: one instance protects one backend for the whole process.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	nextAttempt time.Time
}

// NewCircuitBreaker creates a new circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 60 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// IsOpen reports whether calls must be short-circuited.
//
// An open circuit whose cooldown has elapsed moves to half-open as a side
// effect of this check, and IsOpen then returns false so the caller may
// send the probe.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.config.Now().After(cb.nextAttempt) {
		cb.setStateLocked(StateHalfOpen)
	}
	return cb.state == StateOpen
}

// RecordSuccess closes the circuit and zeroes the failure counter,
// whatever state the breaker was in.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.successes++
	cb.setStateLocked(StateClosed)
}

// RecordFailure counts a dependency failure.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.config.Now()
	cb.failures++
	cb.lastFailure = now

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.nextAttempt = now.Add(cb.config.Cooldown)
			cb.setStateLocked(StateOpen)
		}
	case StateHalfOpen:
		// Probe failed: reopen with a fresh cooldown window.
		cb.nextAttempt = now.Add(cb.config.Cooldown)
		cb.setStateLocked(StateOpen)
	case StateOpen:
		cb.nextAttempt = now.Add(cb.config.Cooldown)
	}
}

// Execute runs op unless the circuit is open, and records its outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if cb.IsOpen() {
		return ErrCircuitOpen
	}

	err := op(ctx)
	if cb.config.IsFailure(err) {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return err
}

// State returns the current state without triggering the lazy
// open to half-open transition.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the circuit closed with a zero failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.successes = 0
	cb.nextAttempt = time.Time{}
	cb.setStateLocked(StateClosed)
}

func (cb *CircuitBreaker) setStateLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:       cb.state,
		Failures:    cb.failures,
		Successes:   cb.successes,
		LastFailure: cb.lastFailure,
		NextAttempt: cb.nextAttempt,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State       State
	Failures    int
	Successes   int
	LastFailure time.Time
	NextAttempt time.Time
}
