// Package resilience provides the failure-handling primitives shared by the
// gateway and its clients.
//
// # Patterns
//
//   - Circuit Breaker: one process-wide guard per dependency. After
//     FailureThreshold consecutive failures it opens, short-circuits calls
//     for Cooldown, and then lets a single probe through. The open to
//     half-open transition happens lazily inside IsOpen, on the first check
//     after the cooldown, never from a timer.
//
//   - Retry: exponential backoff of BaseDelay·Multiplier^(n-1), capped at
//     MaxDelay. Delay is exported so callers that carry the attempt count on
//     their own request type can compute waits themselves.
//
//   - WindowLimiter: a per-key fixed-window budget (for example 100 requests
//     per hour per client IP). A spent budget comes back only when the
//     key's window ends.
//
//   - Timeout: a fixed deadline per call. A call that overruns is abandoned,
//     not killed, and its result is discarded.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    Cooldown:         time.Minute,
//	})
//
//	if cb.IsOpen() {
//	    return resilience.ErrCircuitOpen
//	}
//	resp, err := callBackend(ctx)
//	if err != nil {
//	    cb.RecordFailure()
//	    return err
//	}
//	cb.RecordSuccess()
//
// # Thread Safety
//
// All types are safe for concurrent use. Each holds its own lock; no two
// primitives share state.
package resilience
