package health

import (
	"context"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

// Breaker is the view of a circuit breaker the backend check needs.
type Breaker interface {
	State() resilience.State
	Failures() int
}

// BackendChecker reports backend health from the circuit breaker guarding
// it. It makes no network calls.
type BackendChecker struct {
	breaker Breaker
	url     string
}

// NewBackendChecker creates a checker for the backend at url.
func NewBackendChecker(breaker Breaker, url string) *BackendChecker {
	return &BackendChecker{breaker: breaker, url: url}
}

// Name returns "backend".
func (c *BackendChecker) Name() string {
	return "backend"
}

// Check maps the breaker state: closed is healthy, half-open degraded,
// open unhealthy.
func (c *BackendChecker) Check(_ context.Context) Result {
	state := c.breaker.State()
	details := map[string]any{
		"url":          c.url,
		"circuitState": state.String(),
		"failures":     c.breaker.Failures(),
	}

	switch state {
	case resilience.StateOpen:
		return Unhealthy("backend circuit open", resilience.ErrCircuitOpen).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("backend circuit probing").WithDetails(details)
	default:
		return Healthy("backend reachable").WithDetails(details)
	}
}

// CacheStats is a function returning the current number of cached entries.
type CacheStats func() int

// CacheChecker reports the response cache size. An in-process cache has
// no failure mode of its own, so it is always healthy.
type CacheChecker struct {
	keys CacheStats
}

// NewCacheChecker creates a cache checker.
func NewCacheChecker(keys CacheStats) *CacheChecker {
	return &CacheChecker{keys: keys}
}

// Name returns "cache".
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check reports the key count.
func (c *CacheChecker) Check(_ context.Context) Result {
	return Healthy("in-memory").WithDetails(map[string]any{"keys": c.keys()})
}

var (
	_ Checker = (*BackendChecker)(nil)
	_ Checker = (*CacheChecker)(nil)
)
