package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures a per-key request budget.
type RateLimiterConfig struct {
	// Requests is the number of requests allowed per Window.
	// Default: 100
	Requests int

	// Window is the length of the budget window.
	// Default: 1 hour
	Window time.Duration

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// WindowLimiter enforces a budget of Requests per Window for each key
// (typically a client IP). Windows are fixed: a key's window opens on its
// first request and its budget is restored in full only when the window
// ends.
type WindowLimiter struct {
	config RateLimiterConfig

	mu      sync.Mutex
	windows map[string]*window
	calls   int
}

type window struct {
	start time.Time
	count int
}

// pruneEvery is how many Allow calls pass between expired-window sweeps.
const pruneEvery = 1024

// NewWindowLimiter creates a new per-key limiter.
func NewWindowLimiter(config RateLimiterConfig) *WindowLimiter {
	if config.Requests <= 0 {
		config.Requests = 100
	}
	if config.Window <= 0 {
		config.Window = time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &WindowLimiter{
		config:  config,
		windows: make(map[string]*window),
	}
}

// Allow consumes one request from key's budget. When the budget is spent it
// returns false and the time left until key's window resets. Denied
// requests consume nothing.
func (wl *WindowLimiter) Allow(key string) (bool, time.Duration) {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	now := wl.config.Now()
	wl.calls++
	if wl.calls%pruneEvery == 0 {
		wl.pruneLocked(now)
	}

	w, ok := wl.windows[key]
	if !ok || wl.expired(w, now) {
		w = &window{start: now}
		wl.windows[key] = w
	}
	if w.count < wl.config.Requests {
		w.count++
		return true, 0
	}
	return false, w.start.Add(wl.config.Window).Sub(now)
}

// Execute runs op if key still has budget, otherwise returns
// ErrRateLimitExceeded.
func (wl *WindowLimiter) Execute(ctx context.Context, key string, op func(context.Context) error) error {
	if ok, _ := wl.Allow(key); !ok {
		return ErrRateLimitExceeded
	}
	return op(ctx)
}

// Remaining returns the requests left in key's current window.
func (wl *WindowLimiter) Remaining(key string) int {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	w, ok := wl.windows[key]
	if !ok || wl.expired(w, wl.config.Now()) {
		return wl.config.Requests
	}
	return wl.config.Requests - w.count
}

// ResetIn returns how long until key's window ends, or the full Window for
// a key with no open window.
func (wl *WindowLimiter) ResetIn(key string) time.Duration {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	now := wl.config.Now()
	w, ok := wl.windows[key]
	if !ok || wl.expired(w, now) {
		return wl.config.Window
	}
	return w.start.Add(wl.config.Window).Sub(now)
}

// Config returns the limiter configuration.
func (wl *WindowLimiter) Config() RateLimiterConfig {
	return wl.config
}

// Reset forgets every key.
func (wl *WindowLimiter) Reset() {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	wl.windows = make(map[string]*window)
}

func (wl *WindowLimiter) expired(w *window, now time.Time) bool {
	return !now.Before(w.start.Add(wl.config.Window))
}

func (wl *WindowLimiter) pruneLocked(now time.Time) {
	for key, w := range wl.windows {
		if wl.expired(w, now) {
			delete(wl.windows, key)
		}
	}
}
