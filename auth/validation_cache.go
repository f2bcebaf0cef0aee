package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// ValidationCacheConfig configures the validation result cache.
type ValidationCacheConfig struct {
	// TTL is how long a backend verdict is reused. It should be shorter
	// than the response cache TTL.
	// Default: 5 minutes
	TTL time.Duration

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// ValidationCache memoizes a Validator's verdicts per token signature.
//
// Concurrent lookups for the same signature share one backend call.
// Results of type ValidationBackendError are never stored, so an outage
// cannot pin a token as invalid.
type ValidationCache struct {
	next Validator
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]validationEntry

	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

type validationEntry struct {
	result    Result
	expiresAt time.Time
}

// NewValidationCache wraps next.
func NewValidationCache(next Validator, config ValidationCacheConfig) *ValidationCache {
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &ValidationCache{
		next:    next,
		ttl:     config.TTL,
		now:     config.Now,
		entries: make(map[string]validationEntry),
	}
}

// Validate returns a cached verdict when one is fresh, otherwise asks the
// wrapped Validator.
func (c *ValidationCache) Validate(ctx context.Context, token string) Result {
	key := TokenSignature(token)

	if r, ok := c.get(key); ok {
		c.hits.Add(1)
		return r
	}
	c.misses.Add(1)

	v, _, _ := c.group.Do(key, func() (any, error) {
		if r, ok := c.get(key); ok {
			return r, nil
		}
		// Detached so one caller giving up does not fail the others
		// waiting on this flight. The wrapped validator owns the deadline.
		r := c.next.Validate(context.WithoutCancel(ctx), token)
		if r.Type != ValidationBackendError {
			c.set(key, r)
		}
		return r, nil
	})
	return v.(Result)
}

// Forget drops any cached verdict for token.
func (c *ValidationCache) Forget(token string) {
	key := TokenSignature(token)
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge removes expired entries and returns how many were removed.
func (c *ValidationCache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// ValidationCacheStats reports cache occupancy and effectiveness.
type ValidationCacheStats struct {
	Keys   int   `json:"keys"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Stats returns current statistics. Keys may include expired entries not
// yet purged.
func (c *ValidationCache) Stats() ValidationCacheStats {
	c.mu.RLock()
	keys := len(c.entries)
	c.mu.RUnlock()
	return ValidationCacheStats{Keys: keys, Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *ValidationCache) get(key string) (Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return Result{}, false
	}
	r := e.result
	r.Type = ValidationCached
	return r, true
}

func (c *ValidationCache) set(key string, r Result) {
	c.mu.Lock()
	c.entries[key] = validationEntry{result: r, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// TokenSignature returns the validation cache key for a token: the hashed
// "signature" field when the token is a JSON trust token object, otherwise
// the hash of the whole token.
func TokenSignature(token string) string {
	if gjson.Valid(token) {
		if sig := gjson.Get(token, "signature"); sig.Type == gjson.String && sig.Str != "" {
			return "sig:" + HashToken(sig.Str)
		}
	}
	return "tok:" + HashToken(token)
}

var _ Validator = (*ValidationCache)(nil)
