package cache

import "time"

// Policy configures caching behavior.
type Policy struct {
	// DefaultTTL is the TTL to use when none is specified.
	// If zero, caching is disabled by default.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// CheckPeriod is how often background sweeps remove expired entries.
	// If zero, entries are only expired lazily on read.
	CheckPeriod time.Duration

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// DefaultPolicy returns the default response caching policy.
// DefaultTTL: 1 hour, MaxTTL: 24 hours, CheckPeriod: 10 minutes
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL:  time.Hour,
		MaxTTL:      24 * time.Hour,
		CheckPeriod: 10 * time.Minute,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}

	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}

func (p Policy) clock() func() time.Time {
	if p.Now == nil {
		return time.Now
	}
	return p.Now
}
