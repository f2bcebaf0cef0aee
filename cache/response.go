package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/auth"
)

// ResponseCache stores successful backend payloads by Key and keeps an
// index from trust partition to keys so a token's entries can be dropped
// in one step.
//
// Contract:
// - Concurrency: safe for concurrent use; one RWMutex guards all state.
// - Freshness: once an invalidation returns, Get never yields an entry
// of that partition stored before it.
type ResponseCache struct {
	policy Policy
	now    func() time.Time

	mu          sync.RWMutex
	entries     map[string]*responseEntry
	partitions  map[string]map[string]struct{}
	generations map[string]uint64

	hits   atomic.Int64
	misses atomic.Int64
}

type responseEntry struct {
	payload   []byte
	partition string
	expiresAt time.Time
}

// Stats reports response cache occupancy and effectiveness.
type Stats struct {
	Keys       int            `json:"keys"`
	Hits       int64          `json:"hits"`
	Misses     int64          `json:"misses"`
	Partitions map[string]int `json:"trustTokenBreakdown"`
}

// NewResponseCache creates an empty cache. A zero DefaultTTL in policy
// disables storage.
func NewResponseCache(policy Policy) *ResponseCache {
	return &ResponseCache{
		policy:      policy,
		now:         policy.clock(),
		entries:     make(map[string]*responseEntry),
		partitions:  make(map[string]map[string]struct{}),
		generations: make(map[string]uint64),
	}
}

// Get returns the payload for key if present and unexpired.
func (c *ResponseCache) Get(key Key) ([]byte, bool) {
	k := key.String()

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[k]; ok && cur == e {
			c.deleteLocked(k, e.partition)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.payload, true
}

// Put stores payload under key with the policy's default TTL.
func (c *ResponseCache) Put(key Key, payload []byte) {
	c.mu.Lock()
	c.putLocked(key, payload)
	c.mu.Unlock()
}

// Generation returns the invalidation counter of a partition. Pass it to
// PutIfCurrent to avoid storing a response fetched before an invalidation
// that completed while the fetch was in flight.
func (c *ResponseCache) Generation(partition string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[partition]
}

// PutIfCurrent stores payload only if the key's partition has not been
// invalidated since gen was read. It reports whether the payload was
// stored.
func (c *ResponseCache) PutIfCurrent(key Key, payload []byte, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key.Partition] != gen {
		return false
	}
	return c.putLocked(key, payload)
}

// InvalidateByToken removes every entry in the token's partition and
// returns how many were removed.
//
// A missing or malformed token maps to auth.NoTokenPartition, so this
// clears the whole shared no_token partition.
func (c *ResponseCache) InvalidateByToken(token string, v auth.Validation) int {
	return c.InvalidatePartition(auth.PartitionKey(token, v))
}

// InvalidatePartition removes every entry stored under partition and
// returns how many were removed.
func (c *ResponseCache) InvalidatePartition(partition string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[partition]++
	keys := c.partitions[partition]
	for k := range keys {
		delete(c.entries, k)
	}
	delete(c.partitions, partition)
	return len(keys)
}

// Purge removes expired entries and returns how many were removed.
func (c *ResponseCache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			c.deleteLocked(k, e.partition)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries every CheckPeriod until ctx is done. It
// returns immediately if CheckPeriod is zero.
func (c *ResponseCache) Run(ctx context.Context) {
	if c.policy.CheckPeriod <= 0 {
		return
	}
	ticker := time.NewTicker(c.policy.CheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}

// Stats returns a snapshot of cache statistics. Keys may include expired
// entries not yet purged.
func (c *ResponseCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	breakdown := make(map[string]int, len(c.partitions))
	for p, keys := range c.partitions {
		breakdown[p] = len(keys)
	}
	return Stats{
		Keys:       len(c.entries),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Partitions: breakdown,
	}
}

func (c *ResponseCache) putLocked(key Key, payload []byte) bool {
	ttl := c.policy.EffectiveTTL(0)
	if ttl <= 0 {
		return false
	}

	k := key.String()
	c.entries[k] = &responseEntry{
		payload:   payload,
		partition: key.Partition,
		expiresAt: c.now().Add(ttl),
	}
	idx, ok := c.partitions[key.Partition]
	if !ok {
		idx = make(map[string]struct{})
		c.partitions[key.Partition] = idx
	}
	idx[k] = struct{}{}
	return true
}

func (c *ResponseCache) deleteLocked(k, partition string) {
	delete(c.entries, k)
	if idx, ok := c.partitions[partition]; ok {
		delete(idx, k)
		if len(idx) == 0 {
			delete(c.partitions, partition)
		}
	}
}
