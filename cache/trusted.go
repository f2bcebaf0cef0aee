package cache

import (
	"context"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/auth"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
)

// FetchFunc produces a fresh payload from the backend.
type FetchFunc func(ctx context.Context) ([]byte, error)

// TrustValidator asks the trust authority whether a token is still valid.
// auth.ValidationCache and auth.HTTPValidator satisfy it.
type TrustValidator interface {
	Validate(ctx context.Context, token string) auth.Result
}

// Request describes a cacheable gateway call.
type Request struct {
	Method     string
	Path       string
	Body       []byte
	Token      string
	Validation auth.Validation
}

// Key returns the cache key for r.
func (r Request) Key() Key {
	return NewKey(r.Method, r.Path, r.Body, auth.PartitionKey(r.Token, r.Validation))
}

// TrustedCacheConfig configures a TrustedCache.
type TrustedCacheConfig struct {
	Cache     *ResponseCache
	Validator TrustValidator

	// Logger receives security events. Default: discard.
	Logger observe.Logger

	// Auditor records TRUST_TOKEN_REVOKED when the trust authority rejects
	// the token behind a cached response. Default: discard.
	Auditor *observe.Auditor

	// Metrics counts lookups and invalidations. Default: no-op.
	Metrics observe.Metrics
}

// TrustedCache wraps backend calls with a response cache that re-checks
// the caller's token before serving any hit.
type TrustedCache struct {
	cache     *ResponseCache
	validator TrustValidator
	logger    observe.Logger
	auditor   *observe.Auditor
	metrics   observe.Metrics
}

// NewTrustedCache creates a TrustedCache.
func NewTrustedCache(config TrustedCacheConfig) (*TrustedCache, error) {
	if config.Cache == nil {
		return nil, ErrNilCache
	}
	if config.Validator == nil {
		return nil, ErrNilValidator
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Auditor == nil {
		config.Auditor = observe.NewAuditor(nil)
	}
	if config.Metrics == nil {
		config.Metrics = observe.NopMetrics()
	}
	return &TrustedCache{
		cache:     config.Cache,
		validator: config.Validator,
		logger:    config.Logger,
		auditor:   config.Auditor,
		metrics:   config.Metrics,
	}, nil
}

// Cache returns the underlying response cache.
func (m *TrustedCache) Cache() *ResponseCache {
	return m.cache
}

// Execute serves req from cache when the caller's token is still trusted,
// otherwise calls fetch and caches a successful result.
//
// Hits are only served for valid-format tokens that the validator
// confirms. A hit whose token is rejected, or whose validation fails,
// invalidates the token's whole partition before refetching. Entries in
// the shared no_token partition are never served. Errors are NOT cached.
func (m *TrustedCache) Execute(ctx context.Context, req Request, fetch FetchFunc) ([]byte, observe.CacheOutcome, error) {
	key := req.Key()
	outcome := observe.CacheMiss

	if req.Token != "" && !req.Validation.Valid {
		cleared := m.cache.InvalidatePartition(auth.NoTokenPartition)
		m.metrics.RecordInvalidation(ctx, cleared)
		m.logger.Warn(ctx, "malformed trust token, no_token partition cleared",
			observe.Field{Key: "reason", Value: string(req.Validation.Reason)},
			observe.Field{Key: "tokenLength", Value: len(req.Token)},
			observe.Field{Key: "entriesCleared", Value: cleared},
		)
	}

	if payload, ok := m.cache.Get(key); ok {
		if key.Partition != auth.NoTokenPartition {
			result := m.validator.Validate(ctx, req.Token)
			m.metrics.RecordValidation(ctx, string(result.Type))
			if result.Valid {
				m.metrics.RecordCacheLookup(ctx, observe.CacheHit)
				return payload, observe.CacheHit, nil
			}

			cleared := m.cache.InvalidatePartition(key.Partition)
			m.metrics.RecordInvalidation(ctx, cleared)
			m.logger.Warn(ctx, "cached response withheld, trust token not confirmed",
				observe.Field{Key: "partition", Value: key.Partition},
				observe.Field{Key: "validationType", Value: string(result.Type)},
				observe.Field{Key: "statusCode", Value: result.StatusCode},
				observe.Field{Key: "entriesCleared", Value: cleared},
			)
			if result.Type != auth.ValidationBackendError {
				m.auditor.Record(ctx, observe.AuditRecord{
					Event:       observe.EventTokenRevoked,
					Severity:    observe.SeverityHigh,
					TokenLength: len(req.Token),
					TokenFormat: string(req.Validation.Format),
					Partition:   key.Partition,
				})
			}
		} else {
			cleared := m.cache.InvalidatePartition(auth.NoTokenPartition)
			m.metrics.RecordInvalidation(ctx, cleared)
			m.logger.Debug(ctx, "no_token hit discarded",
				observe.Field{Key: "entriesCleared", Value: cleared},
			)
		}
		outcome = observe.CacheRevalidated
	}
	m.metrics.RecordCacheLookup(ctx, outcome)

	gen := m.cache.Generation(key.Partition)
	payload, err := fetch(ctx)
	if err != nil {
		return payload, outcome, err
	}
	if len(payload) > 0 {
		m.cache.PutIfCurrent(key, payload, gen)
	}
	return payload, outcome, nil
}

// Invalidate removes every cached response for token's partition and
// returns how many were removed.
func (m *TrustedCache) Invalidate(ctx context.Context, token string) int {
	v := auth.ValidateFormat(token)
	cleared := m.cache.InvalidateByToken(token, v)
	m.metrics.RecordInvalidation(ctx, cleared)
	m.logger.Info(ctx, "trust token cache invalidated",
		observe.Field{Key: "partition", Value: auth.PartitionKey(token, v)},
		observe.Field{Key: "tokenFormat", Value: string(v.Format)},
		observe.Field{Key: "entriesCleared", Value: cleared},
	)
	return cleared
}
