package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheOutcome labels a response cache lookup.
type CacheOutcome string

const (
	CacheHit         CacheOutcome = "hit"
	CacheMiss        CacheOutcome = "miss"
	CacheRevalidated CacheOutcome = "revalidated"
)

// Metrics records gateway metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCacheLookup counts one response cache lookup by outcome.
	RecordCacheLookup(ctx context.Context, outcome CacheOutcome)
	// RecordInvalidation counts entries removed by a token invalidation.
	RecordInvalidation(ctx context.Context, cleared int)
	// RecordValidation counts one trust validation by validation type.
	RecordValidation(ctx context.Context, validationType string)
	// RecordBackend records one backend call with its status (0 for transport failure).
	RecordBackend(ctx context.Context, status int, duration time.Duration)
	// RecordRateLimited counts a rejected request.
	RecordRateLimited(ctx context.Context)
}

// gatewayMetrics is the otel implementation of Metrics.
type gatewayMetrics struct {
	cacheLookups    metric.Int64Counter
	invalidations   metric.Int64Counter
	validations     metric.Int64Counter
	backendRequests metric.Int64Counter
	backendDuration metric.Float64Histogram
	rateLimited     metric.Int64Counter
}

// NewMetrics creates the gateway instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*gatewayMetrics, error) {
	cacheLookups, err := meter.Int64Counter(
		"trustgate.cache.lookups",
		metric.WithDescription("Response cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	invalidations, err := meter.Int64Counter(
		"trustgate.cache.invalidations",
		metric.WithDescription("Response cache entries removed by trust token invalidation"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	validations, err := meter.Int64Counter(
		"trustgate.validation.calls",
		metric.WithDescription("Trust token validations by type"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	backendRequests, err := meter.Int64Counter(
		"trustgate.backend.requests",
		metric.WithDescription("Backend requests by response status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	backendDuration, err := meter.Float64Histogram(
		"trustgate.backend.duration_ms",
		metric.WithDescription("Backend request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	rateLimited, err := meter.Int64Counter(
		"trustgate.ratelimit.rejections",
		metric.WithDescription("Requests rejected by the rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &gatewayMetrics{
		cacheLookups:    cacheLookups,
		invalidations:   invalidations,
		validations:     validations,
		backendRequests: backendRequests,
		backendDuration: backendDuration,
		rateLimited:     rateLimited,
	}, nil
}

func (m *gatewayMetrics) RecordCacheLookup(ctx context.Context, outcome CacheOutcome) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

func (m *gatewayMetrics) RecordInvalidation(ctx context.Context, cleared int) {
	if cleared <= 0 {
		return
	}
	m.invalidations.Add(ctx, int64(cleared))
}

func (m *gatewayMetrics) RecordValidation(ctx context.Context, validationType string) {
	m.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("type", validationType)))
}

func (m *gatewayMetrics) RecordBackend(ctx context.Context, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	opt := metric.WithAttributes(attribute.String("status", label))
	m.backendRequests.Add(ctx, 1, opt)
	m.backendDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *gatewayMetrics) RecordRateLimited(ctx context.Context) {
	m.rateLimited.Add(ctx, 1)
}

// RegisterCircuitGauge reports the circuit breaker state (0 closed,
// 1 open, 2 half-open) through an observable gauge.
func RegisterCircuitGauge(meter metric.Meter, state func() int64) error {
	_, err := meter.Int64ObservableGauge(
		"trustgate.circuit.state",
		metric.WithDescription("Backend circuit breaker state: 0 closed, 1 open, 2 half-open"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(state())
			return nil
		}),
	)
	return err
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordCacheLookup(context.Context, CacheOutcome)   {}
func (noopMetrics) RecordInvalidation(context.Context, int)           {}
func (noopMetrics) RecordValidation(context.Context, string)          {}
func (noopMetrics) RecordBackend(context.Context, int, time.Duration) {}
func (noopMetrics) RecordRateLimited(context.Context)                 {}
