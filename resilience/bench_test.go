package resilience

import (
	"context"
	"strconv"
	"testing"
	"time"
)

// BenchmarkCircuitBreaker_IsOpen measures the per-request gate check.
func BenchmarkCircuitBreaker_IsOpen(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.IsOpen()
	}
}

// BenchmarkCircuitBreaker_Execute_Closed measures happy path execution.
func BenchmarkCircuitBreaker_Execute_Closed(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error { return nil })
	}
}

// BenchmarkWindowLimiter_Allow measures limiter lookups across many client keys.
func BenchmarkWindowLimiter_Allow(b *testing.B) {
	wl := NewWindowLimiter(RateLimiterConfig{Requests: 1 << 30, Window: time.Hour})
	keys := make([]string, 256)
	for i := range keys {
		keys[i] = "10.0.0." + strconv.Itoa(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = wl.Allow(keys[i%len(keys)])
	}
}

func BenchmarkRetry_Delay(b *testing.B) {
	r := NewRetry(RetryConfig{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Delay(i%10 + 1)
	}
}
