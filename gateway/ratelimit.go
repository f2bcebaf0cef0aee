package gateway

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

// RateLimit rejects callers that have spent their budget with 429. The
// budget is per client IP as resolved by observe.ClientIP. Rejections are
// always counted; the warning log is sampled so that a flood of denied
// requests cannot flood the log.
func RateLimit(limiter *resilience.WindowLimiter, metrics observe.Metrics, logger observe.Logger) func(http.Handler) http.Handler {
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	limit := strconv.Itoa(limiter.Config().Requests)
	sampler := &rate.Sometimes{First: 10, Interval: time.Second}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := observe.ClientIP(r)
			allowed, wait := limiter.Allow(ip)

			w.Header().Set("RateLimit-Limit", limit)
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(limiter.Remaining(ip)))
			w.Header().Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(limiter.ResetIn(ip))))

			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := ceilSeconds(wait)
			metrics.RecordRateLimited(r.Context())
			sampler.Do(func() {
				logger.Warn(r.Context(), "Rate limit exceeded",
					observe.Field{Key: "ip", Value: ip},
					observe.Field{Key: "path", Value: r.URL.Path},
					observe.Field{Key: "method", Value: r.Method},
				)
			})

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error:      "Rate limit exceeded",
				Code:       CodeRateLimited,
				RetryAfter: retryAfter,
			})
		})
	}
}

func ceilSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}
