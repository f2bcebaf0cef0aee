package observe

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// HTTPMiddleware logs each request and response and assigns the request ID
// that the gateway forwards to the backend.
//
// Contract:
//   - Concurrency: the returned handler is safe for concurrent use.
//   - Context: the request context carries the request ID for downstream
//     logging and backend calls.
//   - An inbound X-Proxy-Request-ID is reused, otherwise a new ID is minted.
type HTTPMiddleware struct {
	logger Logger
}

// NewHTTPMiddleware creates request logging middleware.
func NewHTTPMiddleware(logger Logger) *HTTPMiddleware {
	if logger == nil {
		logger = NopLogger()
	}
	return &HTTPMiddleware{logger: logger}
}

// Handler wraps next.
func (m *HTTPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = NewRequestID()
		}
		ctx := WithRequestID(r.Context(), id)
		w.Header().Set(HeaderRequestID, id)

		start := time.Now()
		ip := ClientIP(r)
		m.logger.Info(ctx, "API Request",
			Field{Key: "method", Value: r.Method},
			Field{Key: "url", Value: r.URL.Path},
			Field{Key: "ip", Value: ip},
			Field{Key: "userAgent", Value: r.UserAgent()},
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []Field{
			{Key: "method", Value: r.Method},
			{Key: "url", Value: r.URL.Path},
			{Key: "statusCode", Value: status},
			{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
			{Key: "bytes", Value: ww.BytesWritten()},
		}
		if status >= http.StatusInternalServerError {
			m.logger.Error(ctx, "API Response", fields...)
		} else {
			m.logger.Info(ctx, "API Response", fields...)
		}
	})
}
