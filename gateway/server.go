package gateway

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/auth"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/cache"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/health"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

// API paths served by the gateway.
const (
	ProcessPDFPath      = "/api/process-pdf"
	StatusPath          = "/api/status"
	InvalidateTokenPath = "/api/cache/invalidate-trust-token"
)

// maxRequestBody bounds request bodies read by the gateway.
const maxRequestBody = 10 << 20

// Options wires a Server. Every shared object is built by the caller.
type Options struct {
	// BackendURL is reported by /health and /api/status.
	BackendURL string

	// Backend receives forwarded requests. Required.
	Backend Backend

	// Trusted serves /api/process-pdf through the response cache. Required.
	Trusted *cache.TrustedCache

	// Limiter holds the per-IP request budget for /api. Required.
	Limiter *resilience.WindowLimiter

	// ProxyTrust lists the reverse proxies whose X-Forwarded-For is
	// believed when resolving the caller for rate limiting and audit.
	// Default: none, so the connecting peer address is used.
	ProxyTrust *observe.ProxyTrust

	// Breaker is the backend circuit breaker, reported by /api/status and
	// used for retry hints. Optional.
	Breaker *resilience.CircuitBreaker

	// Validation is the validation result cache. Invalidation also drops
	// its entry for the token. Optional.
	Validation *auth.ValidationCache

	// Health backs the /health endpoints. Default: an aggregator with the
	// backend and cache checkers.
	Health *health.Aggregator

	// MetricsHandler, when set, is served at /metrics.
	MetricsHandler http.Handler

	Logger  observe.Logger
	Auditor *observe.Auditor
	Metrics observe.Metrics
	Tracer  observe.Tracer
}

// Server is the gateway HTTP handler.
type Server struct {
	router chi.Router

	backendURL string
	backend    Backend
	trusted    *cache.TrustedCache
	limiter    *resilience.WindowLimiter
	breaker    *resilience.CircuitBreaker
	validation *auth.ValidationCache
	health     *health.Aggregator
	logger     observe.Logger
	tracer     observe.Tracer
}

// New builds the router.
//
// Routes:
//
//	GET  /health, /health/live, /health/ready, /health/checks/{name}
//	GET  /metrics                              (when MetricsHandler is set)
//	GET  /api/status
//	POST /api/process-pdf
//	POST /api/cache/invalidate-trust-token
//	*    /api/*                                (passthrough)
//
// Every /api route is logged, rate limited per client IP and carries the
// caller's trust token in its context.
func New(opts Options) (*Server, error) {
	switch {
	case opts.Backend == nil:
		return nil, errors.New("gateway: backend is required")
	case opts.Trusted == nil:
		return nil, errors.New("gateway: trusted cache is required")
	case opts.Limiter == nil:
		return nil, errors.New("gateway: rate limiter is required")
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	if opts.Auditor == nil {
		opts.Auditor = observe.NewAuditor(opts.Logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.NopMetrics()
	}
	if opts.Tracer == nil {
		opts.Tracer = observe.NopTracer()
	}

	s := &Server{
		backendURL: opts.BackendURL,
		backend:    opts.Backend,
		trusted:    opts.Trusted,
		limiter:    opts.Limiter,
		breaker:    opts.Breaker,
		validation: opts.Validation,
		health:     opts.Health,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
	}
	if s.health == nil {
		s.health = s.defaultHealth()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	health.Routes(r, s.health, s.backendURL)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(opts.ProxyTrust.Middleware)
		r.Use(observe.NewHTTPMiddleware(opts.Logger).Handler)
		r.Use(RateLimit(opts.Limiter, opts.Metrics, opts.Logger))
		r.Use(auth.TrustMiddleware(opts.Auditor, opts.Logger))

		r.Get("/status", s.handleStatus)
		r.Post("/process-pdf", s.handleProcessPDF)
		r.Post("/cache/invalidate-trust-token", s.handleInvalidate)
		r.HandleFunc("/*", s.handlePassthrough)
	})

	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health returns the health aggregator.
func (s *Server) Health() *health.Aggregator {
	return s.health
}

func (s *Server) defaultHealth() *health.Aggregator {
	agg := health.NewAggregator(health.AggregatorConfig{})
	if s.breaker != nil {
		agg.Register(health.NewBackendChecker(s.breaker, s.backendURL))
	}
	rc := s.trusted.Cache()
	agg.Register(health.NewCacheChecker(func() int { return rc.Stats().Keys }))
	return agg
}

// circuitRetryAfter is the number of seconds until the breaker admits a
// probe, at least 1.
func (s *Server) circuitRetryAfter() int {
	if s.breaker == nil {
		return 1
	}
	wait := time.Until(s.breaker.Metrics().NextAttempt)
	return max(int(math.Ceil(wait.Seconds())), 1)
}
