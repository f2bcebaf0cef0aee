package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/auth"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/cache"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/config"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/gateway"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

const readHeaderTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		Long: `Run the gateway. Settings come from the environment (BACKEND_URL,
PROXY_PORT, RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, CACHE_TTL,
VALIDATION_CACHE_TTL, LOG_LEVEL, ...); flags override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().Int("port", 0, "Listen port (overrides PROXY_PORT)")
	cmd.Flags().String("backend-url", "", "Backend base URL (overrides BACKEND_URL)")

	return cmd
}

// loadConfig reads the environment and applies explicitly set flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		if cfg.Port, err = flags.GetInt("port"); err != nil {
			return config.Config{}, err
		}
	}
	if flags.Changed("backend-url") {
		if cfg.BackendURL, err = flags.GetString("backend-url"); err != nil {
			return config.Config{}, err
		}
	}
	if flags.Changed("log-level") {
		if cfg.LogLevel, err = flags.GetString("log-level"); err != nil {
			return config.Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	obs, err := observe.NewObserver(ctx, cfg.Observe())
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()
	logger := obs.Logger()

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitFailureThreshold,
		Cooldown:         cfg.CircuitCooldown,
		IsFailure:        gateway.IsBackendFailure,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn(context.Background(), "circuit breaker state changed",
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})
	if err := observe.RegisterCircuitGauge(obs.Meter(), func() int64 { return int64(breaker.State()) }); err != nil {
		return fmt.Errorf("circuit gauge: %w", err)
	}

	validator, err := auth.NewHTTPValidator(auth.HTTPValidatorConfig{
		BaseURL:        cfg.BackendURL,
		Timeout:        cfg.BackendTimeout,
		CircuitBreaker: breaker,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	validations := auth.NewValidationCache(validator, auth.ValidationCacheConfig{TTL: cfg.ValidationCacheTTL()})

	policy := cache.DefaultPolicy()
	policy.DefaultTTL = cfg.CacheTTL()
	if policy.MaxTTL < policy.DefaultTTL {
		policy.MaxTTL = policy.DefaultTTL
	}
	responses := cache.NewResponseCache(policy)

	auditor := observe.NewAuditor(logger)
	trusted, err := cache.NewTrustedCache(cache.TrustedCacheConfig{
		Cache:     responses,
		Validator: validations,
		Logger:    logger,
		Auditor:   auditor,
		Metrics:   obs.Metrics(),
	})
	if err != nil {
		return err
	}

	backend, err := gateway.NewHTTPBackend(gateway.HTTPBackendConfig{
		BaseURL:        cfg.BackendURL,
		Timeout:        cfg.BackendTimeout,
		CircuitBreaker: breaker,
		Metrics:        obs.Metrics(),
	})
	if err != nil {
		return err
	}

	proxies, err := cfg.ProxyTrust()
	if err != nil {
		return err
	}

	srv, err := gateway.New(gateway.Options{
		BackendURL:     cfg.BackendURL,
		Backend:        backend,
		Trusted:        trusted,
		Limiter:        resilience.NewWindowLimiter(resilience.RateLimiterConfig{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow()}),
		ProxyTrust:     proxies,
		Breaker:        breaker,
		Validation:     validations,
		MetricsHandler: obs.MetricsHandler(),
		Logger:         logger,
		Auditor:        auditor,
		Metrics:        obs.Metrics(),
		Tracer:         obs.Tracer(),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		responses.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sweepValidations(gctx, validations, policy.CheckPeriod)
		return nil
	})
	g.Go(func() error {
		logger.Info(gctx, "trustgate listening",
			observe.Field{Key: "addr", Value: httpServer.Addr},
			observe.Field{Key: "backend", Value: cfg.BackendURL},
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// sweepValidations purges expired verdicts every period until ctx is done.
func sweepValidations(ctx context.Context, validations *auth.ValidationCache, period time.Duration) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			validations.Purge()
		}
	}
}
