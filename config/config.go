package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
)

// Sentinel errors for configuration.
var (
	ErrInvalidConfig = errors.New("config: invalid configuration")
	ErrMissingEnv    = errors.New("config: missing required environment variables")
)

// Config is the gateway configuration. Every field is read from the
// environment with a default; millisecond fields keep the units operators
// already use for these variables.
type Config struct {
	// BackendURL is the upstream service. ${VAR} references are expanded.
	BackendURL string `env:"BACKEND_URL,default=http://localhost:3000"`
	Port       int    `env:"PROXY_PORT,default=3001"`

	RateLimitRequests int   `env:"RATE_LIMIT_REQUESTS,default=100"`
	RateLimitWindowMs int64 `env:"RATE_LIMIT_WINDOW,default=3600000"`

	// TrustedProxies is a comma separated list of proxy IPs or CIDRs whose
	// X-Forwarded-For is believed. Empty means the peer address is the
	// client.
	TrustedProxies string `env:"TRUSTED_PROXIES"`

	CacheTTLMs           int64 `env:"CACHE_TTL,default=3600000"`
	ValidationCacheTTLMs int64 `env:"VALIDATION_CACHE_TTL,default=300000"`

	BackendTimeout          time.Duration `env:"BACKEND_TIMEOUT,default=30s"`
	CircuitFailureThreshold int           `env:"CIRCUIT_FAILURE_THRESHOLD,default=5"`
	CircuitCooldown         time.Duration `env:"CIRCUIT_COOLDOWN,default=60s"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`

	LogLevel        string `env:"LOG_LEVEL,default=info"`
	ServiceName     string `env:"SERVICE_NAME,default=trustgate"`
	MetricsExporter string `env:"METRICS_EXPORTER,default=prometheus"`
	TracingExporter string `env:"TRACING_EXPORTER,default=none"`
}

// Load reads the configuration from the environment, expands BackendURL
// and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	expanded, err := ExpandEnvStrict(cfg.BackendURL)
	if err != nil {
		return Config{}, err
	}
	cfg.BackendURL = expanded

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the gateway cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: BACKEND_URL %q must be an absolute http(s) URL", ErrInvalidConfig, c.BackendURL)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: PROXY_PORT %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindowMs <= 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidConfig)
	}
	if _, err := c.ProxyTrust(); err != nil {
		return fmt.Errorf("%w: TRUSTED_PROXIES: %w", ErrInvalidConfig, err)
	}
	if c.CacheTTLMs <= 0 || c.ValidationCacheTTLMs <= 0 {
		return fmt.Errorf("%w: cache TTLs must be positive", ErrInvalidConfig)
	}
	if c.BackendTimeout <= 0 || c.CircuitCooldown <= 0 || c.CircuitFailureThreshold <= 0 {
		return fmt.Errorf("%w: backend timeout and circuit settings must be positive", ErrInvalidConfig)
	}

	oc := c.Observe()
	if err := oc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

// RateLimitWindow returns RATE_LIMIT_WINDOW as a duration.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMs) * time.Millisecond
}

// ProxyTrust parses TRUSTED_PROXIES.
func (c Config) ProxyTrust() (*observe.ProxyTrust, error) {
	return observe.NewProxyTrust(strings.Split(c.TrustedProxies, ","))
}

// CacheTTL returns CACHE_TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}

// ValidationCacheTTL returns VALIDATION_CACHE_TTL as a duration.
func (c Config) ValidationCacheTTL() time.Duration {
	return time.Duration(c.ValidationCacheTTLMs) * time.Millisecond
}

// Observe returns the telemetry configuration.
func (c Config) Observe() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   c.TracingExporter != "" && c.TracingExporter != "none",
			Exporter:  c.TracingExporter,
			SamplePct: 1.0,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.MetricsExporter != "" && c.MetricsExporter != "none",
			Exporter: c.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
		},
	}
}
