package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// BaseURL is the API root; the probe is GET {BaseURL}/health.
	BaseURL string

	// HTTPClient sends probes. Default: http.DefaultClient
	HTTPClient *http.Client

	// Interval is the wait between probes while online.
	// Default: 30 seconds
	Interval time.Duration

	// ProbeTimeout bounds a single probe.
	// Default: 5 seconds
	ProbeTimeout time.Duration

	// InitialBackoff and MaxBackoff shape probing while offline.
	// Defaults: 1 second and 30 seconds
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Logger observe.Logger
}

// Monitor keeps a Connectivity current by probing the API health endpoint.
type Monitor struct {
	conn   *Connectivity
	config MonitorConfig
	logger observe.Logger
}

// NewMonitor creates a Monitor that updates conn.
func NewMonitor(conn *Connectivity, config MonitorConfig) *Monitor {
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Monitor{conn: conn, config: config, logger: logger}
}

// Run probes until ctx is done. While online it probes every Interval;
// after a failed probe it marks the client offline and probes with
// exponential backoff until the API answers again.
func (m *Monitor) Run(ctx context.Context) {
	for {
		if err := m.Probe(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if m.conn.SetOnline(false) {
				m.logger.Warn(ctx, "connectivity lost", observe.Field{Key: "error", Value: err.Error()})
			}
			if !m.waitOnline(ctx) {
				return
			}
		}
		if m.conn.SetOnline(true) {
			m.logger.Info(ctx, "connectivity restored")
		}

		if err := resilience.Sleep(ctx, m.config.Interval); err != nil {
			return
		}
	}
}

func (m *Monitor) waitOnline(ctx context.Context) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.config.InitialBackoff
	b.MaxInterval = m.config.MaxBackoff
	b.Reset()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, m.Probe(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.logger.Debug(ctx, "health probe failed",
				observe.Field{Key: "error", Value: err.Error()},
				observe.Field{Key: "next_probe", Value: next.String()},
			)
		}),
	)
	if err != nil && ctx.Err() == nil {
		m.logger.Error(ctx, "health probing stopped", observe.Field{Key: "error", Value: err.Error()})
	}
	return err == nil
}

// Probe sends one health request. Any 2xx answer counts as reachable.
func (m *Monitor) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.config.BaseURL+"/health", nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := m.config.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health probe: status %d", resp.StatusCode)
	}
	return nil
}
