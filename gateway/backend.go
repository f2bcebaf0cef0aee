package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

// maxBackendBody bounds a backend response read.
const maxBackendBody = 32 << 20

// BackendRequest is a call forwarded to the backend. Path is absolute and
// RawQuery has no leading '?'.
type BackendRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// BackendResponse is a backend answer below 500.
type BackendResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Backend forwards requests to the upstream service.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: a 5xx answer is a *BackendError; a refused connection wraps
//     ErrBackendUnavailable; an open circuit wraps resilience.ErrCircuitOpen.
//
//go:generate mockgen -destination=mock_backend_test.go -package=gateway -source=backend.go Backend
type Backend interface {
	Forward(ctx context.Context, req *BackendRequest) (*BackendResponse, error)
}

// HTTPBackendConfig configures an HTTPBackend.
type HTTPBackendConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:3000.
	BaseURL string

	// Timeout bounds each call.
	// Default: 30 seconds
	Timeout time.Duration

	// CircuitBreaker guards the backend. Optional.
	CircuitBreaker *resilience.CircuitBreaker

	HTTPClient *http.Client
	Metrics    observe.Metrics
}

// HTTPBackend is a Backend over HTTP.
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	metrics    observe.Metrics
}

// NewHTTPBackend creates an HTTPBackend.
func NewHTTPBackend(config HTTPBackendConfig) (*HTTPBackend, error) {
	if config.BaseURL == "" {
		return nil, errors.New("gateway: backend URL is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Metrics == nil {
		config.Metrics = observe.NopMetrics()
	}

	opts := []resilience.ExecutorOption{resilience.WithTimeout(config.Timeout)}
	if config.CircuitBreaker != nil {
		opts = append(opts, resilience.WithCircuitBreaker(config.CircuitBreaker))
	}

	return &HTTPBackend{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: config.HTTPClient,
		executor:   resilience.NewExecutor(opts...),
		metrics:    config.Metrics,
	}, nil
}

// Forward implements Backend.
func (b *HTTPBackend) Forward(ctx context.Context, req *BackendRequest) (*BackendResponse, error) {
	start := time.Now()

	var resp *BackendResponse
	err := b.executor.Execute(ctx, func(ctx context.Context) error {
		r, err := b.do(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		status := 0
		var be *BackendError
		if errors.As(err, &be) {
			status = be.StatusCode
		}
		b.metrics.RecordBackend(ctx, status, time.Since(start))
		return nil, err
	}

	b.metrics.RecordBackend(ctx, resp.StatusCode, time.Since(start))
	return resp, nil
}

func (b *HTTPBackend) do(ctx context.Context, req *BackendRequest) (*BackendResponse, error) {
	target := b.baseURL + req.Path
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: create backend request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if id := observe.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set(observe.HeaderRequestID, id)
	}
	observe.InjectTraceContext(ctx, httpReq.Header)

	httpResp, err := b.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}
		return nil, fmt.Errorf("gateway: backend request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBackendBody))
	if err != nil {
		return nil, fmt.Errorf("gateway: read backend response: %w", err)
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, &BackendError{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}
	}
	return &BackendResponse{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

var _ Backend = (*HTTPBackend)(nil)
