package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/cache"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

// maxResponseBytes bounds a response body read.
const maxResponseBytes = 10 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:3001.
	BaseURL string

	// HTTPClient sends requests. Default: a client with no timeout of its
	// own; Timeout applies per attempt.
	HTTPClient *http.Client

	// Timeout bounds each attempt.
	// Default: 30 seconds
	Timeout time.Duration

	// Retry shapes retries of retryable failures. RetryIf is always
	// replaced by Retryable.
	// Default: 3 attempts, 1s base delay, 30s cap
	Retry resilience.RetryConfig

	// Breaker is the client-side circuit breaker.
	// Default: threshold 5, cooldown 60s
	Breaker *resilience.CircuitBreaker

	// Cache holds GET responses for offline use.
	// Default: a MemoryCache with CacheTTL
	Cache cache.Cache

	// CacheTTL is how long a GET response may be served offline.
	// Default: 5 minutes
	CacheTTL time.Duration

	// Queue holds mutating requests made while offline.
	// Default: NewOfflineQueue(DefaultQueueCapacity)
	Queue *OfflineQueue

	// Connectivity is the online state, usually kept by a Monitor.
	// Default: online
	Connectivity *Connectivity

	// Schemas maps a request path (without query) to the schema its
	// responses are checked against. Paths without an entry use
	// DefaultSchema. Mismatches are logged, never returned.
	Schemas map[string]*SchemaValidator

	// DefaultSchema defaults to Envelope with additional fields allowed.
	DefaultSchema *SchemaValidator

	Logger observe.Logger
}

// Handler sends a request.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Interceptor wraps a Handler.
type Interceptor func(next Handler) Handler

// Client is a resilient API client. Requests pass, in order, through the
// circuit check, the offline check, outcome handling, retries and a
// timed dispatch.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: failures are *TransportError, ErrCircuitOpen, ErrOffline or a
//     *QueuedError matching ErrQueued.
type Client struct {
	baseURL string
	config  Config

	http    *http.Client
	breaker *resilience.CircuitBreaker
	cache   cache.Cache
	queue   *OfflineQueue
	conn    *Connectivity
	retry   *resilience.Retry
	timeout *resilience.Timeout
	logger  observe.Logger

	handler Handler
	replay  Handler
	drainMu sync.Mutex
}

// New creates a Client.
func New(config Config) (*Client, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("client: base URL %q must be an absolute http(s) URL", config.BaseURL)
	}

	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if config.Breaker == nil {
		config.Breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	}
	if config.Cache == nil {
		config.Cache = cache.NewMemoryCache(cache.Policy{DefaultTTL: config.CacheTTL, MaxTTL: config.CacheTTL})
	}
	if config.Queue == nil {
		config.Queue = NewOfflineQueue(DefaultQueueCapacity)
	}
	if config.Connectivity == nil {
		config.Connectivity = NewConnectivity(true)
	}
	if config.DefaultSchema == nil {
		schema, err := NewSchemaValidator[Envelope](true)
		if err != nil {
			return nil, err
		}
		config.DefaultSchema = schema
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	c := &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		config:  config,
		http:    config.HTTPClient,
		breaker: config.Breaker,
		cache:   config.Cache,
		queue:   config.Queue,
		conn:    config.Connectivity,
		timeout: resilience.NewTimeout(resilience.TimeoutConfig{Timeout: config.Timeout}),
		logger:  config.Logger,
	}

	retryConfig := config.Retry
	retryConfig.RetryIf = Retryable
	if retryConfig.OnRetry == nil {
		retryConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
			c.logger.Warn(context.Background(), "retrying request",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}
	c.retry = resilience.NewRetry(retryConfig)

	c.handler = Chain(c.dispatch, c.circuitInterceptor, c.offlineInterceptor, c.outcomeInterceptor, c.retryInterceptor)
	c.replay = Chain(c.dispatch, c.circuitInterceptor, c.outcomeInterceptor, c.retryInterceptor)
	return c, nil
}

// Chain wraps h so that interceptors[0] runs first.
func Chain(h Handler, interceptors ...Interceptor) Handler {
	for i := len(interceptors) - 1; i >= 0; i-- {
		h = interceptors[i](h)
	}
	return h
}

// Do sends req through the interceptor chain.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, &TransportError{Kind: KindOther, Err: errors.New("nil request")}
	}
	return c.handler(ctx, req.clone())
}

// Get sends a GET for path.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

// Post sends a POST for path with v encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, &TransportError{Kind: KindOther, Err: fmt.Errorf("encode body: %w", err)}
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Header: header, Body: body})
}

// Breaker returns the client circuit breaker.
func (c *Client) Breaker() *resilience.CircuitBreaker { return c.breaker }

// Queue returns the offline queue.
func (c *Client) Queue() *OfflineQueue { return c.queue }

// Connectivity returns the connectivity state.
func (c *Client) Connectivity() *Connectivity { return c.conn }

func (c *Client) circuitInterceptor(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		if c.breaker.IsOpen() {
			return nil, ErrCircuitOpen
		}
		return next(ctx, req)
	}
}

func (c *Client) offlineInterceptor(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		if c.conn.Online() {
			return next(ctx, req)
		}

		if req.isRead() {
			if body, ok := c.cache.Get(ctx, cacheKey(req)); ok {
				header := http.Header{}
				header.Set("Content-Type", "application/json")
				return &Response{StatusCode: http.StatusOK, Header: header, Body: body, FromCache: true}, nil
			}
			return nil, ErrOffline
		}

		id := c.queue.Enqueue(req)
		c.logger.Info(ctx, "request queued while offline",
			observe.Field{Key: "id", Value: id},
			observe.Field{Key: "method", Value: req.method()},
			observe.Field{Key: "path", Value: req.Path},
			observe.Field{Key: "queued", Value: c.queue.Len()},
		)
		return nil, &QueuedError{ID: id}
	}
}

func (c *Client) outcomeInterceptor(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		resp, err := next(ctx, req)
		if err != nil {
			te := Classify(err)
			if !errors.Is(err, context.Canceled) {
				c.breaker.RecordFailure()
			}
			return nil, te
		}

		c.breaker.RecordSuccess()
		c.checkSchema(ctx, req, resp)
		resp.Body = SanitizeJSON(resp.Body)

		if req.isRead() {
			if err := c.cache.Set(ctx, cacheKey(req), resp.Body, c.config.CacheTTL); err != nil {
				c.logger.Debug(ctx, "response not cached",
					observe.Field{Key: "path", Value: req.Path},
					observe.Field{Key: "error", Value: err.Error()},
				)
			}
		}
		return resp, nil
	}
}

func (c *Client) retryInterceptor(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		var resp *Response
		err := c.retry.Execute(ctx, func(ctx context.Context, attempt int) error {
			req.Attempt = attempt
			r, err := next(ctx, req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
}

func (c *Client) dispatch(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response
	err := c.timeout.Execute(ctx, func(ctx context.Context) error {
		r, err := c.send(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, Classify(err)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method(), c.baseURL+req.Path, body)
	if err != nil {
		return nil, &TransportError{Kind: KindOther, Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if id := observe.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set(observe.HeaderRequestID, id)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Kind: KindNetwork, Err: fmt.Errorf("read body: %w", err)}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, statusError(httpResp.StatusCode)
	}

	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

func (c *Client) checkSchema(ctx context.Context, req *Request, resp *Response) {
	if len(bytes.TrimSpace(resp.Body)) == 0 || !isJSON(resp.Header.Get("Content-Type")) {
		return
	}
	path, _, _ := strings.Cut(req.Path, "?")
	schema, ok := c.config.Schemas[path]
	if !ok {
		schema = c.config.DefaultSchema
	}
	if err := schema.Validate(resp.Body); err != nil {
		c.logger.Warn(ctx, "response schema mismatch",
			observe.Field{Key: "path", Value: path},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

// DrainQueue replays queued requests oldest first, one at a time, while
// the client is online. An entry is removed only after its replay
// succeeds or is rejected with a non-retryable HTTP status. Any other
// failure stops the drain and keeps the entry at the head of the queue.
// It returns the number of requests replayed successfully.
func (c *Client) DrainQueue(ctx context.Context) (int, error) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	replayed := 0
	for c.conn.Online() {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		entry, ok := c.queue.Peek()
		if !ok {
			return replayed, nil
		}

		_, err := c.replay(ctx, entry.Request.clone())
		if err == nil {
			c.queue.Remove(entry.ID)
			replayed++
			continue
		}

		var te *TransportError
		if errors.As(err, &te) && te.Kind == KindHTTP && !te.Retryable() {
			c.queue.Remove(entry.ID)
			c.logger.Error(ctx, "dropping queued request",
				observe.Field{Key: "id", Value: entry.ID},
				observe.Field{Key: "method", Value: entry.Request.Method},
				observe.Field{Key: "path", Value: entry.Request.Path},
				observe.Field{Key: "status", Value: te.Status},
			)
			continue
		}
		return replayed, err
	}
	return replayed, nil
}

// Run drains the offline queue whenever connectivity is restored. It
// blocks until ctx is done.
func (c *Client) Run(ctx context.Context) {
	if c.conn.Online() {
		c.drain(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case tr := <-c.conn.Transitions():
			if tr.Online {
				c.drain(ctx)
			}
		}
	}
}

func (c *Client) drain(ctx context.Context) {
	if c.queue.Len() == 0 {
		return
	}
	replayed, err := c.DrainQueue(ctx)
	fields := []observe.Field{
		{Key: "replayed", Value: replayed},
		{Key: "remaining", Value: c.queue.Len()},
	}
	if err != nil && ctx.Err() == nil {
		c.logger.Warn(ctx, "offline queue drain stopped", append(fields, observe.Field{Key: "error", Value: err.Error()})...)
		return
	}
	c.logger.Info(ctx, "offline queue drained", fields...)
}

func cacheKey(req *Request) string {
	return "client:" + req.method() + " " + req.Path
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
