package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

// ValidationType records how a Result was obtained.
type ValidationType string

const (
	ValidationFullBackend  ValidationType = "full_backend"
	ValidationBackendError ValidationType = "backend_error"
	ValidationCached       ValidationType = "cached"
)

// ValidationServiceError is the Result.Error text for any failure to reach
// a verdict.
const ValidationServiceError = "validation service error"

// ValidatePath is the backend's trust token validation route.
const ValidatePath = "/api/trust-tokens/validate"

// maxValidationBody bounds how much of a validation response is read.
const maxValidationBody = 64 << 10

// Result is the backend's verdict on a token.
type Result struct {
	Valid      bool           `json:"isValid"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	StatusCode int            `json:"statusCode"`
	Type       ValidationType `json:"validationType"`
	CheckedAt  time.Time      `json:"checkedAt"`
}

// Validator asks an authority whether a token is currently trusted.
// Implementations never return Go errors: failures become a Result with
// Valid false.
type Validator interface {
	Validate(ctx context.Context, token string) Result
}

// HTTPValidatorConfig configures the backend validation client.
type HTTPValidatorConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:3000.
	BaseURL string

	// Timeout is the per-call deadline.
	// Default: 30 seconds
	Timeout time.Duration

	// CircuitBreaker guards the call. It is normally the process-wide
	// breaker shared with the backend proxy. Default: none.
	CircuitBreaker *resilience.CircuitBreaker

	// HTTPClient is the HTTP client to use. If nil, a default client is used.
	HTTPClient *http.Client

	// Logger receives transport failures. Default: discard.
	Logger observe.Logger

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// HTTPValidator validates tokens by POSTing them to the backend's
// validation endpoint.
type HTTPValidator struct {
	endpoint   string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     observe.Logger
	now        func() time.Time
}

// NewHTTPValidator creates a validator for config.BaseURL + ValidatePath.
func NewHTTPValidator(config HTTPValidatorConfig) (*HTTPValidator, error) {
	if config.BaseURL == "" {
		return nil, ErrMissingEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	opts := []resilience.ExecutorOption{resilience.WithTimeout(config.Timeout)}
	if config.CircuitBreaker != nil {
		opts = append(opts, resilience.WithCircuitBreaker(config.CircuitBreaker))
	}

	return &HTTPValidator{
		endpoint:   strings.TrimRight(config.BaseURL, "/") + ValidatePath,
		httpClient: config.HTTPClient,
		executor:   resilience.NewExecutor(opts...),
		logger:     config.Logger,
		now:        config.Now,
	}, nil
}

// Validate implements Validator.
func (v *HTTPValidator) Validate(ctx context.Context, token string) Result {
	var result Result
	err := v.executor.Execute(ctx, func(ctx context.Context) error {
		r, err := v.call(ctx, token)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		v.logger.Warn(ctx, "trust token validation failed",
			observe.Field{Key: "error", Value: err},
			observe.Field{Key: "tokenLength", Value: len(token)},
		)
		return v.failure(err)
	}
	return result
}

func (v *HTTPValidator) call(ctx context.Context, token string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(token))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	if gjson.Valid(token) {
		req.Header.Set("Content-Type", "application/json")
	} else {
		req.Header.Set("Content-Type", "text/plain")
	}
	req.Header.Set("Accept", "application/json")
	if id := observe.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(observe.HeaderRequestID, id)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{}, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxValidationBody))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %w", ErrValidationFailed, err)
	}

	valid := gjson.GetBytes(body, "valid")
	if !gjson.ValidBytes(body) || !valid.Exists() {
		if resp.StatusCode >= http.StatusBadRequest {
			// A 4xx without a verdict body is still a definitive rejection.
			return Result{
				Valid:      false,
				Error:      http.StatusText(resp.StatusCode),
				StatusCode: resp.StatusCode,
				Type:       ValidationFullBackend,
				CheckedAt:  v.now(),
			}, nil
		}
		return Result{}, fmt.Errorf("%w: status %d", ErrMalformedResponse, resp.StatusCode)
	}

	r := Result{
		Valid:      valid.Bool() && resp.StatusCode < http.StatusBadRequest,
		Message:    gjson.GetBytes(body, "message").String(),
		Error:      gjson.GetBytes(body, "error").String(),
		StatusCode: resp.StatusCode,
		Type:       ValidationFullBackend,
		CheckedAt:  v.now(),
	}
	return r, nil
}

func (v *HTTPValidator) failure(err error) Result {
	status := http.StatusBadGateway
	var se *statusError
	switch {
	case errors.As(err, &se):
		status = se.code
	case errors.Is(err, resilience.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	case errors.Is(err, resilience.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	return Result{
		Valid:      false,
		Error:      ValidationServiceError,
		StatusCode: status,
		Type:       ValidationBackendError,
		CheckedAt:  v.now(),
	}
}

// statusError is a 5xx from the validation endpoint.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrValidationFailed, e.code)
}

func (e *statusError) Unwrap() error { return ErrValidationFailed }

var _ Validator = (*HTTPValidator)(nil)
