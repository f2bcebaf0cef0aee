package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

// ErrorCode classifies a gateway error response.
type ErrorCode string

const (
	CodeFormatInvalidToken     ErrorCode = "format_invalid_token"
	CodeCircuitOpen            ErrorCode = "circuit_open"
	CodeValidationServiceError ErrorCode = "validation_service_error"
	CodeBackendUnavailable     ErrorCode = "backend_unavailable"
	CodeBackendError           ErrorCode = "backend_error"
	CodeRateLimited            ErrorCode = "rate_limited"
	CodeOfflineQueued          ErrorCode = "offline_queued"
)

// ErrBackendUnavailable means the backend refused the connection.
var ErrBackendUnavailable = errors.New("gateway: backend service unavailable")

// backendUnavailableRetryAfter is the retry hint, in seconds, sent when the
// backend refuses connections.
const backendUnavailableRetryAfter = 60

// BackendError is a backend response the gateway did not accept as a
// result. Its status, headers and body are passed to the caller as is.
type BackendError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("gateway: backend returned status %d", e.StatusCode)
}

// IsBackendFailure reports whether err should count against the backend
// circuit breaker. A caller that went away is not a backend failure, and
// neither is a 4xx.
func IsBackendFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// ErrorResponse is the JSON body of gateway-generated errors.
type ErrorResponse struct {
	Error      string    `json:"error"`
	Code       ErrorCode `json:"code,omitempty"`
	RetryAfter int       `json:"retryAfter,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, header http.Header, body []byte) {
	for _, k := range []string{"Content-Type", "Content-Encoding", "Cache-Control"} {
		if v := header.Get(k); v != "" {
			w.Header().Set(k, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// statusForBackendError maps a backend call failure to the response sent
// to the caller.
func statusForBackendError(err error, circuitRetryAfter int, requestID string) (int, ErrorResponse) {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error:      "Backend circuit open",
			Code:       CodeCircuitOpen,
			RetryAfter: circuitRetryAfter,
		}
	case errors.Is(err, ErrBackendUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error:      "Backend service unavailable",
			Code:       CodeBackendUnavailable,
			RetryAfter: backendUnavailableRetryAfter,
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:     "Internal proxy error",
			RequestID: requestID,
		}
	}
}
