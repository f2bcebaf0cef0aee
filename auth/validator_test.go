package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

func newTestValidator(t *testing.T, url string, cb *resilience.CircuitBreaker) *HTTPValidator {
	t.Helper()
	v, err := NewHTTPValidator(HTTPValidatorConfig{
		BaseURL:        url,
		Timeout:        2 * time.Second,
		CircuitBreaker: cb,
	})
	require.NoError(t, err)
	return v
}

func TestNewHTTPValidator_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPValidator(HTTPValidatorConfig{})
	assert.ErrorIs(t, err, ErrMissingEndpoint)
}

func TestHTTPValidator_Valid(t *testing.T) {
	var gotPath, gotType, gotBody, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get(observe.HeaderRequestID)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valid":true,"message":"Trust token is valid"}`))
	}))
	defer srv.Close()

	v := newTestValidator(t, srv.URL+"/", nil)
	ctx := observe.WithRequestID(context.Background(), "req-1")
	r := v.Validate(ctx, "valid-performance-test-token-123")

	assert.True(t, r.Valid)
	assert.Equal(t, "Trust token is valid", r.Message)
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, ValidationFullBackend, r.Type)
	assert.Equal(t, ValidatePath, gotPath)
	assert.Equal(t, "text/plain", gotType)
	assert.Equal(t, "valid-performance-test-token-123", gotBody)
	assert.Equal(t, "req-1", gotRequestID)
}

func TestHTTPValidator_JSONTokenContentType(t *testing.T) {
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"valid":true}`))
	}))
	defer srv.Close()

	v := newTestValidator(t, srv.URL, nil)
	r := v.Validate(context.Background(), `{"signature":"abc","contentHash":"def"}`)

	assert.True(t, r.Valid)
	assert.Equal(t, "application/json", gotType)
}

func TestHTTPValidator_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"valid":false,"error":"Trust token has been revoked"}`))
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1})
	v := newTestValidator(t, srv.URL, cb)
	r := v.Validate(context.Background(), "revoked-token-value")

	assert.False(t, r.Valid)
	assert.Equal(t, "Trust token has been revoked", r.Error)
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)
	assert.Equal(t, ValidationFullBackend, r.Type)
	assert.Equal(t, resilience.StateClosed, cb.State(), "a rejection is not a dependency failure")
}

func TestHTTPValidator_RejectedWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	r := newTestValidator(t, srv.URL, nil).Validate(context.Background(), "some-token-value")
	assert.False(t, r.Valid)
	assert.Equal(t, http.StatusForbidden, r.StatusCode)
	assert.Equal(t, ValidationFullBackend, r.Type)
}

func TestHTTPValidator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1})
	r := newTestValidator(t, srv.URL, cb).Validate(context.Background(), "some-token-value")

	assert.False(t, r.Valid)
	assert.Equal(t, ValidationServiceError, r.Error)
	assert.Equal(t, http.StatusInternalServerError, r.StatusCode)
	assert.Equal(t, ValidationBackendError, r.Type)
	assert.Equal(t, resilience.StateOpen, cb.State())
}

func TestHTTPValidator_MalformedSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>ok</html>`))
	}))
	defer srv.Close()

	r := newTestValidator(t, srv.URL, nil).Validate(context.Background(), "some-token-value")
	assert.False(t, r.Valid)
	assert.Equal(t, ValidationBackendError, r.Type)
	assert.Equal(t, http.StatusBadGateway, r.StatusCode)
}

func TestHTTPValidator_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := newTestValidator(t, url, nil).Validate(context.Background(), "some-token-value")
	assert.False(t, r.Valid)
	assert.Equal(t, ValidationBackendError, r.Type)
	assert.Equal(t, http.StatusBadGateway, r.StatusCode)
	assert.Equal(t, ValidationServiceError, r.Error)
}

func TestHTTPValidator_CircuitOpen(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1})
	cb.RecordFailure()

	r := newTestValidator(t, srv.URL, cb).Validate(context.Background(), "some-token-value")
	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, r.StatusCode)
	assert.Equal(t, ValidationBackendError, r.Type)
}

func TestHTTPValidator_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	v, err := NewHTTPValidator(HTTPValidatorConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	r := v.Validate(context.Background(), "some-token-value")
	assert.Equal(t, http.StatusGatewayTimeout, r.StatusCode)
	assert.Equal(t, ValidationBackendError, r.Type)
}
