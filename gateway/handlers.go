package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/auth"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/cache"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Status          string                `json:"status"`
	RateLimit       RateLimitStatus       `json:"rateLimit"`
	Cache           cache.Stats           `json:"cache"`
	ValidationCache ValidationCacheStatus `json:"validationCache"`
	CircuitBreaker  CircuitStatus         `json:"circuitBreaker"`
	Backend         string                `json:"backend"`
}

// RateLimitStatus reports the per-IP budget.
type RateLimitStatus struct {
	Requests int   `json:"requests"`
	WindowMs int64 `json:"windowMs"`
}

// ValidationCacheStatus reports the validation result cache.
type ValidationCacheStatus struct {
	Keys int `json:"keys"`
}

// CircuitStatus reports the backend circuit breaker.
type CircuitStatus struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// InvalidateResponse is the body of a successful invalidation.
type InvalidateResponse struct {
	Success        bool   `json:"success"`
	TokenFormat    string `json:"tokenFormat"`
	TokenValid     bool   `json:"tokenValid"`
	EntriesCleared int    `json:"entriesCleared"`
	Timestamp      string `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.limiter.Config()
	resp := StatusResponse{
		Status: "operational",
		RateLimit: RateLimitStatus{
			Requests: cfg.Requests,
			WindowMs: cfg.Window.Milliseconds(),
		},
		Cache:   s.trusted.Cache().Stats(),
		Backend: s.backendURL,
	}
	if s.validation != nil {
		resp.ValidationCache.Keys = s.validation.Stats().Keys
	}
	if s.breaker != nil {
		resp.CircuitBreaker = CircuitStatus{
			State:    s.breaker.State().String(),
			Failures: s.breaker.Failures(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProcessPDF(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if len(bytes.TrimSpace(body)) > 0 && !gjson.ValidBytes(body) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON body"})
		return
	}

	trust := auth.TrustFromContext(r.Context())
	req := cache.Request{
		Method:     http.MethodPost,
		Path:       ProcessPDFPath,
		Body:       body,
		Token:      trust.Token,
		Validation: trust.Validation,
	}

	ctx, span := s.tracer.StartSpan(r.Context(), observe.Operation{
		Name:      "process_pdf",
		Method:    http.MethodPost,
		Path:      ProcessPDFPath,
		Partition: trust.Partition(),
	})

	payload, outcome, err := s.trusted.Execute(ctx, req, func(ctx context.Context) ([]byte, error) {
		s.logger.Info(ctx, "Proxying to backend", observe.Field{Key: "backend", Value: s.backendURL})

		header := http.Header{}
		header.Set("Content-Type", "application/json")
		header.Set("Accept", "application/json")
		if trust.Present() {
			header.Set(auth.HeaderTrustToken, trust.Token)
		}
		resp, err := s.backend.Forward(ctx, &BackendRequest{
			Method: http.MethodPost,
			Path:   ProcessPDFPath,
			Header: header,
			Body:   body,
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &BackendError{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}
		}
		return resp.Body, nil
	})
	s.tracer.EndSpan(span, err)

	w.Header().Set("X-Cache", strings.ToUpper(string(outcome)))
	if err != nil {
		s.writeBackendError(ctx, w, err)
		return
	}
	writeRaw(w, http.StatusOK, nil, payload)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	field := gjson.GetBytes(body, "trustToken")
	if field.Type != gjson.String || field.Str == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "trustToken is required"})
		return
	}
	token := field.Str

	v := auth.ValidateFormat(token)
	cleared := s.trusted.Invalidate(r.Context(), token)
	if s.validation != nil {
		s.validation.Forget(token)
	}

	writeJSON(w, http.StatusOK, InvalidateResponse{
		Success:        true,
		TokenFormat:    string(v.Format),
		TokenValid:     v.Valid,
		EntriesCleared: cleared,
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// hopHeaders are not forwarded in either direction.
var hopHeaders = []string{"Host", "Connection", "Keep-Alive", "Proxy-Connection", "Transfer-Encoding", "Upgrade", "Te", "Trailer"}

func (s *Server) handlePassthrough(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	header := r.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}
	header.Del("Content-Length")
	if ip := remoteIP(r); ip != "" {
		if prior := header.Get("X-Forwarded-For"); prior != "" {
			header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			header.Set("X-Forwarded-For", ip)
		}
	}

	resp, err := s.backend.Forward(r.Context(), &BackendRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   header,
		Body:     body,
	})
	if err != nil {
		s.writeBackendError(r.Context(), w, err)
		return
	}

	for k, vs := range resp.Header {
		if isHopHeader(k) || http.CanonicalHeaderKey(k) == "Content-Length" {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func (s *Server) writeBackendError(ctx context.Context, w http.ResponseWriter, err error) {
	var be *BackendError
	if errors.As(err, &be) {
		s.logger.Warn(ctx, "Backend returned error",
			observe.Field{Key: "status", Value: be.StatusCode},
			observe.Field{Key: "backend", Value: s.backendURL},
		)
		writeRaw(w, be.StatusCode, be.Header, be.Body)
		return
	}

	s.logger.Error(ctx, "Backend request failed",
		observe.Field{Key: "error", Value: err.Error()},
		observe.Field{Key: "backend", Value: s.backendURL},
	)

	status, resp := statusForBackendError(err, s.circuitRetryAfter(), observe.RequestIDFromContext(ctx))
	if resp.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
	}
	writeJSON(w, status, resp)
}

// readBody reads at most maxRequestBody bytes. On failure it writes the
// error response and returns false.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		return nil, true
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Unable to read request body"})
		return nil, false
	}
	return body, true
}

func isHopHeader(k string) bool {
	return slices.Contains(hopHeaders, http.CanonicalHeaderKey(k))
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
