package health

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Response is the body of GET /health.
type Response struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Backend   string                   `json:"backend"`
	Checks    map[string]CheckResponse `json:"checks,omitempty"`
}

// CheckResponse describes one check.
type CheckResponse struct {
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Routes mounts the health endpoints on r:
//
//	GET /health               every check as JSON, always 200
//	GET /health/live          200 while the process serves
//	GET /health/ready         503 when any check is unhealthy
//	GET /health/checks/{name} one check, 503 when unhealthy
func Routes(r chi.Router, agg *Aggregator, backendURL string) {
	r.Get("/health", DetailedHandler(agg, backendURL))
	r.Get("/health/live", LivenessHandler())
	r.Get("/health/ready", ReadinessHandler(agg))
	r.Get("/health/checks/{name}", SingleCheckHandler(agg))
}

// LivenessHandler answers "OK" unconditionally.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "OK")
	}
}

// ReadinessHandler reports the aggregate status as plain text. A degraded
// gateway is still ready.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := agg.CheckAll(r.Context()).Status
		body := "OK"
		if status != StatusHealthy {
			body = strings.ToUpper(status.String())
		}
		writeText(w, status.HTTPStatus(), body)
	}
}

// DetailedHandler reports every check. The gateway answered, so the code
// is 200 whatever the aggregate status says.
func DetailedHandler(agg *Aggregator, backendURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := agg.CheckAll(r.Context())

		checks := make(map[string]CheckResponse, len(report.Results))
		for name, result := range report.Results {
			checks[name] = toCheckResponse(result)
		}
		writeJSON(w, http.StatusOK, Response{
			Status:    report.Status.String(),
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Backend:   backendURL,
			Checks:    checks,
		})
	}
}

// SingleCheckHandler runs the check named by the {name} URL parameter.
func SingleCheckHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := agg.Check(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, result.Status.HTTPStatus(), toCheckResponse(result))
	}
}

func toCheckResponse(result Result) CheckResponse {
	check := CheckResponse{
		Status:   result.Status.String(),
		Message:  result.Message,
		Duration: result.Duration.String(),
		Details:  result.Details,
	}
	if result.Error != nil {
		check.Error = result.Error.Error()
	}
	return check
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
