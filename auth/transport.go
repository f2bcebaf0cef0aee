package auth

import (
	"net/http"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
)

// TrustMiddleware extracts and format-checks the request's trust token,
// attaches the result to the request context, and records an audit event.
// It never rejects a request: a missing or malformed token falls back to
// the shared no_token partition downstream.
//
// Usage:
//
//	r.Use(auth.TrustMiddleware(auditor, logger))
func TrustMiddleware(auditor *observe.Auditor, logger observe.Logger) func(http.Handler) http.Handler {
	if auditor == nil {
		auditor = observe.NewAuditor(nil)
	}
	if logger == nil {
		logger = observe.NopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, source := ExtractToken(r)
			v := ValidateFormat(token)
			ctx := r.Context()

			rec := observe.AuditRecord{
				TokenLength: len(token),
				TokenFormat: string(v.Format),
				Source:      string(source),
				IP:          observe.ClientIP(r),
				Path:        r.URL.Path,
			}
			switch {
			case token == "":
				rec.Event = observe.EventTokenMissing
				rec.Severity = observe.SeverityMedium
			case !v.Valid:
				rec.Event = observe.EventTokenInvalid
				rec.Severity = observe.SeverityHigh
				rec.Reason = string(v.Reason)
			default:
				rec.Event = observe.EventTokenValid
				rec.Severity = observe.SeverityInfo
				if v.Format == FormatJWT {
					if h, err := InspectJWT(token); err == nil {
						rec.Alg, rec.Kid = h.Alg, h.Kid
					} else {
						logger.Debug(ctx, "jwt trust token header unreadable", observe.Field{Key: "error", Value: err.Error()})
					}
				}
			}
			auditor.Record(ctx, rec)

			ctx = WithTrust(ctx, Trust{Token: token, Source: source, Validation: v})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
