// Package observe provides the gateway's observability primitives:
// a redacting structured logger backed by zap, security audit records,
// OpenTelemetry metrics and spans for cache and backend activity, and the
// HTTP request logging middleware.
//
// Nothing in this package ever receives a raw trust token. Callers pass
// partition keys, formats and lengths instead, and the logger additionally
// redacts any field whose key is listed in RedactedFields.
package observe
