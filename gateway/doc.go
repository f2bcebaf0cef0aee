// Package gateway is the HTTP front of the trust-token cache.
//
// POST /api/process-pdf is served through a cache.TrustedCache: responses
// are cached per trust-token partition and a cached response is only
// returned after the caller's token is confirmed by the validation
// service. Other /api routes are passed through to the backend. All /api
// traffic is rate limited per client IP.
//
// Backend failures map to fixed responses: an open circuit or a refused
// connection is 503 with a retry hint, a backend error response is passed
// through verbatim, and anything else is 500.
package gateway
