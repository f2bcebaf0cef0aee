package client

import (
	"net/http"
	"strings"
)

// Request is a call to the API. Path is relative to the client base URL
// and may carry a query string.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte

	// Attempt is the 1-based attempt number of the current send.
	Attempt int
}

// Response is a successful API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// FromCache is true when the response was served from the offline
	// GET cache.
	FromCache bool
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

func (r *Request) isRead() bool {
	switch r.method() {
	case http.MethodGet, http.MethodHead:
		return true
	default:
		return false
	}
}

// clone copies the request so a queued entry is not shared with the caller.
func (r *Request) clone() *Request {
	c := &Request{
		Method: r.method(),
		Path:   r.Path,
		Header: r.Header.Clone(),
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return c
}
