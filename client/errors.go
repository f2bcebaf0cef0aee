package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

// Sentinel errors returned by Client.Do.
var (
	// ErrCircuitOpen is returned while the client breaker is open. It
	// matches resilience.ErrCircuitOpen with errors.Is.
	ErrCircuitOpen = fmt.Errorf("client: %w", resilience.ErrCircuitOpen)

	// ErrOffline is returned for a GET while offline with no fresh cached
	// response.
	ErrOffline = errors.New("client: offline")

	// ErrQueued is returned when a mutating request was queued for replay.
	ErrQueued = &QueuedError{}
)

// CodeOfflineQueued is the error code carried by ErrQueued.
const CodeOfflineQueued = "offline_queued"

// QueuedError reports that a request was accepted into the offline queue.
type QueuedError struct {
	ID string
}

func (e *QueuedError) Error() string {
	if e.ID == "" {
		return "client: request queued for replay"
	}
	return "client: request " + e.ID + " queued for replay"
}

// Code returns CodeOfflineQueued.
func (e *QueuedError) Code() string { return CodeOfflineQueued }

// Is matches any *QueuedError, so errors.Is(err, ErrQueued) holds for
// every queued request.
func (e *QueuedError) Is(target error) bool {
	_, ok := target.(*QueuedError)
	return ok
}

// Kind tags a transport failure.
type Kind int

const (
	KindOther Kind = iota
	KindNetwork
	KindTimeout
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindOther:
		return "other"
	default:
		return "other"
	}
}

// Category groups failures for callers and user-facing messages.
type Category string

const (
	CategoryNetwork Category = "network"
	CategoryTimeout Category = "timeout"
	CategoryServer  Category = "server"
	CategoryAuth    Category = "auth"
	CategoryClient  Category = "client"
	CategoryUnknown Category = "unknown"
)

// TransportError is a classified request failure. Status is set only for
// KindHTTP.
type TransportError struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("client: http %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("client: %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the request may succeed if sent again.
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTP:
		return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
	case KindOther:
		return false
	default:
		return false
	}
}

// Category returns the failure category.
func (e *TransportError) Category() Category {
	switch e.Kind {
	case KindNetwork:
		return CategoryNetwork
	case KindTimeout:
		return CategoryTimeout
	case KindHTTP:
		switch {
		case e.Status >= http.StatusInternalServerError, e.Status == http.StatusTooManyRequests:
			return CategoryServer
		case e.Status == http.StatusUnauthorized, e.Status == http.StatusForbidden:
			return CategoryAuth
		default:
			return CategoryClient
		}
	case KindOther:
		return CategoryUnknown
	default:
		return CategoryUnknown
	}
}

// UserMessage returns a message suitable for display.
func (e *TransportError) UserMessage() string {
	switch e.Category() {
	case CategoryNetwork:
		return "Unable to reach the server. Check your connection and try again."
	case CategoryTimeout:
		return "The server took too long to respond. Please try again."
	case CategoryServer:
		if e.Status == http.StatusTooManyRequests {
			return "Too many requests. Please wait a moment and try again."
		}
		return "The server encountered an error. Please try again later."
	case CategoryAuth:
		return "You are not authorized to perform this action."
	case CategoryClient:
		return "The request could not be processed."
	default:
		return "An unexpected error occurred."
	}
}

// Classify tags err. A *TransportError anywhere in the chain is returned
// as is; nil stays nil.
func Classify(err error) *TransportError {
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &TransportError{Kind: KindOther, Err: err}
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Kind: KindTimeout, Err: err}
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return &TransportError{Kind: KindNetwork, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &TransportError{Kind: KindTimeout, Err: err}
		}
		return &TransportError{Kind: KindNetwork, Err: err}
	}

	return &TransportError{Kind: KindOther, Err: err}
}

// Retryable reports whether err is worth retrying.
func Retryable(err error) bool {
	te := Classify(err)
	return te != nil && te.Retryable()
}

func statusError(status int) *TransportError {
	return &TransportError{
		Kind:   KindHTTP,
		Status: status,
		Err:    errors.New(http.StatusText(status)),
	}
}
