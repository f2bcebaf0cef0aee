package auth

import (
	"context"
)

type contextKey int

const trustKey contextKey = iota

// Trust is the token found on a request and its structural verdict.
type Trust struct {
	Token      string
	Source     Source
	Validation Validation
}

// Partition returns the cache partition for this token.
func (t Trust) Partition() string {
	return PartitionKey(t.Token, t.Validation)
}

// Present reports whether any token was supplied, well-formed or not.
func (t Trust) Present() bool {
	return t.Token != ""
}

// WithTrust returns a new context carrying t.
func WithTrust(ctx context.Context, t Trust) context.Context {
	return context.WithValue(ctx, trustKey, t)
}

// TrustFromContext retrieves the Trust attached by TrustMiddleware.
// Returns a zero Trust with an invalid Validation when none is present.
func TrustFromContext(ctx context.Context) Trust {
	t, ok := ctx.Value(trustKey).(Trust)
	if !ok {
		return Trust{Source: SourceNone, Validation: ValidateFormat("")}
	}
	return t
}
