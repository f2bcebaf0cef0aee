package auth

import "errors"

// Sentinel errors for trust token handling.
var (
	// ErrMissingEndpoint is returned when a validator has no endpoint URL.
	ErrMissingEndpoint = errors.New("auth: validation endpoint not configured")

	// ErrValidationFailed wraps transport and server failures of the
	// validation endpoint. It never reaches request handlers: it is logged
	// and folded into a Result.
	ErrValidationFailed = errors.New("auth: validation service error")

	// ErrMalformedResponse is returned when the validation endpoint's body
	// is not the expected JSON shape.
	ErrMalformedResponse = errors.New("auth: malformed validation response")

	// ErrNotJWT is returned by InspectJWT for tokens that do not parse as JWTs.
	ErrNotJWT = errors.New("auth: token is not a parseable JWT")
)
