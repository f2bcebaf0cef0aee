package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTHeader is the subset of a JWT header recorded for audit.
type JWTHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid,omitempty"`
	Typ string `json:"typ,omitempty"`
}

// InspectJWT parses a JWT-format token without verifying its signature and
// returns its header. Signature and claim verification is the trust
// authority's job; this is only used to annotate audit records.
func InspectJWT(token string) (JWTHeader, error) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return JWTHeader{}, fmt.Errorf("%w: %w", ErrNotJWT, err)
	}

	var h JWTHeader
	if alg, ok := parsed.Header["alg"].(string); ok {
		h.Alg = alg
	}
	if kid, ok := parsed.Header["kid"].(string); ok {
		h.Kid = kid
	}
	if typ, ok := parsed.Header["typ"].(string); ok {
		h.Typ = typ
	}
	return h, nil
}
