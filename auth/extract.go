package auth

import (
	"net/http"
	"strings"
)

// Source names where a token was found on a request.
type Source string

const (
	SourceNone          Source = "none"
	SourceAuthorization Source = "authorization"
	SourceTrustHeader   Source = "x-trust-token"
	SourceCookie        Source = "cookie"
	SourceSecurityToken Source = "x-security-token"
	SourceAuthToken     Source = "x-auth-token"
)

// Header and cookie names carrying trust tokens.
const (
	HeaderTrustToken    = "X-Trust-Token"
	HeaderSecurityToken = "X-Security-Token"
	HeaderAuthToken     = "X-Auth-Token"
	CookieTrustToken    = "trust_token"
)

// ExtractToken returns the first token found on r, checking in order the
// Bearer Authorization header, X-Trust-Token, the trust_token cookie, then
// X-Security-Token and X-Auth-Token. Later sources are never consulted once
// one is found.
func ExtractToken(r *http.Request) (string, Source) {
	if token, ok := extractBearerToken(r.Header.Get("Authorization")); ok {
		return token, SourceAuthorization
	}
	if token := strings.TrimSpace(r.Header.Get(HeaderTrustToken)); token != "" {
		return token, SourceTrustHeader
	}
	if c, err := r.Cookie(CookieTrustToken); err == nil && c.Value != "" {
		return c.Value, SourceCookie
	}
	if token := strings.TrimSpace(r.Header.Get(HeaderSecurityToken)); token != "" {
		return token, SourceSecurityToken
	}
	if token := strings.TrimSpace(r.Header.Get(HeaderAuthToken)); token != "" {
		return token, SourceAuthToken
	}
	return "", SourceNone
}

// extractBearerToken extracts the token from a Bearer authorization header.
func extractBearerToken(header string) (string, bool) {
	if len(header) < 7 {
		return "", false
	}
	if !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	if token == "" {
		return "", false
	}
	return token, true
}
