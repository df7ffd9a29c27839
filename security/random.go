// Package security provides security primitives for the authorization
// server: opaque token generation, audit logging with PII protection,
// per-identifier rate limiting, client IP extraction, response security
// headers, and clock-skew-tolerant expiry checks.
package security

import "golang.org/x/oauth2"

// NewOpaqueToken generates a cryptographically secure opaque token: raw-URL
// base64 of 32 random bytes, so the output alphabet never contains '+', '/',
// or '='. Used for authorization codes, access tokens, and refresh tokens.
func NewOpaqueToken() string {
	// Same construction as PKCE verifiers (RFC 7636 quality).
	return oauth2.GenerateVerifier()
}
