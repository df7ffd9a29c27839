// Package testutil provides shared helpers for package tests.
package testutil

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/solstice-id/idp-oauth/directory"
)

// S256Challenge derives the PKCE S256 code challenge for a verifier.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// MustHashSecret bcrypt-hashes a client secret, failing the test on error.
func MustHashSecret(t *testing.T, secret string) string {
	t.Helper()
	hash, err := directory.HashSecret(secret)
	if err != nil {
		t.Fatalf("failed to hash secret: %v", err)
	}
	return hash
}
