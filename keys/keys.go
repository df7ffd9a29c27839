// Package keys implements the server's signing key management: an immutable
// ES256 key constructed at startup, a stable key identifier derived from the
// public key, compact JWT signing for ID tokens, and the JWK export used by
// the JWKS endpoint.
package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Manager holds the server's asymmetric signing key. It is immutable after
// construction and safe for unsynchronized concurrent use; no runtime key
// rotation is supported.
type Manager struct {
	key   *ecdsa.PrivateKey
	keyID string
}

// New wraps an existing ES256 private key.
func New(key *ecdsa.PrivateKey) (*Manager, error) {
	if key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key must use curve P-256, got %s", key.Curve.Params().Name)
	}

	keyID, err := deriveKeyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	return &Manager{key: key, keyID: keyID}, nil
}

// Generate creates a fresh P-256 key. Intended for development and tests;
// production deployments load a persisted key so the published kid stays
// stable across restarts.
func Generate() (*Manager, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return New(key)
}

// deriveKeyID computes the key identifier as a content hash of the public
// key's PKIX encoding. The same key always yields the same kid, so JWKS
// consumers see a stable identifier across restarts.
func deriveKeyID(pub *ecdsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to encode public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:16]), nil
}

// KeyID returns the stable key identifier published as the JWKS kid.
func (m *Manager) KeyID() string {
	return m.keyID
}

// Public returns the public half of the signing key.
func (m *Manager) Public() *ecdsa.PublicKey {
	return &m.key.PublicKey
}

// Sign produces a compact ES256-signed JWT carrying the given claims, with
// the kid header set so verifiers can select the right JWKS entry.
func (m *Manager) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = m.keyID

	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// JWK is the public JSON Web Key representation of the signing key.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// PublicJWK exports the public key as a JWK for the JWKS document.
func (m *Manager) PublicJWK() JWK {
	pub := m.key.PublicKey
	byteLen := (pub.Curve.Params().BitSize + 7) / 8

	return JWK{
		Kty: "EC",
		Crv: "P-256",
		Kid: m.keyID,
		Use: "sig",
		Alg: "ES256",
		X:   base64.RawURLEncoding.EncodeToString(pub.X.FillBytes(make([]byte, byteLen))),
		Y:   base64.RawURLEncoding.EncodeToString(pub.Y.FillBytes(make([]byte, byteLen))),
	}
}
