package oauth

import (
	"log/slog"
	"time"

	"github.com/solstice-id/idp-oauth/directory"
	"github.com/solstice-id/idp-oauth/instrumentation"
	"github.com/solstice-id/idp-oauth/keys"
	"github.com/solstice-id/idp-oauth/storage"
)

// Default lifetimes and limits applied by applySecureDefaults.
const (
	// DefaultCodeTTL is how long an authorization code stays redeemable.
	DefaultCodeTTL = 10 * time.Minute

	// DefaultAccessTokenTTL is the lifetime of user-bound access tokens.
	DefaultAccessTokenTTL = 3 * time.Hour

	// DefaultClientCredentialsTTL is the lifetime of access tokens issued
	// through the client_credentials grant (service-to-service).
	DefaultClientCredentialsTTL = 90 * 24 * time.Hour

	// DefaultRefreshTokenTTL is the lifetime of refresh tokens.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	// DefaultStorageTimeout bounds every cache and store call.
	DefaultStorageTimeout = 5 * time.Second
)

// Config holds the authorization server configuration
type Config struct {
	// Issuer is the server's issuer identifier URL (required).
	// Appears in discovery metadata, ID token iss claims, and the
	// iss parameter on authorize redirects.
	Issuer string

	// BaseURL is the externally visible base URL of the OAuth endpoints.
	// Defaults to Issuer.
	BaseURL string

	// Ephemeral backs authorization codes and access tokens (required).
	Ephemeral storage.EphemeralStore

	// Durable backs refresh tokens and consents (required).
	Durable storage.DurableStore

	// Clients resolves and authenticates OAuth clients (required).
	Clients directory.ClientDirectory

	// Users resolves user profile summaries for ID token claims (required).
	Users directory.UserDirectory

	// Keys signs ID tokens and publishes the JWKS document (required).
	Keys *keys.Manager

	// Lifetimes (secure defaults applied when zero)
	CodeTTL              time.Duration
	AccessTokenTTL       time.Duration
	ClientCredentialsTTL time.Duration
	RefreshTokenTTL      time.Duration

	// StorageTimeout bounds every cache and store call. Default: 5s.
	StorageTimeout time.Duration

	// AllowPKCEPlain permits the "plain" code challenge method.
	// WARNING: weakens PKCE; OAuth 2.1 recommends S256 only.
	AllowPKCEPlain bool

	// RateLimit configures per-IP rate limiting on the authorize and
	// token endpoints.
	RateLimit RateLimitConfig

	// EnableAuditLogging enables security audit logging.
	// Logs issuance, rotation, revocation and failures (PII hashed).
	EnableAuditLogging bool

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Instrumentation provides meters and tracers (optional; a disabled
	// no-op instance is created when nil).
	Instrumentation *instrumentation.Instrumentation
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate float64

	// Burst is the maximum burst size allowed per IP.
	Burst int

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TrustedProxyCount is the number of trusted proxies in front of the
	// server, used to pick the right X-Forwarded-For entry.
	TrustedProxyCount int
}

// applySecureDefaults fills zero-valued settings with secure defaults.
func (c *Config) applySecureDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = c.Issuer
	}
	if c.CodeTTL <= 0 {
		c.CodeTTL = DefaultCodeTTL
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if c.ClientCredentialsTTL <= 0 {
		c.ClientCredentialsTTL = DefaultClientCredentialsTTL
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if c.StorageTimeout <= 0 {
		c.StorageTimeout = DefaultStorageTimeout
	}
	if c.RateLimit.Rate > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
