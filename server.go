// Package oauth implements an OAuth 2.1 / OpenID Connect authorization and
// token protocol engine: PKCE-bound single-use authorization codes, opaque
// access tokens, rotating refresh tokens, signed ID tokens, a consent
// registry, token revocation, and discovery metadata.
//
// The engine is stateless between requests. Mutable state lives in the
// injected stores; collaborators (client and user directories, signing key)
// are constructor-injected interfaces.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solstice-id/idp-oauth/instrumentation"
	"github.com/solstice-id/idp-oauth/security"
	"github.com/solstice-id/idp-oauth/storage"
)

// Server is the authorization server engine. Construct with NewServer and
// expose over HTTP via Handler.
type Server struct {
	config Config
	logger *slog.Logger

	ephemeral storage.EphemeralStore
	durable   storage.DurableStore

	auditor     *security.Auditor
	rateLimiter *security.RateLimiter
	inst        *instrumentation.Instrumentation
}

// NewServer creates an authorization server from the given configuration,
// applying secure defaults for unset lifetimes and limits.
func NewServer(config Config) (*Server, error) {
	if config.Issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if config.Ephemeral == nil {
		return nil, fmt.Errorf("ephemeral store is required")
	}
	if config.Durable == nil {
		return nil, fmt.Errorf("durable store is required")
	}
	if config.Clients == nil {
		return nil, fmt.Errorf("client directory is required")
	}
	if config.Users == nil {
		return nil, fmt.Errorf("user directory is required")
	}
	if config.Keys == nil {
		return nil, fmt.Errorf("key manager is required")
	}

	config.applySecureDefaults()

	inst := config.Instrumentation
	if inst == nil {
		var err error
		inst, err = instrumentation.New(instrumentation.Config{Enabled: false})
		if err != nil {
			return nil, fmt.Errorf("failed to create instrumentation: %w", err)
		}
	}

	s := &Server{
		config:    config,
		logger:    config.Logger,
		ephemeral: config.Ephemeral,
		durable:   config.Durable,
		auditor:   security.NewAuditor(config.Logger, config.EnableAuditLogging),
		inst:      inst,
	}

	if config.RateLimit.Rate > 0 {
		s.rateLimiter = security.NewRateLimiter(config.RateLimit.Rate, config.RateLimit.Burst, config.Logger)
	}

	return s, nil
}

// Close releases background resources (rate limiter janitor).
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// Issuer returns the server's issuer identifier.
func (s *Server) Issuer() string {
	return s.config.Issuer
}

// storageCtx bounds a store call with the configured storage timeout.
func (s *Server) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.StorageTimeout)
}

// recordStorageOp records latency and outcome for a store call.
func (s *Server) recordStorageOp(ctx context.Context, op string, start time.Time, err error) {
	result := "success"
	switch {
	case errors.Is(err, storage.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	s.inst.Metrics().RecordStorageOperation(ctx, op, result, float64(time.Since(start).Milliseconds()))
}

// ValidateAccessToken resolves a bearer token to its record. Unknown or
// expired tokens fail closed with invalid_grant; a clock-skew grace period
// is applied to the expiry check.
func (s *Server) ValidateAccessToken(ctx context.Context, token string) (*storage.AccessTokenRecord, error) {
	if token == "" {
		return nil, ErrInvalidRequest("token is required")
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	start := time.Now()
	rec, err := s.ephemeral.GetAccessToken(sctx, token)
	s.recordStorageOp(ctx, "get_access_token", start, err)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidGrant("access token is invalid or expired")
	}
	if err != nil {
		s.logger.Error("Failed to look up access token", "error", err)
		return nil, ErrServerError("token lookup failed")
	}

	if security.IsTokenExpiredWithGracePeriod(rec.ExpiresAt, security.DefaultClockSkewGracePeriod) {
		return nil, ErrInvalidGrant("access token is invalid or expired")
	}

	return rec, nil
}
