package oauth

import (
	"context"
	"time"
)

// Token type hints accepted by Revoke (RFC 7009).
const (
	TokenTypeHintAccessToken  = "access_token"
	TokenTypeHintRefreshToken = "refresh_token"
)

// Revoke invalidates an access or refresh token. Revocation is idempotent:
// revoking an unknown or already-revoked token succeeds, and the response
// never reveals whether the token existed.
func (s *Server) Revoke(ctx context.Context, token, tokenTypeHint string) error {
	if token == "" {
		return ErrInvalidRequest("token is required")
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	switch tokenTypeHint {
	case TokenTypeHintAccessToken:
		start := time.Now()
		err := s.ephemeral.DeleteAccessToken(sctx, token)
		s.recordStorageOp(ctx, "delete_access_token", start, err)
		if err != nil {
			s.logger.Error("Failed to delete access token", "error", err)
			return ErrServerError("revocation failed")
		}
	case TokenTypeHintRefreshToken:
		start := time.Now()
		err := s.durable.DeleteRefreshToken(sctx, token)
		s.recordStorageOp(ctx, "delete_refresh_token", start, err)
		if err != nil {
			s.logger.Error("Failed to delete refresh token", "error", err)
			return ErrServerError("revocation failed")
		}
	default:
		return ErrInvalidRequest("token_type_hint must be access_token or refresh_token")
	}

	s.inst.Metrics().RecordTokenRevoked(ctx, tokenTypeHint)
	s.logger.Info("Token revoked", "token_type_hint", tokenTypeHint)
	return nil
}
