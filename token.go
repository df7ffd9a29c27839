package oauth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/solstice-id/idp-oauth/security"
	"github.com/solstice-id/idp-oauth/storage"
)

// Grant types supported by the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
)

const tokenTypeBearer = "Bearer"

// idTokenClaims is the claim set carried by signed ID tokens.
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Token handles a token endpoint request, dispatching on grant type.
func (s *Server) Token(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	switch req.GrantType {
	case GrantTypeAuthorizationCode:
		return s.exchangeAuthorizationCode(ctx, req)
	case GrantTypeRefreshToken:
		return s.refreshAccessToken(ctx, req)
	case GrantTypeClientCredentials:
		return s.clientCredentialsGrant(ctx, req)
	case "":
		return nil, ErrInvalidRequest("grant_type is required")
	default:
		return nil, ErrUnsupportedGrantType("unsupported grant type: " + req.GrantType)
	}
}

// exchangeAuthorizationCode redeems a single-use authorization code for an
// access token, an optional refresh token, and an optional ID token.
func (s *Server) exchangeAuthorizationCode(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, ErrInvalidRequest("code is required")
	}
	if req.ClientID == "" {
		return nil, ErrInvalidRequest("client_id is required")
	}
	if req.CodeVerifier == "" {
		return nil, ErrInvalidRequest("code_verifier is required")
	}

	// Atomic take: under concurrent redemption exactly one caller gets the
	// record, every other caller sees not found.
	sctx, cancel := s.storageCtx(ctx)
	start := time.Now()
	code, err := s.ephemeral.TakeAuthorizationCode(sctx, req.Code)
	cancel()
	s.recordStorageOp(ctx, "take_authorization_code", start, err)
	if errors.Is(err, storage.ErrNotFound) {
		s.inst.Metrics().RecordCodeReplayDetected(ctx)
		s.auditor.LogEvent(security.Event{
			Type:     security.EventCodeReplayed,
			ClientID: req.ClientID,
		})
		return nil, ErrInvalidGrant("authorization code is invalid or expired")
	}
	if err != nil {
		s.logger.Error("Failed to take authorization code", "client_id", req.ClientID, "error", err)
		return nil, ErrServerError("code redemption failed")
	}

	if code.ClientID != req.ClientID {
		s.auditor.LogAuthFailure(code.UserID, req.ClientID, "", "authorization code client mismatch")
		return nil, ErrInvalidClient("authorization code was issued to a different client")
	}

	if !verifyPKCE(code.CodeChallenge, code.CodeChallengeMethod, req.CodeVerifier) {
		s.inst.Metrics().RecordPKCEValidationFailed(ctx, code.CodeChallengeMethod)
		s.auditor.LogEvent(security.Event{
			Type:     security.EventPKCEValidationFailed,
			UserID:   code.UserID,
			ClientID: req.ClientID,
			Details:  map[string]any{"method": code.CodeChallengeMethod},
		})
		return nil, ErrInvalidRequest("PKCE verification failed")
	}

	access, err := s.issueAccessToken(ctx, storage.SubjectUser, code.UserID, code.ClientID, code.Scope, s.config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	resp := &TokenResponse{
		AccessToken: access.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(s.config.AccessTokenTTL.Seconds()),
		Scope:       JoinScopes(code.Scope),
	}

	if containsScope(code.Scope, ScopeOfflineAccess) {
		refresh, err := s.mintRefreshToken(ctx, code.UserID, code.ClientID, code.Scope)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = refresh
	}

	if containsScope(code.Scope, ScopeOpenID) {
		idToken, err := s.signIDToken(ctx, code.UserID, code.ClientID)
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken
	}

	s.auditor.LogTokenIssued(code.UserID, code.ClientID, GrantTypeAuthorizationCode, resp.Scope)
	s.inst.Metrics().RecordTokenIssued(ctx, code.ClientID, GrantTypeAuthorizationCode)
	s.logger.Info("Access token issued",
		"client_id", code.ClientID,
		"grant_type", GrantTypeAuthorizationCode,
		"scope", resp.Scope,
		"refresh_token", resp.RefreshToken != "",
		"id_token", resp.IDToken != "")

	return resp, nil
}

// refreshAccessToken redeems a refresh token for a new access token,
// rotating the refresh token when offline_access is still in scope.
func (s *Server) refreshAccessToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, ErrInvalidRequest("refresh_token is required")
	}
	if req.ClientID == "" {
		return nil, ErrInvalidRequest("client_id is required")
	}

	// Atomic take doubles as rotation: the consumed token is unusable from
	// this point even if minting the replacement fails.
	sctx, cancel := s.storageCtx(ctx)
	start := time.Now()
	old, err := s.durable.TakeRefreshToken(sctx, req.RefreshToken)
	cancel()
	s.recordStorageOp(ctx, "take_refresh_token", start, err)
	if errors.Is(err, storage.ErrNotFound) {
		s.auditor.LogEvent(security.Event{
			Type:     security.EventRefreshTokenReplayed,
			ClientID: req.ClientID,
		})
		return nil, ErrInvalidGrant("refresh token is invalid or expired")
	}
	if err != nil {
		s.logger.Error("Failed to take refresh token", "client_id", req.ClientID, "error", err)
		return nil, ErrServerError("refresh token redemption failed")
	}

	if security.IsTokenExpiredWithGracePeriod(old.ExpiresAt, security.DefaultClockSkewGracePeriod) {
		return nil, ErrInvalidGrant("refresh token is invalid or expired")
	}

	if old.ClientID != req.ClientID {
		s.auditor.LogAuthFailure(old.UserID, req.ClientID, "", "refresh token client mismatch")
		return nil, ErrInvalidGrant("refresh token was issued to a different client")
	}

	scopes := ParseScopes(old.Scope)

	access, err := s.issueAccessToken(ctx, storage.SubjectUser, old.UserID, old.ClientID, scopes, s.config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	resp := &TokenResponse{
		AccessToken: access.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(s.config.AccessTokenTTL.Seconds()),
		Scope:       old.Scope,
	}

	rotated := false
	if containsScope(scopes, ScopeOfflineAccess) {
		refresh, err := s.mintRefreshToken(ctx, old.UserID, old.ClientID, scopes)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = refresh
		rotated = true
	}

	s.auditor.LogTokenRefreshed(old.UserID, old.ClientID, rotated)
	s.inst.Metrics().RecordTokenIssued(ctx, old.ClientID, GrantTypeRefreshToken)
	s.logger.Info("Access token refreshed",
		"client_id", old.ClientID,
		"scope", old.Scope,
		"rotated", rotated)

	return resp, nil
}

// clientCredentialsGrant authenticates a client by secret and issues a
// long-lived client-bound access token. No consent check applies; this is
// service-to-service issuance.
func (s *Server) clientCredentialsGrant(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	if req.ClientID == "" {
		return nil, ErrInvalidRequest("client_id is required")
	}
	if req.ClientSecret == "" {
		return nil, ErrInvalidClient("client authentication required")
	}

	// Reject on mismatch; a matching secret proceeds.
	if err := s.config.Clients.VerifyClientSecret(ctx, req.ClientID, req.ClientSecret); err != nil {
		s.auditor.LogAuthFailure("", req.ClientID, "", "client secret verification failed")
		return nil, ErrInvalidClient("client authentication failed")
	}

	access, err := s.issueAccessToken(ctx, storage.SubjectClient, req.ClientID, req.ClientID, req.Scopes, s.config.ClientCredentialsTTL)
	if err != nil {
		return nil, err
	}

	scope := JoinScopes(req.Scopes)
	s.auditor.LogTokenIssued("", req.ClientID, GrantTypeClientCredentials, scope)
	s.inst.Metrics().RecordTokenIssued(ctx, req.ClientID, GrantTypeClientCredentials)
	s.logger.Info("Access token issued",
		"client_id", req.ClientID,
		"grant_type", GrantTypeClientCredentials,
		"scope", scope)

	return &TokenResponse{
		AccessToken: access.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(s.config.ClientCredentialsTTL.Seconds()),
		Scope:       scope,
	}, nil
}

// issueAccessToken mints an opaque access token and stores its record.
func (s *Server) issueAccessToken(ctx context.Context, kind storage.SubjectKind, subjectID, clientID string, scopes []string, ttl time.Duration) (*storage.AccessTokenRecord, error) {
	now := time.Now()
	rec := &storage.AccessTokenRecord{
		Token:       security.NewOpaqueToken(),
		SubjectKind: kind,
		SubjectID:   subjectID,
		ClientID:    clientID,
		Scope:       scopes,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	start := time.Now()
	err := s.ephemeral.SaveAccessToken(sctx, rec, ttl)
	s.recordStorageOp(ctx, "save_access_token", start, err)
	if err != nil {
		s.logger.Error("Failed to store access token", "client_id", clientID, "error", err)
		return nil, ErrServerError("failed to issue access token")
	}
	return rec, nil
}

// mintRefreshToken creates and persists a new refresh token.
func (s *Server) mintRefreshToken(ctx context.Context, userID, clientID string, scopes []string) (string, error) {
	now := time.Now()
	rec := &storage.RefreshToken{
		Token:     security.NewOpaqueToken(),
		UserID:    userID,
		ClientID:  clientID,
		Scope:     JoinScopes(scopes),
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.RefreshTokenTTL),
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	start := time.Now()
	err := s.durable.CreateRefreshToken(sctx, rec)
	s.recordStorageOp(ctx, "create_refresh_token", start, err)
	if err != nil {
		s.logger.Error("Failed to store refresh token", "client_id", clientID, "error", err)
		return "", ErrServerError("failed to issue refresh token")
	}
	return rec.Token, nil
}

// signIDToken builds and signs the OIDC ID token for a user/client pair.
// Profile claims are best-effort: a user directory miss drops email/name but
// never blocks token issuance.
func (s *Server) signIDToken(ctx context.Context, userID, clientID string) (string, error) {
	now := time.Now()
	claims := idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{clientID},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	user, err := s.config.Users.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("User lookup failed while building ID token, omitting profile claims", "error", err)
	} else {
		claims.Email = user.Email
		claims.Name = user.Name
	}

	signed, err := s.config.Keys.Sign(claims)
	if err != nil {
		s.logger.Error("Failed to sign ID token", "client_id", clientID, "error", err)
		return "", ErrServerError("failed to sign ID token")
	}
	return signed, nil
}

// verifyPKCE checks a code verifier against the stored challenge using
// constant-time comparison.
func verifyPKCE(challenge, method, verifier string) bool {
	var derived string
	switch method {
	case CodeChallengeMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		derived = base64.RawURLEncoding.EncodeToString(sum[:])
	case CodeChallengeMethodPlain:
		derived = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
}
