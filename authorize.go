package oauth

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/solstice-id/idp-oauth/security"
	"github.com/solstice-id/idp-oauth/storage"
)

// PKCE code challenge methods.
const (
	CodeChallengeMethodS256  = "S256"
	CodeChallengeMethodPlain = "plain"
)

// Authorize validates an authorization request on behalf of an authenticated
// user and issues a PKCE-bound, single-use authorization code. The returned
// result carries the redirect location the user-agent should follow.
//
// Validation order: unknown client, then scope against the known-scope
// registry, the client's allowed scopes and the user's consent, then the
// redirect URI (literal match only), then ID token eligibility.
func (s *Server) Authorize(ctx context.Context, req *AuthorizeRequest, userID string) (*AuthorizeResult, error) {
	if userID == "" {
		return nil, ErrAccessDenied("user authentication is required")
	}
	if req.ClientID == "" {
		return nil, ErrInvalidRequest("client_id is required")
	}
	if req.RedirectURI == "" {
		return nil, ErrInvalidRequest("redirect_uri is required")
	}
	if len(req.Scopes) == 0 {
		return nil, ErrInvalidRequest("scope is required")
	}
	if req.ResponseType != "" && req.ResponseType != "code" {
		return nil, ErrUnsupportedResponseType("only the code response type is supported")
	}

	method, err := s.validateCodeChallenge(req.CodeChallenge, req.CodeChallengeMethod)
	if err != nil {
		return nil, err
	}

	client, err := s.config.Clients.GetClient(ctx, req.ClientID)
	if err != nil {
		s.auditor.LogAuthFailure(userID, req.ClientID, "", "unknown client")
		return nil, ErrUnauthorizedClient("unknown client")
	}

	sctx, cancel := s.storageCtx(ctx)
	start := time.Now()
	consent, err := s.durable.GetConsent(sctx, userID, req.ClientID)
	cancel()
	s.recordStorageOp(ctx, "get_consent", start, err)
	if errors.Is(err, storage.ErrNotFound) {
		s.auditor.LogAuthFailure(userID, req.ClientID, "", "no consent on record")
		return nil, ErrInvalidScope("no consent on record for this client")
	}
	if err != nil {
		s.logger.Error("Failed to load consent", "client_id", req.ClientID, "error", err)
		return nil, ErrServerError("consent lookup failed")
	}

	approved := scopeSet(ParseScopes(consent.ApprovedScopes))
	for _, scope := range req.Scopes {
		if !IsKnownScope(scope) {
			return nil, ErrInvalidScope("unknown scope: " + scope)
		}
		if !client.GrantsScope(scope) {
			return nil, ErrInvalidScope("scope not allowed for this client: " + scope)
		}
		if !approved[scope] {
			s.auditor.LogEvent(security.Event{
				Type:     security.EventScopeDenied,
				UserID:   userID,
				ClientID: req.ClientID,
				Details:  map[string]any{"scope": scope},
			})
			return nil, ErrInvalidScope("scope not consented: " + scope)
		}
	}

	// Literal match only; no wildcard or same-origin leniency.
	registered := false
	for _, uri := range client.RedirectURIs {
		if uri == req.RedirectURI {
			registered = true
			break
		}
	}
	if !registered {
		s.auditor.LogAuthFailure(userID, req.ClientID, "", "unregistered redirect URI")
		return nil, ErrAccessDenied("redirect URI is not registered for this client")
	}

	if containsScope(req.Scopes, ScopeOpenID) && !client.IDTokenAllowed {
		return nil, ErrInvalidScope("client is not eligible for ID tokens")
	}

	code := security.NewOpaqueToken()
	now := time.Now()
	rec := &storage.AuthorizationCodeRecord{
		Code:                code,
		ClientID:            req.ClientID,
		UserID:              userID,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: method,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scopes,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.config.CodeTTL),
	}

	sctx, cancel = s.storageCtx(ctx)
	start = time.Now()
	err = s.ephemeral.SaveAuthorizationCode(sctx, rec, s.config.CodeTTL)
	cancel()
	s.recordStorageOp(ctx, "save_authorization_code", start, err)
	if err != nil {
		s.logger.Error("Failed to store authorization code", "client_id", req.ClientID, "error", err)
		return nil, ErrServerError("failed to issue authorization code")
	}

	s.auditor.LogCodeIssued(userID, req.ClientID, JoinScopes(req.Scopes))
	s.inst.Metrics().RecordCodeIssued(ctx, req.ClientID)
	s.logger.Info("Authorization code issued",
		"client_id", req.ClientID,
		"scope", JoinScopes(req.Scopes),
		"expires_in", s.config.CodeTTL)

	location, err := buildRedirectLocation(req.RedirectURI, code, req.State, s.config.Issuer)
	if err != nil {
		return nil, ErrServerError("failed to build redirect location")
	}

	return &AuthorizeResult{
		Code:     code,
		State:    req.State,
		Issuer:   s.config.Issuer,
		Location: location,
	}, nil
}

// validateCodeChallenge checks the PKCE parameters and returns the effective
// challenge method. S256 is the default; plain requires opt-in.
func (s *Server) validateCodeChallenge(challenge, method string) (string, error) {
	if challenge == "" {
		return "", ErrInvalidRequest("code_challenge is required")
	}
	switch method {
	case "", CodeChallengeMethodS256:
		return CodeChallengeMethodS256, nil
	case CodeChallengeMethodPlain:
		if !s.config.AllowPKCEPlain {
			return "", ErrInvalidRequest("plain code challenge method is not allowed")
		}
		return CodeChallengeMethodPlain, nil
	default:
		return "", ErrInvalidRequest("unsupported code challenge method: " + method)
	}
}

// buildRedirectLocation appends code, state and iss to the redirect URI.
func buildRedirectLocation(redirectURI, code, state, issuer string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	q.Set("iss", issuer)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
