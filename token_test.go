package oauth

import (
	"context"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/solstice-id/idp-oauth/internal/testutil"
	"github.com/solstice-id/idp-oauth/storage"
)

const testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

func TestAuthorizationCodeExchange(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	code := issueCode(t, s, testVerifier, ScopeProfile)

	resp, err := s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		ClientID:     testClientID,
		Code:         code,
		CodeVerifier: testVerifier,
	})
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("no access token issued")
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", resp.TokenType)
	}
	if resp.Scope != ScopeProfile {
		t.Errorf("Scope = %q, want %q", resp.Scope, ScopeProfile)
	}
	// No offline_access requested, so no refresh token.
	if resp.RefreshToken != "" {
		t.Error("refresh token issued without offline_access")
	}
	if resp.IDToken != "" {
		t.Error("ID token issued without openid")
	}

	rec, err := s.ValidateAccessToken(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if rec.SubjectKind != storage.SubjectUser || rec.SubjectID != testUserID {
		t.Errorf("token bound to %s/%s, want user/%s", rec.SubjectKind, rec.SubjectID, testUserID)
	}

	// Second redemption of the same code always fails.
	_, err = s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		ClientID:     testClientID,
		Code:         code,
		CodeVerifier: testVerifier,
	})
	wantOAuthError(t, err, ErrorCodeInvalidGrant)
}

func TestAuthorizationCodeSingleUseUnderConcurrency(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	code := issueCode(t, s, testVerifier, ScopeProfile)

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Token(ctx, &TokenRequest{
				GrantType:    GrantTypeAuthorizationCode,
				ClientID:     testClientID,
				Code:         code,
				CodeVerifier: testVerifier,
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("concurrent redemption succeeded %d times, want exactly 1", successes)
	}
}

func TestAuthorizationCodePKCEBinding(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	code := issueCode(t, s, testVerifier, ScopeProfile)

	_, err := s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		ClientID:     testClientID,
		Code:         code,
		CodeVerifier: "some-other-verifier-entirely-0123456789",
	})
	wantOAuthError(t, err, ErrorCodeInvalidRequest)

	// The failed attempt consumed the code; even the right verifier cannot
	// redeem it now.
	_, err = s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		ClientID:     testClientID,
		Code:         code,
		CodeVerifier: testVerifier,
	})
	wantOAuthError(t, err, ErrorCodeInvalidGrant)
}

func TestAuthorizationCodeClientBinding(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	code := issueCode(t, s, testVerifier, ScopeProfile)

	_, err := s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		ClientID:     "other-client",
		Code:         code,
		CodeVerifier: testVerifier,
	})
	wantOAuthError(t, err, ErrorCodeInvalidClient)
}

func TestAuthorizationCodeWithOfflineAccessAndOpenID(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	code := issueCode(t, s, testVerifier, ScopeProfile, ScopeOpenID, ScopeOfflineAccess)

	resp, err := s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		ClientID:     testClientID,
		Code:         code,
		CodeVerifier: testVerifier,
	})
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if resp.RefreshToken == "" {
		t.Error("no refresh token despite offline_access")
	}
	if resp.IDToken == "" {
		t.Fatal("no ID token despite openid")
	}

	// The ID token must verify against the published key and carry the
	// expected subject and audience.
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(resp.IDToken, claims, func(token *jwt.Token) (any, error) {
		return s.config.Keys.Public(), nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	if err != nil || !parsed.Valid {
		t.Fatalf("ID token did not verify: %v", err)
	}
	if claims.Subject != testUserID {
		t.Errorf("sub = %q, want %q", claims.Subject, testUserID)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != testClientID {
		t.Errorf("aud = %v, want [%s]", claims.Audience, testClientID)
	}
	if claims.Issuer != testIssuer {
		t.Errorf("iss = %q, want %q", claims.Issuer, testIssuer)
	}
	if claims.ID == "" {
		t.Error("missing jti claim")
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	code := issueCode(t, s, testVerifier, ScopeProfile, ScopeOfflineAccess)
	first, err := s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		ClientID:     testClientID,
		Code:         code,
		CodeVerifier: testVerifier,
	})
	if err != nil {
		t.Fatalf("code exchange: %v", err)
	}

	second, err := s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeRefreshToken,
		ClientID:     testClientID,
		RefreshToken: first.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh exchange: %v", err)
	}
	if second.AccessToken == "" || second.AccessToken == first.AccessToken {
		t.Error("refresh did not issue a fresh access token")
	}
	if second.RefreshToken == "" || second.RefreshToken == first.RefreshToken {
		t.Error("refresh token was not rotated")
	}
	if second.Scope != first.Scope {
		t.Errorf("scope changed across rotation: %q vs %q", second.Scope, first.Scope)
	}

	// The consumed refresh token is dead.
	_, err = s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeRefreshToken,
		ClientID:     testClientID,
		RefreshToken: first.RefreshToken,
	})
	wantOAuthError(t, err, ErrorCodeInvalidGrant)

	// The rotated one works.
	third, err := s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeRefreshToken,
		ClientID:     testClientID,
		RefreshToken: second.RefreshToken,
	})
	if err != nil {
		t.Fatalf("second refresh exchange: %v", err)
	}
	if third.RefreshToken == "" {
		t.Error("rotation chain broken")
	}
}

func TestRefreshTokenClientBinding(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	code := issueCode(t, s, testVerifier, ScopeProfile, ScopeOfflineAccess)
	first, err := s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		ClientID:     testClientID,
		Code:         code,
		CodeVerifier: testVerifier,
	})
	if err != nil {
		t.Fatalf("code exchange: %v", err)
	}

	_, err = s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeRefreshToken,
		ClientID:     "other-client",
		RefreshToken: first.RefreshToken,
	})
	wantOAuthError(t, err, ErrorCodeInvalidGrant)
}

func TestRefreshTokenUnknown(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.Token(context.Background(), &TokenRequest{
		GrantType:    GrantTypeRefreshToken,
		ClientID:     testClientID,
		RefreshToken: "never-issued",
	})
	wantOAuthError(t, err, ErrorCodeInvalidGrant)
}

func TestClientCredentialsGrant(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	// Regression guard: a valid secret must succeed.
	resp, err := s.Token(ctx, &TokenRequest{
		GrantType:    GrantTypeClientCredentials,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Scopes:       []string{ScopeProfile},
	})
	if err != nil {
		t.Fatalf("valid secret rejected: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("no access token issued")
	}
	if resp.Scope != ScopeProfile {
		t.Errorf("Scope = %q, want verbatim %q", resp.Scope, ScopeProfile)
	}
	if resp.ExpiresIn != int64(DefaultClientCredentialsTTL.Seconds()) {
		t.Errorf("ExpiresIn = %d, want %d", resp.ExpiresIn, int64(DefaultClientCredentialsTTL.Seconds()))
	}

	rec, err := s.ValidateAccessToken(ctx, resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if rec.SubjectKind != storage.SubjectClient || rec.SubjectID != testClientID {
		t.Errorf("token bound to %s/%s, want client/%s", rec.SubjectKind, rec.SubjectID, testClientID)
	}
}

func TestClientCredentialsWrongSecret(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.Token(context.Background(), &TokenRequest{
		GrantType:    GrantTypeClientCredentials,
		ClientID:     testClientID,
		ClientSecret: "not-the-secret",
	})
	wantOAuthError(t, err, ErrorCodeInvalidClient)
}

func TestClientCredentialsUnknownClient(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.Token(context.Background(), &TokenRequest{
		GrantType:    GrantTypeClientCredentials,
		ClientID:     "ghost-client",
		ClientSecret: "whatever",
	})
	wantOAuthError(t, err, ErrorCodeInvalidClient)
}

func TestUnsupportedGrantType(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.Token(context.Background(), &TokenRequest{GrantType: "password"})
	wantOAuthError(t, err, ErrorCodeUnsupportedGrantType)

	_, err = s.Token(context.Background(), &TokenRequest{})
	wantOAuthError(t, err, ErrorCodeInvalidRequest)
}

func TestVerifyPKCE(t *testing.T) {
	challenge := testutil.S256Challenge(testVerifier)

	if !verifyPKCE(challenge, CodeChallengeMethodS256, testVerifier) {
		t.Error("valid S256 verifier rejected")
	}
	if verifyPKCE(challenge, CodeChallengeMethodS256, testVerifier+"x") {
		t.Error("invalid S256 verifier accepted")
	}
	if !verifyPKCE("plain-value", CodeChallengeMethodPlain, "plain-value") {
		t.Error("valid plain verifier rejected")
	}
	if verifyPKCE("plain-value", CodeChallengeMethodPlain, "other") {
		t.Error("invalid plain verifier accepted")
	}
	if verifyPKCE(challenge, "S512", testVerifier) {
		t.Error("unknown method accepted")
	}
}
