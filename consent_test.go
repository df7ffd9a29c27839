package oauth

import (
	"context"
	"testing"
)

func TestUpsertConsentValidatesScopes(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	err := s.UpsertConsent(ctx, testUserID, testClientID, []string{ScopeProfile, "not-a-scope"})
	wantOAuthError(t, err, ErrorCodeInvalidScope)

	err = s.UpsertConsent(ctx, testUserID, testClientID, nil)
	wantOAuthError(t, err, ErrorCodeInvalidRequest)

	err = s.UpsertConsent(ctx, "", testClientID, []string{ScopeProfile})
	wantOAuthError(t, err, ErrorCodeAccessDenied)
}

func TestConsentReplacementNarrowsAuthorization(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	// The fixture consent covers email; after replacing it with profile
	// only, an email request must fail.
	if err := s.UpsertConsent(ctx, testUserID, testClientID, []string{ScopeProfile}); err != nil {
		t.Fatalf("UpsertConsent: %v", err)
	}

	req := validAuthorizeRequest()
	req.Scopes = []string{ScopeEmail}
	_, err := s.Authorize(ctx, req, testUserID)
	wantOAuthError(t, err, ErrorCodeInvalidScope)

	req.Scopes = []string{ScopeProfile}
	if _, err := s.Authorize(ctx, req, testUserID); err != nil {
		t.Fatalf("profile request after replacement failed: %v", err)
	}
}
