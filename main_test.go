package oauth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/solstice-id/idp-oauth/directory"
	"github.com/solstice-id/idp-oauth/directory/mock"
	"github.com/solstice-id/idp-oauth/internal/testutil"
	"github.com/solstice-id/idp-oauth/keys"
	"github.com/solstice-id/idp-oauth/storage/memory"
)

const (
	testIssuer       = "https://idp.example"
	testClientID     = "client-1"
	testClientSecret = "s3cret-value"
	testUserID       = "user-1"
	testRedirectURI  = "https://app.example/callback"
)

// newTestServer builds a server over the in-memory store with one registered
// client, one user, and consent for all known scopes.
func newTestServer(t *testing.T) (*Server, *mock.Directory) {
	t.Helper()

	store := memory.New()
	t.Cleanup(store.Stop)

	km, err := keys.Generate()
	if err != nil {
		t.Fatalf("failed to generate signing key: %v", err)
	}

	dir := mock.New()
	dir.AddClient(&directory.Client{
		ID:             testClientID,
		SecretHash:     testutil.MustHashSecret(t, testClientSecret),
		RedirectURIs:   []string{testRedirectURI},
		AllowedScopes:  []string{ScopeProfile, ScopeEmail},
		OptionalScopes: []string{ScopeOpenID, ScopeOfflineAccess},
		IDTokenAllowed: true,
	})
	dir.AddUser(&directory.UserSummary{
		ID:    testUserID,
		Email: "user@example.com",
		Name:  "Test User",
	})

	s, err := NewServer(Config{
		Issuer:    testIssuer,
		Ephemeral: store,
		Durable:   store,
		Clients:   dir,
		Users:     dir,
		Keys:      km,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(s.Close)

	grantConsent(t, s, testUserID, testClientID, ScopeProfile, ScopeEmail, ScopeOpenID, ScopeOfflineAccess)

	return s, dir
}

func grantConsent(t *testing.T, s *Server, userID, clientID string, scopes ...string) {
	t.Helper()
	if err := s.UpsertConsent(context.Background(), userID, clientID, scopes); err != nil {
		t.Fatalf("UpsertConsent: %v", err)
	}
}

// issueCode runs a full authorization for the fixture client and returns the
// issued code bound to the given PKCE verifier.
func issueCode(t *testing.T, s *Server, verifier string, scopes ...string) string {
	t.Helper()

	result, err := s.Authorize(context.Background(), &AuthorizeRequest{
		ClientID:            testClientID,
		RedirectURI:         testRedirectURI,
		Scopes:              scopes,
		CodeChallenge:       testutil.S256Challenge(verifier),
		CodeChallengeMethod: CodeChallengeMethodS256,
	}, testUserID)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	return result.Code
}

// wantOAuthError fails the test unless err is an *Error with the given code.
func wantOAuthError(t *testing.T, err error, code string) {
	t.Helper()

	var oauthErr *Error
	if !errors.As(err, &oauthErr) {
		t.Fatalf("got %v, want OAuth error %q", err, code)
	}
	if oauthErr.Code != code {
		t.Fatalf("got error code %q (%s), want %q", oauthErr.Code, oauthErr.Description, code)
	}
}
