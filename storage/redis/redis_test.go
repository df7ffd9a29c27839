package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstice-id/idp-oauth/storage"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := NewWithClient(client, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestTakeAuthorizationCode(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec := &storage.AuthorizationCodeRecord{
		Code:                "code-1",
		ClientID:            "client-1",
		UserID:              "user-1",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: "S256",
		RedirectURI:         "https://app.example/cb",
		Scope:               []string{"profile", "offline_access"},
	}
	require.NoError(t, s.SaveAuthorizationCode(ctx, rec, 10*time.Minute))

	got, err := s.TakeAuthorizationCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "client-1", got.ClientID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, []string{"profile", "offline_access"}, got.Scope)

	// GETDEL consumed the key; a second take must miss.
	_, err = s.TakeAuthorizationCode(ctx, "code-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTakeAuthorizationCodeExpired(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	rec := &storage.AuthorizationCodeRecord{Code: "code-exp", ClientID: "client-1"}
	require.NoError(t, s.SaveAuthorizationCode(ctx, rec, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := s.TakeAuthorizationCode(ctx, "code-exp")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAccessTokenLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec := &storage.AccessTokenRecord{
		Token:       "at-1",
		SubjectKind: storage.SubjectClient,
		SubjectID:   "client-1",
		ClientID:    "client-1",
		Scope:       []string{"profile"},
	}
	require.NoError(t, s.SaveAccessToken(ctx, rec, time.Hour))

	got, err := s.GetAccessToken(ctx, "at-1")
	require.NoError(t, err)
	assert.Equal(t, storage.SubjectClient, got.SubjectKind)
	assert.Equal(t, "client-1", got.SubjectID)

	require.NoError(t, s.DeleteAccessToken(ctx, "at-1"))

	_, err = s.GetAccessToken(ctx, "at-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Revocation is idempotent.
	assert.NoError(t, s.DeleteAccessToken(ctx, "at-1"))
}

func TestAccessTokenServerSideTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	rec := &storage.AccessTokenRecord{Token: "at-ttl", ClientID: "client-1"}
	require.NoError(t, s.SaveAccessToken(ctx, rec, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := s.GetAccessToken(ctx, "at-ttl")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetAccessTokenMissing(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetAccessToken(context.Background(), "never-existed")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
