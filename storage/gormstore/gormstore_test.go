package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/solstice-id/idp-oauth/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s, err := New(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateRefreshTokenDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &storage.RefreshToken{
		Token:     "rt-1",
		UserID:    "user-1",
		ClientID:  "client-1",
		Scope:     "profile offline_access",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, s.CreateRefreshToken(ctx, rec))

	dup := *rec
	err := s.CreateRefreshToken(ctx, &dup)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestTakeRefreshToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &storage.RefreshToken{
		Token:     "rt-take",
		UserID:    "user-1",
		ClientID:  "client-1",
		Scope:     "profile offline_access",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, s.CreateRefreshToken(ctx, rec))

	got, err := s.TakeRefreshToken(ctx, "rt-take")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "client-1", got.ClientID)
	assert.Equal(t, "profile offline_access", got.Scope)

	// The take deleted the row; a second take must fail.
	_, err = s.TakeRefreshToken(ctx, "rt-take")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTakeRefreshTokenExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &storage.RefreshToken{
		Token:     "rt-exp",
		UserID:    "user-1",
		ClientID:  "client-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, s.CreateRefreshToken(ctx, rec))

	// Expired rows are consumed but reported as not found.
	_, err := s.TakeRefreshToken(ctx, "rt-exp")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.TakeRefreshToken(ctx, "rt-exp")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteRefreshTokenIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &storage.RefreshToken{
		Token:     "rt-del",
		ClientID:  "client-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, s.CreateRefreshToken(ctx, rec))

	assert.NoError(t, s.DeleteRefreshToken(ctx, "rt-del"))
	assert.NoError(t, s.DeleteRefreshToken(ctx, "rt-del"))
	assert.NoError(t, s.DeleteRefreshToken(ctx, "never-existed"))
}

func TestUpsertConsentReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &storage.Consent{UserID: "user-1", ClientID: "client-1", ApprovedScopes: "profile email offline_access"}
	require.NoError(t, s.UpsertConsent(ctx, first))

	second := &storage.Consent{UserID: "user-1", ClientID: "client-1", ApprovedScopes: "profile"}
	require.NoError(t, s.UpsertConsent(ctx, second))

	got, err := s.GetConsent(ctx, "user-1", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "profile", got.ApprovedScopes, "later consent fully supersedes earlier")
}

func TestConsentKeyedPerUserClientPair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertConsent(ctx, &storage.Consent{UserID: "user-1", ClientID: "client-a", ApprovedScopes: "profile"}))
	require.NoError(t, s.UpsertConsent(ctx, &storage.Consent{UserID: "user-1", ClientID: "client-b", ApprovedScopes: "email"}))

	gotA, err := s.GetConsent(ctx, "user-1", "client-a")
	require.NoError(t, err)
	assert.Equal(t, "profile", gotA.ApprovedScopes)

	gotB, err := s.GetConsent(ctx, "user-1", "client-b")
	require.NoError(t, err)
	assert.Equal(t, "email", gotB.ApprovedScopes)
}

func TestGetConsentNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetConsent(context.Background(), "nobody", "client-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
