// Package memory provides an in-memory implementation of all storage
// interfaces. It is suitable for development, testing, and single-instance
// deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/solstice-id/idp-oauth/storage"
)

// Store is an in-memory implementation of all storage interfaces.
// It implements CodeStore, AccessTokenStore, RefreshTokenStore, and
// ConsentStore. Atomicity of the take operations comes from the mutex: a
// take holds the write lock for the whole read-check-delete sequence.
type Store struct {
	mu sync.RWMutex

	codes         map[string]*storage.AuthorizationCodeRecord
	accessTokens  map[string]*storage.AccessTokenRecord
	refreshTokens map[string]*storage.RefreshToken
	consents      map[string]*storage.Consent // key: userID + "\x00" + clientID

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          *slog.Logger
}

// Compile-time interface checks.
var (
	_ storage.EphemeralStore = (*Store)(nil)
	_ storage.DurableStore   = (*Store)(nil)
)

// New creates a new in-memory store with the default cleanup interval (1 minute).
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with a custom cleanup interval.
// If cleanupInterval is 0 or negative, the default of 1 minute is used.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		codes:           make(map[string]*storage.AuthorizationCodeRecord),
		accessTokens:    make(map[string]*storage.AccessTokenRecord),
		refreshTokens:   make(map[string]*storage.RefreshToken),
		consents:        make(map[string]*storage.Consent),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// Stop gracefully stops the cleanup goroutine.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

func consentKey(userID, clientID string) string {
	return userID + "\x00" + clientID
}

// ============================================================
// CodeStore Implementation
// ============================================================

// SaveAuthorizationCode stores a code record with a TTL.
func (s *Store) SaveAuthorizationCode(_ context.Context, rec *storage.AuthorizationCodeRecord, ttl time.Duration) error {
	if rec == nil || rec.Code == "" {
		return fmt.Errorf("invalid authorization code record")
	}

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.ExpiresAt = cp.CreatedAt.Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[cp.Code] = &cp
	return nil
}

// TakeAuthorizationCode atomically retrieves and deletes a code record.
// The write lock covers lookup, expiry check, and deletion, so concurrent
// takes of the same code cannot both succeed.
func (s *Store) TakeAuthorizationCode(_ context.Context, code string) (*storage.AuthorizationCodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.codes[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(s.codes, code)

	if time.Now().After(rec.ExpiresAt) {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

// ============================================================
// AccessTokenStore Implementation
// ============================================================

// SaveAccessToken stores an access token record with a TTL.
func (s *Store) SaveAccessToken(_ context.Context, rec *storage.AccessTokenRecord, ttl time.Duration) error {
	if rec == nil || rec.Token == "" {
		return fmt.Errorf("invalid access token record")
	}

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.ExpiresAt = cp.CreatedAt.Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens[cp.Token] = &cp
	return nil
}

// GetAccessToken retrieves an access token record.
func (s *Store) GetAccessToken(_ context.Context, token string) (*storage.AccessTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.accessTokens[token]
	if !ok || time.Now().After(rec.ExpiresAt) {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// DeleteAccessToken removes an access token record. Idempotent.
func (s *Store) DeleteAccessToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accessTokens, token)
	return nil
}

// ============================================================
// RefreshTokenStore Implementation
// ============================================================

// CreateRefreshToken stores a new refresh token row.
func (s *Store) CreateRefreshToken(_ context.Context, rec *storage.RefreshToken) error {
	if rec == nil || rec.Token == "" {
		return fmt.Errorf("invalid refresh token record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refreshTokens[rec.Token]; ok {
		return storage.ErrAlreadyExists
	}

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.refreshTokens[cp.Token] = &cp
	return nil
}

// TakeRefreshToken atomically retrieves and deletes a refresh token.
// Expired tokens are deleted and reported as not found (fails closed).
func (s *Store) TakeRefreshToken(_ context.Context, token string) (*storage.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.refreshTokens[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(s.refreshTokens, token)

	if time.Now().After(rec.ExpiresAt) {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

// DeleteRefreshToken removes a refresh token row. Idempotent.
func (s *Store) DeleteRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshTokens, token)
	return nil
}

// ============================================================
// ConsentStore Implementation
// ============================================================

// UpsertConsent creates or replaces the consent for (UserID, ClientID).
func (s *Store) UpsertConsent(_ context.Context, consent *storage.Consent) error {
	if consent == nil || consent.UserID == "" || consent.ClientID == "" {
		return fmt.Errorf("invalid consent record")
	}

	cp := *consent
	cp.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[consentKey(cp.UserID, cp.ClientID)] = &cp
	return nil
}

// GetConsent retrieves the consent for (userID, clientID).
func (s *Store) GetConsent(_ context.Context, userID, clientID string) (*storage.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.consents[consentKey(userID, clientID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes expired codes, access tokens, and refresh tokens.
// Consents have no TTL and are never swept.
func (s *Store) cleanup() {
	now := time.Now()
	removed := 0

	s.mu.Lock()
	for code, rec := range s.codes {
		if now.After(rec.ExpiresAt) {
			delete(s.codes, code)
			removed++
		}
	}
	for token, rec := range s.accessTokens {
		if now.After(rec.ExpiresAt) {
			delete(s.accessTokens, token)
			removed++
		}
	}
	for token, rec := range s.refreshTokens {
		if now.After(rec.ExpiresAt) {
			delete(s.refreshTokens, token)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug("Expired records cleaned up", "removed", removed)
	}
}
