// Package redis provides a Redis-backed implementation of the ephemeral
// stores (authorization codes and access tokens). Records are JSON values
// with a server-side TTL; single-use semantics come from GETDEL, which is
// atomic on the Redis side.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solstice-id/idp-oauth/storage"
)

// Key prefixes for the different record types.
const (
	codePrefix        = "oauth:code:"
	accessTokenPrefix = "oauth:at:"
)

// Store is a Redis-backed ephemeral store.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

var _ storage.EphemeralStore = (*Store)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New creates a Redis-backed store and verifies connectivity.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client, logger: logger}, nil
}

// NewWithClient wraps an existing Redis client. Used by tests with miniredis.
func NewWithClient(client *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// SaveAuthorizationCode stores a code record under its TTL.
func (s *Store) SaveAuthorizationCode(ctx context.Context, rec *storage.AuthorizationCodeRecord, ttl time.Duration) error {
	if rec == nil || rec.Code == "" {
		return fmt.Errorf("invalid authorization code record")
	}

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.ExpiresAt = cp.CreatedAt.Add(ttl)

	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}

	if err := s.client.Set(ctx, codePrefix+cp.Code, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.logger.Debug("Saved authorization code", "client_id", cp.ClientID)
	return nil
}

// TakeAuthorizationCode atomically retrieves and deletes a code record via
// GETDEL. Concurrent takes of the same code see exactly one winner; the
// losers observe redis.Nil and get ErrNotFound.
func (s *Store) TakeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCodeRecord, error) {
	data, err := s.client.GetDel(ctx, codePrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to take authorization code: %w", err)
	}

	var rec storage.AuthorizationCodeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}

	// The server-side TTL already bounds the lifetime; this guards against a
	// key read just as it expires.
	if time.Now().After(rec.ExpiresAt) {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

// SaveAccessToken stores an access token record under its TTL.
func (s *Store) SaveAccessToken(ctx context.Context, rec *storage.AccessTokenRecord, ttl time.Duration) error {
	if rec == nil || rec.Token == "" {
		return fmt.Errorf("invalid access token record")
	}

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.ExpiresAt = cp.CreatedAt.Add(ttl)

	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("failed to marshal access token: %w", err)
	}

	if err := s.client.Set(ctx, accessTokenPrefix+cp.Token, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	return nil
}

// GetAccessToken retrieves an access token record.
func (s *Store) GetAccessToken(ctx context.Context, token string) (*storage.AccessTokenRecord, error) {
	data, err := s.client.Get(ctx, accessTokenPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	var rec storage.AccessTokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal access token: %w", err)
	}

	if time.Now().After(rec.ExpiresAt) {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

// DeleteAccessToken removes an access token record. Idempotent: deleting a
// missing key is not an error.
func (s *Store) DeleteAccessToken(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, accessTokenPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete access token: %w", err)
	}
	return nil
}
