// Package storage defines the store contracts for the authorization protocol
// engine: ephemeral stores for authorization codes and access tokens, and
// durable stores for refresh tokens and user consents. Implementations exist
// for in-memory (testing, single instance), Redis (ephemeral), and SQL via
// gorm (durable).
package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by store implementations. Engines map these to the
// OAuth error vocabulary; anything else is an infrastructure failure and
// surfaces as server_error.
var (
	// ErrNotFound indicates the requested record does not exist or has expired.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyExists indicates a conditional create hit an existing key.
	ErrAlreadyExists = errors.New("storage: already exists")
)

// AuthorizationCodeRecord is the ephemeral record bound to an issued
// authorization code. It lives for the code TTL (10 minutes) and is consumed
// exactly once.
type AuthorizationCodeRecord struct {
	Code                string
	ClientID            string
	UserID              string
	CodeChallenge       string
	CodeChallengeMethod string // "plain" or "S256"
	RedirectURI         string
	Scope               []string
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// SubjectKind distinguishes user-bound from client-bound access tokens.
type SubjectKind string

const (
	SubjectUser   SubjectKind = "user"
	SubjectClient SubjectKind = "client"
)

// AccessTokenRecord is the ephemeral record behind an opaque access token.
type AccessTokenRecord struct {
	Token       string
	SubjectKind SubjectKind
	SubjectID   string
	ClientID    string
	Scope       []string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// RefreshToken is the durable record behind an opaque refresh token.
// Exactly one row exists per token value; rotation deletes the old row and
// creates a new one.
type RefreshToken struct {
	Token     string `gorm:"primaryKey;column:token"`
	UserID    string `gorm:"index;column:user_id"`
	ClientID  string `gorm:"index;column:client_id"`
	Scope     string `gorm:"column:scope"` // space-joined
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}

// Consent records the scopes a user has approved for a client. A later
// consent fully supersedes an earlier one.
type Consent struct {
	UserID         string `gorm:"primaryKey;column:user_id"`
	ClientID       string `gorm:"primaryKey;column:client_id"`
	ApprovedScopes string `gorm:"column:approved_scopes"` // space-joined
	UpdatedAt      time.Time
}

// CodeStore holds single-use authorization codes.
// All methods accept context.Context for tracing and cancellation.
type CodeStore interface {
	// SaveAuthorizationCode stores a code record with a TTL.
	SaveAuthorizationCode(ctx context.Context, rec *AuthorizationCodeRecord, ttl time.Duration) error

	// TakeAuthorizationCode atomically retrieves and deletes a code record.
	// Two concurrent takes of the same code must not both succeed; the loser
	// gets ErrNotFound.
	// SECURITY: This operation MUST be atomic to prevent concurrent code
	// redemption attacks.
	TakeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCodeRecord, error)
}

// AccessTokenStore holds opaque access token records.
// All methods accept context.Context for tracing and cancellation.
type AccessTokenStore interface {
	// SaveAccessToken stores an access token record with a TTL.
	SaveAccessToken(ctx context.Context, rec *AccessTokenRecord, ttl time.Duration) error

	// GetAccessToken retrieves an access token record.
	GetAccessToken(ctx context.Context, token string) (*AccessTokenRecord, error)

	// DeleteAccessToken removes an access token record. Deleting a missing
	// token is not an error (revocation is idempotent).
	DeleteAccessToken(ctx context.Context, token string) error
}

// RefreshTokenStore holds durable refresh tokens.
// All methods accept context.Context for tracing and cancellation.
type RefreshTokenStore interface {
	// CreateRefreshToken stores a new refresh token. Returns ErrAlreadyExists
	// if a row with the same token value exists.
	CreateRefreshToken(ctx context.Context, rec *RefreshToken) error

	// TakeRefreshToken atomically retrieves and deletes a refresh token.
	// This is the rotation primitive: the consumed token must become unusable
	// as part of the same operation. Expired tokens are treated as not found.
	// SECURITY: This operation MUST be atomic so a token cannot be redeemed
	// twice under concurrent refresh attempts.
	TakeRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// DeleteRefreshToken removes a refresh token. Deleting a missing token is
	// not an error (revocation is idempotent).
	DeleteRefreshToken(ctx context.Context, token string) error
}

// ConsentStore holds per (user, client) consent records.
// All methods accept context.Context for tracing and cancellation.
type ConsentStore interface {
	// UpsertConsent creates or replaces the consent for (UserID, ClientID).
	// Replacement is total: the new approved-scope set supersedes the old.
	UpsertConsent(ctx context.Context, consent *Consent) error

	// GetConsent retrieves the consent for (userID, clientID).
	GetConsent(ctx context.Context, userID, clientID string) (*Consent, error)
}

// EphemeralStore is the combined contract for the cache-backed stores.
type EphemeralStore interface {
	CodeStore
	AccessTokenStore
}

// DurableStore is the combined contract for the persistence-backed stores.
type DurableStore interface {
	RefreshTokenStore
	ConsentStore
}
