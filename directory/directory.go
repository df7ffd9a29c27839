// Package directory defines the narrow collaborator interfaces the protocol
// engine consumes: read-only client lookup with secret verification, and
// user lookup for ID token claims. Client and user management live outside
// this module; the engine only reads.
package directory

import "context"

// Client is the read-only view of a registered OAuth client.
type Client struct {
	ID             string
	SecretHash     string // bcrypt hash; empty for public clients
	RedirectURIs   []string
	AllowedScopes  []string
	OptionalScopes []string
	IDTokenAllowed bool
}

// GrantsScope reports whether the client may request the scope, i.e. the
// scope is in AllowedScopes or OptionalScopes.
func (c *Client) GrantsScope(scope string) bool {
	for _, s := range c.AllowedScopes {
		if s == scope {
			return true
		}
	}
	for _, s := range c.OptionalScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// UserSummary is the read-only view of a user needed for ID token claims.
type UserSummary struct {
	ID    string
	Email string
	Name  string
}

// ClientDirectory resolves clients and verifies their secrets.
type ClientDirectory interface {
	// GetClient resolves a client by ID. Unknown clients return an error;
	// implementations should return a generic error to prevent enumeration.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// VerifyClientSecret verifies a presented secret against the client's
	// stored hash. It must reject on mismatch and take the same time whether
	// or not the client exists.
	VerifyClientSecret(ctx context.Context, clientID, clientSecret string) error
}

// UserDirectory resolves users for ID token claims.
type UserDirectory interface {
	// GetUser resolves a user by ID.
	GetUser(ctx context.Context, userID string) (*UserSummary, error)
}
