package oauth

import "strings"

// Scope names understood by this server.
const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeOfflineAccess = "offline_access"
)

// knownScopes is the server's scope registry. Authorization requests and
// consent updates are validated against it; scopes outside this set are
// rejected with invalid_scope.
var knownScopes = map[string]bool{
	ScopeOpenID:        true,
	ScopeProfile:       true,
	ScopeEmail:         true,
	ScopeOfflineAccess: true,
}

// supportedClaims lists the claim names this server can put in ID tokens,
// published in the discovery document.
var supportedClaims = []string{"iss", "sub", "aud", "exp", "iat", "jti", "email", "name"}

// KnownScopes returns the registry as a sorted-order slice for discovery.
func KnownScopes() []string {
	return []string{ScopeOpenID, ScopeProfile, ScopeEmail, ScopeOfflineAccess}
}

// IsKnownScope reports whether the scope is in the server's registry.
func IsKnownScope(scope string) bool {
	return knownScopes[scope]
}

// ParseScopes splits a space-delimited scope parameter into individual
// scopes, dropping empty entries.
func ParseScopes(raw string) []string {
	if raw == "" {
		return nil
	}
	var scopes []string
	for _, s := range strings.Fields(raw) {
		scopes = append(scopes, s)
	}
	return scopes
}

// JoinScopes renders a scope list as the space-delimited wire form.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// containsScope reports whether scope appears in scopes.
func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// scopeSet builds a lookup set from a scope list.
func scopeSet(scopes []string) map[string]bool {
	set := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		set[s] = true
	}
	return set
}
