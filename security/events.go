package security

// Event type constants for security audit logging. Using constants keeps
// event names consistent across the codebase.
const (
	// EventCodeIssued is logged when an authorization code is issued.
	EventCodeIssued = "authorization_code_issued"

	// EventTokenIssued is logged when a new access token is issued.
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when an access token is refreshed.
	EventTokenRefreshed = "token_refreshed"

	// EventTokenRevoked is logged when a token is revoked.
	EventTokenRevoked = "token_revoked"

	// EventConsentUpdated is logged when a user updates consent for a client.
	EventConsentUpdated = "consent_updated"

	// EventAuthFailure is logged when authentication fails.
	EventAuthFailure = "auth_failure"

	// EventRateLimitExceeded is logged when a rate limit is exceeded.
	EventRateLimitExceeded = "rate_limit_exceeded"

	// EventPKCEValidationFailed is logged when code_verifier validation fails.
	EventPKCEValidationFailed = "pkce_validation_failed"

	// EventCodeReplayed is logged when a consumed or unknown authorization
	// code is presented (possible interception).
	EventCodeReplayed = "authorization_code_replayed"

	// EventRefreshTokenReplayed is logged when a consumed or unknown refresh
	// token is presented.
	EventRefreshTokenReplayed = "refresh_token_replayed"

	// EventScopeDenied is logged when a request exceeds consented or
	// registered scopes.
	EventScopeDenied = "scope_denied"
)
