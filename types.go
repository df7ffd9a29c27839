package oauth

import "github.com/solstice-id/idp-oauth/keys"

// ErrorResponse represents an OAuth error response body
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}

// AuthorizeRequest carries the parameters of an authorization request.
type AuthorizeRequest struct {
	// ResponseType is the OAuth response type; only "code" is supported.
	ResponseType string

	// ClientID identifies the requesting client.
	ClientID string

	// RedirectURI must be literally registered on the client.
	RedirectURI string

	// Scopes are the requested scopes.
	Scopes []string

	// CodeChallenge is the PKCE challenge the issued code is bound to.
	CodeChallenge string

	// CodeChallengeMethod is "S256" or "plain".
	CodeChallengeMethod string

	// State is echoed back on the redirect when present.
	State string
}

// AuthorizeResult is the outcome of a successful authorization request:
// the issued code and the redirect location the user-agent should follow.
type AuthorizeResult struct {
	// Code is the issued authorization code
	Code string `json:"code"`

	// State echoes the request's state parameter
	State string `json:"state,omitempty"`

	// Issuer is the server's issuer identifier (RFC 9207 iss parameter)
	Issuer string `json:"iss"`

	// Location is the full redirect URI with code, state and iss appended
	Location string `json:"location"`
}

// TokenRequest carries the parameters of a token endpoint request.
type TokenRequest struct {
	// GrantType selects the grant: authorization_code, refresh_token,
	// or client_credentials.
	GrantType string

	// ClientID identifies the client; ClientSecret is required for the
	// client_credentials grant.
	ClientID     string
	ClientSecret string

	// Code and CodeVerifier are set for the authorization_code grant.
	Code         string
	CodeVerifier string

	// RefreshToken is set for the refresh_token grant.
	RefreshToken string

	// Scopes are set for the client_credentials grant and taken verbatim.
	Scopes []string
}

// TokenResponse represents an OAuth 2.0 token response
type TokenResponse struct {
	// AccessToken is the access token
	AccessToken string `json:"access_token"`

	// TokenType is the type of token (always "Bearer")
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken is the refresh token (only when offline_access was granted)
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-delimited scope of the access token
	Scope string `json:"scope,omitempty"`

	// IDToken is the signed OIDC ID token (only when openid was granted)
	IDToken string `json:"id_token,omitempty"`
}

// ServerMetadata represents the OIDC discovery document
// (OpenID Connect Discovery / RFC 8414 shape).
type ServerMetadata struct {
	// Issuer is the authorization server's issuer identifier URL
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint
	TokenEndpoint string `json:"token_endpoint"`

	// RevocationEndpoint is the URL of the token revocation endpoint (RFC 7009)
	RevocationEndpoint string `json:"revocation_endpoint"`

	// JWKSURI is the URL of the JSON Web Key Set document
	JWKSURI string `json:"jwks_uri"`

	// ScopesSupported lists the OAuth scopes supported
	ScopesSupported []string `json:"scopes_supported"`

	// ResponseTypesSupported lists the OAuth response types supported
	ResponseTypesSupported []string `json:"response_types_supported"`

	// GrantTypesSupported lists the OAuth grant types supported
	GrantTypesSupported []string `json:"grant_types_supported"`

	// TokenEndpointAuthMethodsSupported lists the client authentication
	// methods supported at the token endpoint
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`

	// CodeChallengeMethodsSupported lists the PKCE code challenge methods supported
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`

	// IDTokenSigningAlgValuesSupported lists the ID token signing algorithms
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`

	// SubjectTypesSupported lists the subject identifier types supported
	SubjectTypesSupported []string `json:"subject_types_supported"`

	// ClaimsSupported lists the claim names this server may include in ID tokens
	ClaimsSupported []string `json:"claims_supported"`
}

// JWKS is the JSON Web Key Set document served at the certs endpoint.
type JWKS struct {
	Keys []keys.JWK `json:"keys"`
}
