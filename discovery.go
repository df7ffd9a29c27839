package oauth

import (
	"strings"

	"github.com/solstice-id/idp-oauth/keys"
)

// Metadata builds the OIDC discovery document. It is a pure function of
// static configuration and the scope/claim registries.
func (s *Server) Metadata() *ServerMetadata {
	base := strings.TrimSuffix(s.config.BaseURL, "/")

	return &ServerMetadata{
		Issuer:                            s.config.Issuer,
		AuthorizationEndpoint:             base + "/oauth/authorize",
		TokenEndpoint:                     base + "/oauth/token",
		RevocationEndpoint:                base + "/oauth/revoke",
		JWKSURI:                           base + "/oauth/certs",
		ScopesSupported:                   KnownScopes(),
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken, GrantTypeClientCredentials},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post"},
		CodeChallengeMethodsSupported:     s.supportedChallengeMethods(),
		IDTokenSigningAlgValuesSupported:  []string{"ES256"},
		SubjectTypesSupported:             []string{"public"},
		ClaimsSupported:                   supportedClaims,
	}
}

func (s *Server) supportedChallengeMethods() []string {
	methods := []string{CodeChallengeMethodS256}
	if s.config.AllowPKCEPlain {
		methods = append(methods, CodeChallengeMethodPlain)
	}
	return methods
}

// JWKSDocument exports the public signing key set served at the certs
// endpoint.
func (s *Server) JWKSDocument() *JWKS {
	return &JWKS{Keys: []keys.JWK{s.config.Keys.PublicJWK()}}
}
