package oauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solstice-id/idp-oauth/security"
)

// AuthenticateUserFunc resolves the authenticated user for a request. The
// surrounding application supplies it (session cookie, upstream IdP, etc.);
// an error means the request carries no valid user context.
type AuthenticateUserFunc func(r *http.Request) (userID string, err error)

// Handler exposes the server's engines over HTTP.
type Handler struct {
	server       *Server
	authenticate AuthenticateUserFunc
	logger       *slog.Logger
	tracer       trace.Tracer
	mux          *http.ServeMux
}

// NewHandler builds the HTTP handler for the authorization server.
// authenticate is required: the authorize and consent endpoints refuse all
// requests without an authenticated user.
func NewHandler(server *Server, authenticate AuthenticateUserFunc) *Handler {
	h := &Handler{
		server:       server,
		authenticate: authenticate,
		logger:       server.logger,
		tracer:       server.inst.Tracer("http"),
		mux:          http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /oauth/authorize", h.wrap("authorize", true, h.handleAuthorize))
	h.mux.HandleFunc("POST /oauth/token", h.wrap("token", true, h.handleToken))
	h.mux.HandleFunc("POST /oauth/revoke", h.wrap("revoke", false, h.handleRevoke))
	h.mux.HandleFunc("POST /oauth/consent", h.wrap("consent", false, h.handleConsent))
	h.mux.HandleFunc("GET /oauth/certs", h.wrap("certs", false, h.handleJWKS))
	h.mux.HandleFunc("GET /.well-known/openid-configuration", h.wrap("discovery", false, h.handleDiscovery))

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// statusWriter captures the response status for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// wrap applies the common per-endpoint plumbing: security headers, optional
// rate limiting, tracing and HTTP metrics.
func (h *Handler) wrap(endpoint string, rateLimited bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		security.SetSecurityHeaders(w, h.server.config.BaseURL)

		ctx, span := h.tracer.Start(r.Context(), "oauth."+endpoint)
		defer span.End()
		span.SetAttributes(attribute.String("oauth.endpoint", endpoint))
		r = r.WithContext(ctx)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		if rateLimited && h.server.rateLimiter != nil {
			ip := security.GetClientIP(r, h.server.config.RateLimit.TrustProxy, h.server.config.RateLimit.TrustedProxyCount)
			if !h.server.rateLimiter.Allow(ip) {
				h.logger.Warn("Rate limit exceeded", "endpoint", endpoint, "ip", ip)
				h.server.auditor.LogRateLimitExceeded(ip)
				h.server.inst.Metrics().RecordRateLimitExceeded(ctx, endpoint)
				h.writeError(sw, NewError(ErrorCodeTemporarilyUnavailable,
					"rate limit exceeded, try again later", http.StatusTooManyRequests))
				h.server.inst.Metrics().RecordHTTPRequest(ctx, r.Method, endpoint, sw.status, float64(time.Since(start).Milliseconds()))
				return
			}
		}

		next(sw, r)

		h.server.inst.Metrics().RecordHTTPRequest(ctx, r.Method, endpoint, sw.status, float64(time.Since(start).Milliseconds()))
	}
}

func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authenticate(r)
	if err != nil {
		h.writeError(w, ErrAccessDenied("user authentication required"))
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrInvalidRequest("malformed form body"))
		return
	}

	req := &AuthorizeRequest{
		ResponseType:        r.PostFormValue("response_type"),
		ClientID:            r.PostFormValue("client_id"),
		RedirectURI:         r.PostFormValue("redirect_uri"),
		Scopes:              ParseScopes(r.PostFormValue("scope")),
		CodeChallenge:       r.PostFormValue("code_challenge"),
		CodeChallengeMethod: r.PostFormValue("code_challenge_method"),
		State:               r.PostFormValue("state"),
	}

	result, err := h.server.Authorize(r.Context(), req, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrInvalidRequest("malformed form body"))
		return
	}

	clientID, clientSecret := clientCredentialsFromRequest(r)

	req := &TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Code:         r.PostFormValue("code"),
		CodeVerifier: r.PostFormValue("code_verifier"),
		RefreshToken: r.PostFormValue("refresh_token"),
		Scopes:       ParseScopes(r.PostFormValue("scope")),
	}

	resp, err := h.server.Token(r.Context(), req)
	if err != nil {
		var oauthErr *Error
		if errors.As(err, &oauthErr) && oauthErr.Code == ErrorCodeInvalidClient {
			w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
		}
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrInvalidRequest("malformed form body"))
		return
	}

	err := h.server.Revoke(r.Context(), r.PostFormValue("token"), r.PostFormValue("token_type_hint"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Uniform empty success body whether or not the token existed.
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleConsent(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authenticate(r)
	if err != nil {
		h.writeError(w, ErrAccessDenied("user authentication required"))
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrInvalidRequest("malformed form body"))
		return
	}

	err = h.server.UpsertConsent(r.Context(), userID, r.PostFormValue("client_id"), ParseScopes(r.PostFormValue("scope")))
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.server.Metadata())
}

func (h *Handler) handleJWKS(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.server.JWKSDocument())
}

// clientCredentialsFromRequest extracts client credentials from HTTP Basic
// auth, falling back to form body parameters.
func clientCredentialsFromRequest(r *http.Request) (clientID, clientSecret string) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret
	}
	return r.PostFormValue("client_id"), r.PostFormValue("client_secret")
}

// writeError renders an error as an OAuth error response body. Non-protocol
// errors collapse to server_error so internals never leak to clients.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var oauthErr *Error
	if !errors.As(err, &oauthErr) {
		h.logger.Error("Unclassified error reached the HTTP layer", "error", err)
		oauthErr = ErrServerError("internal error")
	}

	h.writeJSON(w, oauthErr.Status, &ErrorResponse{
		Error:            oauthErr.Code,
		ErrorDescription: oauthErr.Description,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response body", "error", err)
	}
}
