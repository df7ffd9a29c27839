package oauth

import (
	"context"
	"time"

	"github.com/solstice-id/idp-oauth/storage"
)

// UpsertConsent records the scopes a user approves for a client. The new
// approved set fully replaces any earlier consent for the pair; it is not
// merged.
func (s *Server) UpsertConsent(ctx context.Context, userID, clientID string, scopes []string) error {
	if userID == "" {
		return ErrAccessDenied("user authentication is required")
	}
	if clientID == "" {
		return ErrInvalidRequest("client_id is required")
	}
	if len(scopes) == 0 {
		return ErrInvalidRequest("scope is required")
	}

	for _, scope := range scopes {
		if !IsKnownScope(scope) {
			return ErrInvalidScope("unknown scope: " + scope)
		}
	}

	consent := &storage.Consent{
		UserID:         userID,
		ClientID:       clientID,
		ApprovedScopes: JoinScopes(scopes),
		UpdatedAt:      time.Now(),
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()
	start := time.Now()
	err := s.durable.UpsertConsent(sctx, consent)
	s.recordStorageOp(ctx, "upsert_consent", start, err)
	if err != nil {
		s.logger.Error("Failed to store consent", "client_id", clientID, "error", err)
		return ErrServerError("failed to store consent")
	}

	s.auditor.LogConsentUpdated(userID, clientID, consent.ApprovedScopes)
	s.inst.Metrics().RecordConsentUpsert(ctx, clientID)
	s.logger.Info("Consent updated", "client_id", clientID, "approved_scopes", consent.ApprovedScopes)
	return nil
}
