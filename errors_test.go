package oauth

import (
	"net/http"
	"testing"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		err        *Error
		wantCode   string
		wantStatus int
	}{
		{ErrInvalidRequest("x"), ErrorCodeInvalidRequest, http.StatusBadRequest},
		{ErrInvalidClient("x"), ErrorCodeInvalidClient, http.StatusUnauthorized},
		{ErrInvalidGrant("x"), ErrorCodeInvalidGrant, http.StatusBadRequest},
		{ErrUnauthorizedClient("x"), ErrorCodeUnauthorizedClient, http.StatusBadRequest},
		{ErrUnsupportedGrantType("x"), ErrorCodeUnsupportedGrantType, http.StatusBadRequest},
		{ErrUnsupportedResponseType("x"), ErrorCodeUnsupportedResponseType, http.StatusBadRequest},
		{ErrInvalidScope("x"), ErrorCodeInvalidScope, http.StatusBadRequest},
		{ErrAccessDenied("x"), ErrorCodeAccessDenied, http.StatusForbidden},
		{ErrServerError("x"), ErrorCodeServerError, http.StatusInternalServerError},
		{ErrTemporarilyUnavailable("x"), ErrorCodeTemporarilyUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		if tt.err.Code != tt.wantCode {
			t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
		}
		if tt.err.Status != tt.wantStatus {
			t.Errorf("%s: Status = %d, want %d", tt.wantCode, tt.err.Status, tt.wantStatus)
		}
	}
}

func TestErrorString(t *testing.T) {
	err := ErrInvalidGrant("code expired")
	if err.Error() != "invalid_grant: code expired" {
		t.Errorf("Error() = %q", err.Error())
	}
}
