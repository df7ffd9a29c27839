package oauth

import (
	"reflect"
	"testing"
)

func TestParseScopes(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"profile", []string{"profile"}},
		{"profile email", []string{"profile", "email"}},
		{"  profile   email  ", []string{"profile", "email"}},
	}

	for _, tt := range tests {
		if got := ParseScopes(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseScopes(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestJoinScopes(t *testing.T) {
	if got := JoinScopes([]string{"profile", "email"}); got != "profile email" {
		t.Errorf("JoinScopes = %q", got)
	}
	if got := JoinScopes(nil); got != "" {
		t.Errorf("JoinScopes(nil) = %q", got)
	}
}

func TestIsKnownScope(t *testing.T) {
	for _, s := range KnownScopes() {
		if !IsKnownScope(s) {
			t.Errorf("registry scope %q not recognized", s)
		}
	}
	if IsKnownScope("made-up") {
		t.Error("unknown scope recognized")
	}
}
