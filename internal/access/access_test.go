package access

import (
	"errors"
	"strings"
	"testing"
)

func TestGuard_Authorize(t *testing.T) {
	guard := NewGuard([]string{"kris", "joram"})

	testCases := []struct {
		name     string
		identity string
		allowed  bool
	}{
		{name: "first allowed user", identity: "kris", allowed: true},
		{name: "second allowed user", identity: "joram", allowed: true},
		{name: "unknown user", identity: "eve", allowed: false},
		{name: "empty identity", identity: "", allowed: false},
		{name: "case sensitive", identity: "Kris", allowed: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := guard.Authorize(tc.identity)

			if tc.allowed {
				if err != nil {
					t.Fatalf("Authorize(%q) returned error: %v", tc.identity, err)
				}
				if got != tc.identity {
					t.Errorf("Authorize(%q) = %q, expected identity returned unchanged", tc.identity, got)
				}
				return
			}

			if !errors.Is(err, ErrNotAllowed) {
				t.Fatalf("Authorize(%q) = %v, expected ErrNotAllowed", tc.identity, err)
			}
		})
	}
}

func TestGuard_Authorize_ErrorNamesAllowedSet(t *testing.T) {
	guard := NewGuard([]string{"kris", "joram"})

	_, err := guard.Authorize("eve")
	if err == nil {
		t.Fatal("Expected error for unknown user")
	}

	msg := err.Error()
	if !strings.Contains(msg, "eve") {
		t.Errorf("Error message should name the rejected identity, got: %s", msg)
	}
	if !strings.Contains(msg, "kris") || !strings.Contains(msg, "joram") {
		t.Errorf("Error message should name the allowed set, got: %s", msg)
	}
}

func TestGuard_Authorize_EmptyAllowList(t *testing.T) {
	guard := NewGuard(nil)

	if _, err := guard.Authorize("kris"); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("Empty allow-list should reject everyone, got: %v", err)
	}
}
