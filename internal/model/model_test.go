package model

import (
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestStateConstants(t *testing.T) {
	states := []struct {
		constant string
		expected string
	}{
		{StateUnstarted, "unstarted"},
		{StateCreated, "created"},
		{StateStarted, "started"},
		{StateWaited, "waited"},
		{StateDeleted, "deleted"},
	}
	for _, s := range states {
		if s.constant != s.expected {
			t.Errorf("state constant = %q, want %q", s.constant, s.expected)
		}
	}
}

func TestValidTransitionForwardOnly(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{StateUnstarted, StateCreated, true},
		{StateCreated, StateStarted, true},
		{StateStarted, StateWaited, true},
		{StateWaited, StateDeleted, true},

		// No skipping steps.
		{StateUnstarted, StateStarted, false},
		{StateCreated, StateWaited, false},
		{StateCreated, StateDeleted, false},

		// No going backward.
		{StateCreated, StateUnstarted, false},
		{StateStarted, StateCreated, false},
		{StateDeleted, StateWaited, false},

		// Terminal state has no outgoing transitions.
		{StateDeleted, StateDeleted, false},

		// Unknown states.
		{"bogus", StateCreated, false},
		{StateCreated, "bogus", false},
	}

	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
