package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewPartyInfo(t *testing.T) {
	tests := []struct {
		name         string
		partyName    string
		email        string
		organization string
		wantErr      error
	}{
		{"valid", "Alice", "alice@example.com", "Acme Ltd", nil},
		{"email normalized", "Alice", "  Alice@Example.COM ", "", nil},
		{"empty name", "  ", "alice@example.com", "", ErrInvalidPartyName},
		{"name too long", strings.Repeat("a", 101), "alice@example.com", "", ErrInvalidPartyName},
		{"empty email", "Alice", "", "", ErrInvalidPartyEmail},
		{"malformed email", "Alice", "not-an-email", "", ErrInvalidPartyEmail},
		{"email with display name", "Alice", "Alice <alice@example.com>", "", ErrInvalidPartyEmail},
		{"organization too long", "Alice", "alice@example.com", strings.Repeat("o", 201), ErrInvalidOrganization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPartyInfo(tt.partyName, tt.email, tt.organization)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewPartyInfo() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if p.Email != strings.ToLower(strings.TrimSpace(tt.email)) {
				t.Errorf("Email = %q, want normalized", p.Email)
			}
		})
	}
}

func TestPartyInfo_Equals(t *testing.T) {
	a1, _ := NewPartyInfo("Alice", "alice@example.com", "Acme")
	a2, _ := NewPartyInfo("Alice", "ALICE@example.com", "Acme")
	b, _ := NewPartyInfo("Bob", "bob@example.com", "Acme")

	if !a1.Equals(a2) {
		t.Error("parties with same normalized values should be equal")
	}
	if a1.Equals(b) {
		t.Error("different parties should not be equal")
	}
}

func TestPartyInfo_HasEmail(t *testing.T) {
	p, _ := NewPartyInfo("Alice", "alice@example.com", "")

	if !p.HasEmail(" ALICE@Example.com ") {
		t.Error("HasEmail should normalize before comparing")
	}
	if p.HasEmail("bob@example.com") {
		t.Error("HasEmail matched wrong address")
	}
	if p.HasEmail("not-an-email") {
		t.Error("HasEmail matched malformed address")
	}
}
