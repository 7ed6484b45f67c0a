package domain

import (
	"net/mail"
	"strings"
)

const (
	maxPartyNameLen    = 100
	maxOrganizationLen = 200
)

// PartyInfo identifies one contracting party. It is a value object:
// construct it with NewPartyInfo and compare it with Equals.
type PartyInfo struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Organization string `json:"organization,omitempty"`
}

// NewPartyInfo validates and normalizes party details. The email is trimmed
// and lower-cased so that all later comparisons are case-insensitive.
func NewPartyInfo(name, email, organization string) (PartyInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxPartyNameLen {
		return PartyInfo{}, ErrInvalidPartyName
	}

	normalized, err := NormalizeEmail(email)
	if err != nil {
		return PartyInfo{}, err
	}

	organization = strings.TrimSpace(organization)
	if len(organization) > maxOrganizationLen {
		return PartyInfo{}, ErrInvalidOrganization
	}

	return PartyInfo{
		Name:         name,
		Email:        normalized,
		Organization: organization,
	}, nil
}

// Equals reports value equality.
func (p PartyInfo) Equals(other PartyInfo) bool {
	return p == other
}

// HasEmail reports whether the party's email matches the given address
// after normalization.
func (p PartyInfo) HasEmail(email string) bool {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return false
	}
	return p.Email == normalized
}

// NormalizeEmail trims, lower-cases and syntax-checks an email address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidPartyEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidPartyEmail
	}
	return email, nil
}
