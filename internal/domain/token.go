package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// signTokenLen is the length of a minted sign token: a dashless UUID plus
// eight bytes of extra entropy. Uniqueness is additionally enforced by a
// unique index in the store; a collision is a hard error, not a retry.
const signTokenLen = 48

// NewSignToken mints an opaque capability token granting anonymous signer
// access to one contract. The token itself carries no expiry; expiration is
// a property of the contract.
func NewSignToken() string {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand failing means the process is in no state to mint
		// credentials at all.
		panic("sign token entropy unavailable: " + err.Error())
	}
	return strings.ReplaceAll(uuid.New().String(), "-", "") + hex.EncodeToString(suffix)
}

// ValidateSignToken checks the shape of an incoming token before it is used
// for a lookup.
func ValidateSignToken(token string) error {
	if len(token) != signTokenLen {
		return ErrInvalidSignToken
	}
	for _, r := range token {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return ErrInvalidSignToken
		}
	}
	return nil
}
