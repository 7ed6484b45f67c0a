package domain

import (
	"strings"
	"time"
)

// Signature is the immutable record of one party's consent. It is created
// only by the signing protocol; nothing mutates it afterwards.
type Signature struct {
	SignerEmail string    `json:"signer_email"`
	SignerName  string    `json:"signer_name"`
	ArtifactRef string    `json:"artifact_ref"`
	SignedAt    time.Time `json:"signed_at"`
	IPAddress   string    `json:"ip_address"`
	DeviceInfo  string    `json:"device_info,omitempty"`
}

// NewSignature builds a signature record. The timestamp is taken server-side
// here, never from client input. The artifact reference is a storage path
// produced by the signature store; raw image bytes never enter the aggregate.
func NewSignature(signerEmail, signerName, artifactRef, ipAddress, deviceInfo string) (Signature, error) {
	email, err := NormalizeEmail(signerEmail)
	if err != nil {
		return Signature{}, err
	}
	if strings.TrimSpace(artifactRef) == "" {
		return Signature{}, ErrMissingArtifact
	}
	return Signature{
		SignerEmail: email,
		SignerName:  strings.TrimSpace(signerName),
		ArtifactRef: artifactRef,
		SignedAt:    time.Now(),
		IPAddress:   ipAddress,
		DeviceInfo:  deviceInfo,
	}, nil
}

// RestoreSignature rebuilds a persisted signature. Used only by the
// persistence mapping layer.
func RestoreSignature(signerEmail, signerName, artifactRef string, signedAt time.Time, ipAddress, deviceInfo string) Signature {
	return Signature{
		SignerEmail: signerEmail,
		SignerName:  signerName,
		ArtifactRef: artifactRef,
		SignedAt:    signedAt,
		IPAddress:   ipAddress,
		DeviceInfo:  deviceInfo,
	}
}
