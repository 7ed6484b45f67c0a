package domain

import "errors"

// Domain errors
var (
	// Contract errors
	ErrContractNotFound  = errors.New("contract not found")
	ErrContractExpired   = errors.New("contract has expired")
	ErrInvalidTransition = errors.New("illegal contract state transition")
	ErrContractNotDraft  = errors.New("contract is not in draft status")
	ErrContractNotSigned = errors.New("contract is not fully signed")
	ErrVersionConflict   = errors.New("contract was modified concurrently")

	// Signing errors
	ErrNotSignable     = errors.New("contract is not open for signing")
	ErrNotParty        = errors.New("signer is not a party to this contract")
	ErrAlreadySigned   = errors.New("party has already signed this contract")
	ErrMissingArtifact = errors.New("signature artifact is required")

	// Authorization errors
	ErrNotCreator = errors.New("caller is not the contract creator")

	// Validation errors
	ErrInvalidPartyName    = errors.New("party name is required and must be at most 100 characters")
	ErrInvalidPartyEmail   = errors.New("party email is not a valid address")
	ErrInvalidOrganization = errors.New("organization name must be at most 200 characters")
	ErrEmptyTitle          = errors.New("contract title is required")
	ErrEmptyContent        = errors.New("contract content is required")
	ErrInvalidExpiry       = errors.New("expiration must be after creation time")
	ErrInvalidContractID   = errors.New("invalid contract id")
	ErrInvalidCreatorID    = errors.New("invalid creator id")
	ErrInvalidSignToken    = errors.New("invalid sign token")

	// Template errors
	ErrTemplateNotFound = errors.New("template not found")
)

// Kind classifies a domain error into the coarse categories the API layer
// maps to transport status codes. Infrastructure is the catch-all for
// anything the domain does not recognise.
type Kind int

const (
	KindInfrastructure Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindExpired
)

// KindOf returns the error category for err.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrContractNotFound),
		errors.Is(err, ErrTemplateNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotCreator),
		errors.Is(err, ErrNotParty):
		return KindForbidden
	case errors.Is(err, ErrContractExpired):
		return KindExpired
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrContractNotDraft),
		errors.Is(err, ErrContractNotSigned),
		errors.Is(err, ErrNotSignable),
		errors.Is(err, ErrAlreadySigned),
		errors.Is(err, ErrVersionConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidPartyName),
		errors.Is(err, ErrInvalidPartyEmail),
		errors.Is(err, ErrInvalidOrganization),
		errors.Is(err, ErrEmptyTitle),
		errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrInvalidExpiry),
		errors.Is(err, ErrInvalidContractID),
		errors.Is(err, ErrInvalidCreatorID),
		errors.Is(err, ErrInvalidSignToken),
		errors.Is(err, ErrMissingArtifact):
		return KindValidation
	}
	return KindInfrastructure
}
