package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContractStatus represents the lifecycle status of a contract
type ContractStatus string

const (
	ContractStatusDraft     ContractStatus = "draft"
	ContractStatusPending   ContractStatus = "pending"
	ContractStatusSigned    ContractStatus = "signed"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusCancelled ContractStatus = "cancelled"
	ContractStatusExpired   ContractStatus = "expired"
)

// IsValid checks if the status is a valid ContractStatus
func (s ContractStatus) IsValid() bool {
	switch s {
	case ContractStatusDraft, ContractStatusPending, ContractStatusSigned,
		ContractStatusCompleted, ContractStatusCancelled, ContractStatusExpired:
		return true
	}
	return false
}

// String returns the string representation of ContractStatus
func (s ContractStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status admits no further transitions.
func (s ContractStatus) IsTerminal() bool {
	return s == ContractStatusCompleted || s == ContractStatusCancelled || s == ContractStatusExpired
}

// Transition is an edge label in the contract state machine.
type Transition string

const (
	TransitionSend     Transition = "send"
	TransitionSign     Transition = "sign"
	TransitionCancel   Transition = "cancel"
	TransitionComplete Transition = "complete"
	TransitionExpire   Transition = "expire"
)

// transitionTable enumerates every legal edge of the state machine in one
// place. A missing entry is an illegal transition, reported as an error
// rather than ignored, so double submissions surface instead of being masked.
var transitionTable = map[ContractStatus]map[Transition]ContractStatus{
	ContractStatusDraft: {
		TransitionSend:   ContractStatusPending,
		TransitionCancel: ContractStatusCancelled,
	},
	ContractStatusPending: {
		TransitionSign:   ContractStatusSigned,
		TransitionCancel: ContractStatusCancelled,
		TransitionExpire: ContractStatusExpired,
	},
	ContractStatusSigned: {
		TransitionComplete: ContractStatusCompleted,
	},
}

// Contract is the aggregate root for a bilateral signing agreement. All
// status transitions go through Apply so the transition table is the single
// source of truth for what is legal.
type Contract struct {
	ID          string         `json:"id"`
	CreatorID   string         `json:"creator_id"`
	TemplateID  string         `json:"template_id,omitempty"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	FirstParty  PartyInfo      `json:"first_party"`
	SecondParty PartyInfo      `json:"second_party"`
	Status      ContractStatus `json:"status"`
	Signatures  []Signature    `json:"signatures"`
	SignToken   string         `json:"sign_token,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	PresetType  string         `json:"preset_type,omitempty"`
	PdfPath     string         `json:"pdf_path,omitempty"`
	Version     int64          `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewContract creates a DRAFT contract owned by creatorID. Both parties must
// already be validated PartyInfo values; expiresAt, when set, must lie after
// the creation instant.
func NewContract(creatorID, templateID, title, content string, first, second PartyInfo, expiresAt *time.Time, presetType string) (*Contract, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, ErrInvalidCreatorID
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	now := time.Now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, ErrInvalidExpiry
	}

	return &Contract{
		ID:          uuid.New().String(),
		CreatorID:   creatorID,
		TemplateID:  templateID,
		Title:       title,
		Content:     content,
		FirstParty:  first,
		SecondParty: second,
		Status:      ContractStatusDraft,
		Signatures:  nil,
		ExpiresAt:   expiresAt,
		PresetType:  presetType,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Restore rebuilds a contract from persisted state. It exists so the
// persistence mapping layer never needs to reach into private state or
// bypass constructors; domain logic must not call it.
func Restore(
	id, creatorID, templateID, title, content string,
	first, second PartyInfo,
	status ContractStatus,
	signatures []Signature,
	signToken string,
	expiresAt *time.Time,
	presetType, pdfPath string,
	version int64,
	createdAt, updatedAt time.Time,
) *Contract {
	return &Contract{
		ID:          id,
		CreatorID:   creatorID,
		TemplateID:  templateID,
		Title:       title,
		Content:     content,
		FirstParty:  first,
		SecondParty: second,
		Status:      status,
		Signatures:  signatures,
		SignToken:   signToken,
		ExpiresAt:   expiresAt,
		PresetType:  presetType,
		PdfPath:     pdfPath,
		Version:     version,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// Apply moves the contract along one edge of the transition table.
func (c *Contract) Apply(t Transition) error {
	next, ok := transitionTable[c.Status][t]
	if !ok {
		return ErrInvalidTransition
	}
	c.Status = next
	c.UpdatedAt = time.Now()
	return nil
}

// IsCreator reports whether userID owns the contract.
func (c *Contract) IsCreator(userID string) bool {
	return c.CreatorID == userID
}

// PartyByEmail returns the party matching the (normalized) email, if any.
func (c *Contract) PartyByEmail(email string) (PartyInfo, bool) {
	if c.FirstParty.HasEmail(email) {
		return c.FirstParty, true
	}
	if c.SecondParty.HasEmail(email) {
		return c.SecondParty, true
	}
	return PartyInfo{}, false
}

// HasSigned reports whether a signature for the normalized email exists.
func (c *Contract) HasSigned(email string) bool {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return false
	}
	for _, sig := range c.Signatures {
		if sig.SignerEmail == normalized {
			return true
		}
	}
	return false
}

// FullySigned reports whether both parties have a signature on record.
func (c *Contract) FullySigned() bool {
	return c.HasSigned(c.FirstParty.Email) && c.HasSigned(c.SecondParty.Email)
}

// IsExpiredAt reports whether the signing deadline has passed at t.
// A contract with no deadline never expires.
func (c *Contract) IsExpiredAt(t time.Time) bool {
	return c.ExpiresAt != nil && !t.Before(*c.ExpiresAt)
}

// UpdateDetails mutates title/content. Only the creator may do this, and
// only while the contract is still editable (draft or pending).
func (c *Contract) UpdateDetails(callerID, title, content string) error {
	if !c.IsCreator(callerID) {
		return ErrNotCreator
	}
	if c.Status != ContractStatusDraft && c.Status != ContractStatusPending {
		return ErrInvalidTransition
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	c.Title = title
	c.Content = content
	c.UpdatedAt = time.Now()
	return nil
}

// SendForSigning moves DRAFT to PENDING and mints the sign token. The token
// is minted exactly once; re-sending a contract that somehow kept its token
// would violate the token uniqueness contract.
func (c *Contract) SendForSigning(callerID string) (*AuditEvent, error) {
	if !c.IsCreator(callerID) {
		return nil, ErrNotCreator
	}
	if strings.TrimSpace(c.Content) == "" {
		return nil, ErrEmptyContent
	}
	if err := c.Apply(TransitionSend); err != nil {
		return nil, err
	}
	if c.SignToken == "" {
		c.SignToken = NewSignToken()
	}
	return NewAuditEvent(EventContractSent, c.ID, callerID), nil
}

// AddSignature appends a signature created by the signing protocol and, when
// it is the last required one, promotes the contract to SIGNED. The caller
// holds the aggregate exclusively (or saves with a version check), so the
// duplicate check and the append are one logical unit.
func (c *Contract) AddSignature(sig Signature) (bool, *AuditEvent, error) {
	if c.Status != ContractStatusPending {
		return false, nil, ErrNotSignable
	}
	if _, ok := c.PartyByEmail(sig.SignerEmail); !ok {
		return false, nil, ErrNotParty
	}
	if c.HasSigned(sig.SignerEmail) {
		return false, nil, ErrAlreadySigned
	}

	c.Signatures = append(c.Signatures, sig)
	c.UpdatedAt = time.Now()

	if !c.FullySigned() {
		return false, nil, nil
	}
	if err := c.Apply(TransitionSign); err != nil {
		return false, nil, err
	}
	return true, NewAuditEvent(EventContractSigned, c.ID, sig.SignerEmail), nil
}

// MarkSignedBy applies only the state transition for flows where the
// signature record is persisted elsewhere. Eligibility and authorization
// checks match AddSignature; allComplete tells the aggregate the consent set
// is satisfied.
func (c *Contract) MarkSignedBy(signerEmail string, allComplete bool) (*AuditEvent, error) {
	if c.Status != ContractStatusPending {
		return nil, ErrNotSignable
	}
	if _, ok := c.PartyByEmail(signerEmail); !ok {
		return nil, ErrNotParty
	}
	if !allComplete {
		c.UpdatedAt = time.Now()
		return nil, nil
	}
	if err := c.Apply(TransitionSign); err != nil {
		return nil, err
	}
	return NewAuditEvent(EventContractSigned, c.ID, signerEmail), nil
}

// Cancel aborts the contract before signing completes.
func (c *Contract) Cancel(callerID string) (*AuditEvent, error) {
	if !c.IsCreator(callerID) {
		return nil, ErrNotCreator
	}
	if err := c.Apply(TransitionCancel); err != nil {
		return nil, err
	}
	return NewAuditEvent(EventContractCancelled, c.ID, callerID), nil
}

// Complete finalizes a fully signed contract.
func (c *Contract) Complete(callerID string) (*AuditEvent, error) {
	if !c.IsCreator(callerID) {
		return nil, ErrNotCreator
	}
	if err := c.Apply(TransitionComplete); err != nil {
		return nil, err
	}
	return NewAuditEvent(EventContractCompleted, c.ID, callerID), nil
}

// Expire transitions a PENDING contract whose deadline has passed. The actor
// on the audit event is empty: expiration is system-driven. SIGNED contracts
// never expire; a late completion must not be blocked by a stale deadline.
func (c *Contract) Expire(now time.Time) (*AuditEvent, error) {
	if c.Status != ContractStatusPending {
		return nil, ErrInvalidTransition
	}
	if !c.IsExpiredAt(now) {
		return nil, ErrInvalidTransition
	}
	if err := c.Apply(TransitionExpire); err != nil {
		return nil, err
	}
	return NewAuditEvent(EventContractExpired, c.ID, ""), nil
}

// CanDelete reports whether the contract may be removed from the store.
func (c *Contract) CanDelete() bool {
	return c.Status == ContractStatusDraft
}

// AttachPDF records the durable artifact produced after completion. The path
// is set once; a second attachment attempt is a conflict.
func (c *Contract) AttachPDF(path string) error {
	if c.Status != ContractStatusCompleted {
		return ErrInvalidTransition
	}
	if c.PdfPath != "" {
		return ErrInvalidTransition
	}
	c.PdfPath = path
	c.UpdatedAt = time.Now()
	return nil
}
