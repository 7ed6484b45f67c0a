package dto

import (
	"time"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
)

// PartyRequest identifies one contracting party in a create request
type PartyRequest struct {
	Name         string `json:"name" binding:"required,max=100"`
	Email        string `json:"email" binding:"required,email"`
	Organization string `json:"organization,omitempty" binding:"max=200"`
}

// CreateContractRequest represents a request to create a draft contract
type CreateContractRequest struct {
	TemplateID  string       `json:"template_id,omitempty"`
	Title       string       `json:"title" binding:"required"`
	Content     string       `json:"content,omitempty"`
	FirstParty  PartyRequest `json:"first_party" binding:"required"`
	SecondParty PartyRequest `json:"second_party" binding:"required"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	PresetType  string       `json:"preset_type,omitempty"`
}

// UpdateContractRequest represents a request to update title/content
type UpdateContractRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

// SignRequest represents a signer's submission through the token URL.
// SignatureImage carries the raw artifact as base64; the handler stores it
// and only a storage reference enters the domain.
type SignRequest struct {
	SignerEmail    string `json:"signer_email" binding:"required,email"`
	SignerName     string `json:"signer_name" binding:"required"`
	SignatureImage string `json:"signature_image" binding:"required"`
	DeviceInfo     string `json:"device_info,omitempty"`
}

// SignatureResponse represents a signature in API responses
type SignatureResponse struct {
	SignerEmail string    `json:"signer_email"`
	SignerName  string    `json:"signer_name"`
	SignedAt    time.Time `json:"signed_at"`
}

// SignResponse represents the outcome of a signing submission
type SignResponse struct {
	ContractID  string            `json:"contract_id"`
	Status      string            `json:"status"`
	Signature   SignatureResponse `json:"signature"`
	FullySigned bool              `json:"fully_signed"`
}

// SendForSigningResponse is returned when a contract is dispatched
type SendForSigningResponse struct {
	ContractID string     `json:"contract_id"`
	Status     string     `json:"status"`
	SignToken  string     `json:"sign_token"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// PartyResponse represents a party in API responses
type PartyResponse struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Organization string `json:"organization,omitempty"`
}

// ContractResponse represents a contract in API responses. The sign token is
// deliberately omitted: it is the signer's credential and only surfaces in
// the send-for-signing response to the creator.
type ContractResponse struct {
	ID          string              `json:"id"`
	CreatorID   string              `json:"creator_id"`
	TemplateID  string              `json:"template_id,omitempty"`
	Title       string              `json:"title"`
	Content     string              `json:"content"`
	FirstParty  PartyResponse       `json:"first_party"`
	SecondParty PartyResponse       `json:"second_party"`
	Status      string              `json:"status"`
	Signatures  []SignatureResponse `json:"signatures"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
	PresetType  string              `json:"preset_type,omitempty"`
	PdfPath     string              `json:"pdf_path,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// PaginatedResponse wraps a page of results
type PaginatedResponse struct {
	Items    interface{} `json:"items"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Count    int         `json:"count"`
}

// ErrorResponse represents an API error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// FromDomain converts a domain Contract to a ContractResponse
func FromDomain(c *domain.Contract) *ContractResponse {
	signatures := make([]SignatureResponse, 0, len(c.Signatures))
	for _, sig := range c.Signatures {
		signatures = append(signatures, SignatureResponse{
			SignerEmail: sig.SignerEmail,
			SignerName:  sig.SignerName,
			SignedAt:    sig.SignedAt,
		})
	}

	return &ContractResponse{
		ID:          c.ID,
		CreatorID:   c.CreatorID,
		TemplateID:  c.TemplateID,
		Title:       c.Title,
		Content:     c.Content,
		FirstParty:  PartyResponse{Name: c.FirstParty.Name, Email: c.FirstParty.Email, Organization: c.FirstParty.Organization},
		SecondParty: PartyResponse{Name: c.SecondParty.Name, Email: c.SecondParty.Email, Organization: c.SecondParty.Organization},
		Status:      c.Status.String(),
		Signatures:  signatures,
		ExpiresAt:   c.ExpiresAt,
		PresetType:  c.PresetType,
		PdfPath:     c.PdfPath,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
