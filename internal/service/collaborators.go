package service

import (
	"context"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
)

// TemplateRenderer fills a contract template with party data to produce the
// contract body. Implementations live outside this service.
type TemplateRenderer interface {
	// Render returns the rendered contract content for the template
	Render(ctx context.Context, templateID string, first, second domain.PartyInfo) (string, error)
}

// SignatureStore persists signature image artifacts and returns an opaque
// storage reference. The domain layer only ever sees the reference.
type SignatureStore interface {
	// StoreSignature stores a signature image and returns its storage reference
	StoreSignature(ctx context.Context, contractID, signerEmail string, image []byte) (string, error)

	// GetSignature retrieves a stored signature image by its reference
	GetSignature(ctx context.Context, ref string) ([]byte, error)
}

// PDFGenerator renders a completed contract to a PDF document and returns the
// storage path of the generated file.
type PDFGenerator interface {
	// Generate renders the contract to a PDF and returns its storage path
	Generate(ctx context.Context, contract *domain.Contract) (string, error)
}
