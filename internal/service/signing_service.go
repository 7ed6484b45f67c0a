package service

import (
	"context"
	"errors"
	"time"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
	"github.com/HyunsooZo/signly-sub001/internal/dto"
	"github.com/HyunsooZo/signly-sub001/internal/metrics"
	"github.com/HyunsooZo/signly-sub001/internal/repository"
	"github.com/HyunsooZo/signly-sub001/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxSigningRetries bounds the re-read loop after a version conflict. Two
// parties racing each other produce at most one conflict per submission, so a
// small bound is enough; anything beyond it indicates a pathological writer.
const maxSigningRetries = 3

// SigningRequest carries everything a token-holder submits when signing.
// IPAddress and UserAgent come from the transport layer explicitly.
type SigningRequest struct {
	Token       string
	SignerEmail string
	SignerName  string
	Image       []byte
	IPAddress   string
	UserAgent   string
}

// SigningService defines the interface for the token-based signing protocol
type SigningService interface {
	// ProcessSigning validates a signing submission, stores the signature
	// artifact and appends the signature under optimistic concurrency
	ProcessSigning(ctx context.Context, req *SigningRequest) (*dto.SignResponse, error)

	// MarkSignedBy applies only the signed-state transition for flows where
	// the signature record lives elsewhere
	MarkSignedBy(ctx context.Context, contractID, signerEmail string, allComplete bool) error
}

// signingService implements SigningService
type signingService struct {
	contractRepo   repository.ContractRepository
	signatureStore SignatureStore
	eventPublisher EventPublisher
}

// NewSigningService creates a new signing service
func NewSigningService(
	contractRepo repository.ContractRepository,
	signatureStore SignatureStore,
	eventPublisher EventPublisher,
) SigningService {
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &signingService{
		contractRepo:   contractRepo,
		signatureStore: signatureStore,
		eventPublisher: eventPublisher,
	}
}

// ProcessSigning runs the signing protocol: resolve the token, expire a stale
// contract on access, verify the signer is an unsigned party, store the
// artifact and append the signature with a versioned save. A lost version
// race is retried against fresh state, so a duplicate racing submission
// surfaces as ErrAlreadySigned rather than a second accepted signature.
func (s *signingService) ProcessSigning(ctx context.Context, req *SigningRequest) (*dto.SignResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.signing.process")
	defer span.End()

	if req == nil {
		span.SetStatus(codes.Error, "missing request")
		return nil, domain.ErrInvalidSignToken
	}

	if err := domain.ValidateSignToken(req.Token); err != nil {
		span.SetStatus(codes.Error, "invalid sign token")
		return nil, err
	}

	signerEmail, err := domain.NormalizeEmail(req.SignerEmail)
	if err != nil {
		span.SetStatus(codes.Error, "invalid signer email")
		return nil, err
	}
	if len(req.Image) == 0 {
		span.SetStatus(codes.Error, "missing signature image")
		return nil, domain.ErrMissingArtifact
	}

	span.SetAttributes(attribute.String("signer_email", signerEmail))

	var artifactRef string

	for attempt := 0; attempt <= maxSigningRetries; attempt++ {
		contract, err := s.contractRepo.GetByToken(ctx, req.Token)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		span.SetAttributes(attribute.String("contract_id", contract.ID))

		if err := s.checkSignable(ctx, contract); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		// Cheap rejections before touching object storage
		if _, ok := contract.PartyByEmail(signerEmail); !ok {
			span.SetStatus(codes.Error, "not a party")
			return nil, domain.ErrNotParty
		}
		if contract.HasSigned(signerEmail) {
			span.SetStatus(codes.Error, "already signed")
			return nil, domain.ErrAlreadySigned
		}

		// The artifact is stored once and reused across save retries
		if artifactRef == "" {
			artifactRef, err = s.signatureStore.StoreSignature(ctx, contract.ID, signerEmail, req.Image)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}

		sig, err := domain.NewSignature(signerEmail, req.SignerName, artifactRef, req.IPAddress, req.UserAgent)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		fullySigned, event, err := contract.AddSignature(sig)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		var events []*domain.AuditEvent
		if event != nil {
			events = append(events, event)
		}

		if err := s.contractRepo.Save(ctx, contract, events...); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				metrics.RecordSigningConflict(ctx, contract.ID)
				span.AddEvent("version_conflict_retry")
				continue
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		_ = s.eventPublisher.PublishPartySigned(ctx, contract, signerEmail)

		metrics.RecordSignature(ctx, contract.ID, fullySigned)

		span.SetAttributes(attribute.Bool("fully_signed", fullySigned))
		span.SetStatus(codes.Ok, "")
		return &dto.SignResponse{
			ContractID: contract.ID,
			Status:     contract.Status.String(),
			Signature: dto.SignatureResponse{
				SignerEmail: sig.SignerEmail,
				SignerName:  sig.SignerName,
				SignedAt:    sig.SignedAt,
			},
			FullySigned: fullySigned,
		}, nil
	}

	span.SetStatus(codes.Error, "version conflict retries exhausted")
	return nil, domain.ErrVersionConflict
}

// checkSignable rejects submissions against contracts that are not open for
// signing, expiring an overdue PENDING contract first. The expiration write
// is allowed to lose its version race; the submission is rejected either way.
func (s *signingService) checkSignable(ctx context.Context, contract *domain.Contract) error {
	now := time.Now()

	if contract.Status == domain.ContractStatusPending && contract.IsExpiredAt(now) {
		if event, err := contract.Expire(now); err == nil {
			if saveErr := s.contractRepo.Save(ctx, contract, event); saveErr == nil {
				metrics.RecordExpiration(ctx, 1)
			}
		}
		return domain.ErrContractExpired
	}

	switch contract.Status {
	case domain.ContractStatusPending:
		return nil
	case domain.ContractStatusExpired:
		return domain.ErrContractExpired
	default:
		return domain.ErrNotSignable
	}
}

// MarkSignedBy applies only the signed-state transition for flows where the
// signature record lives elsewhere
func (s *signingService) MarkSignedBy(ctx context.Context, contractID, signerEmail string, allComplete bool) error {
	ctx, span := telemetry.StartSpan(ctx, "service.signing.mark_signed")
	defer span.End()

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.Bool("all_complete", allComplete),
	)

	normalized, err := domain.NormalizeEmail(signerEmail)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for attempt := 0; attempt <= maxSigningRetries; attempt++ {
		contract, err := s.contractRepo.GetByID(ctx, contractID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		event, err := contract.MarkSignedBy(normalized, allComplete)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		var events []*domain.AuditEvent
		if event != nil {
			events = append(events, event)
		}

		if err := s.contractRepo.Save(ctx, contract, events...); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				metrics.RecordSigningConflict(ctx, contract.ID)
				continue
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		span.SetStatus(codes.Ok, "")
		return nil
	}

	span.SetStatus(codes.Error, "version conflict retries exhausted")
	return domain.ErrVersionConflict
}
