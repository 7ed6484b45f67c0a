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

// ContractService defines the interface for contract lifecycle logic
type ContractService interface {
	// CreateContract creates a DRAFT contract owned by userID
	CreateContract(ctx context.Context, userID string, req *dto.CreateContractRequest) (*dto.ContractResponse, error)

	// UpdateContract updates title/content while the contract is editable
	UpdateContract(ctx context.Context, contractID, userID string, req *dto.UpdateContractRequest) (*dto.ContractResponse, error)

	// SendForSigning moves a draft to PENDING and mints the sign token
	SendForSigning(ctx context.Context, contractID, userID string) (*dto.SendForSigningResponse, error)

	// CompleteContract finalizes a fully signed contract
	CompleteContract(ctx context.Context, contractID, userID string) (*dto.ContractResponse, error)

	// CancelContract aborts a contract before signing completes
	CancelContract(ctx context.Context, contractID, userID string) (*dto.ContractResponse, error)

	// DeleteContract removes a DRAFT contract
	DeleteContract(ctx context.Context, contractID, userID string) error

	// GetContract retrieves a contract for its creator
	GetContract(ctx context.Context, contractID, userID string) (*dto.ContractResponse, error)

	// GetContractByToken retrieves a contract through its sign token,
	// expiring it first when the deadline has passed
	GetContractByToken(ctx context.Context, token string) (*dto.ContractResponse, error)

	// GetContractsByCreator lists contracts owned by a user
	GetContractsByCreator(ctx context.Context, userID string, page, pageSize int) (*dto.PaginatedResponse, error)

	// GetContractsByParty lists contracts where the email is a party,
	// optionally narrowed by status
	GetContractsByParty(ctx context.Context, email, status string, page, pageSize int) (*dto.PaginatedResponse, error)

	// ExpireContracts sweeps at most limit overdue PENDING contracts
	ExpireContracts(ctx context.Context, limit int) (int, error)
}

// contractService implements ContractService
type contractService struct {
	contractRepo   repository.ContractRepository
	renderer       TemplateRenderer
	pdfGenerator   PDFGenerator
	eventPublisher EventPublisher
	defaultTTL     time.Duration
}

// ContractServiceConfig contains configuration for the contract service
type ContractServiceConfig struct {
	// DefaultSigningTTL is applied when a contract is created without an
	// explicit deadline; zero means no deadline.
	DefaultSigningTTL time.Duration
}

// NewContractService creates a new contract service
func NewContractService(
	contractRepo repository.ContractRepository,
	renderer TemplateRenderer,
	pdfGenerator PDFGenerator,
	eventPublisher EventPublisher,
	cfg *ContractServiceConfig,
) ContractService {
	var ttl time.Duration
	if cfg != nil {
		ttl = cfg.DefaultSigningTTL
	}
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &contractService{
		contractRepo:   contractRepo,
		renderer:       renderer,
		pdfGenerator:   pdfGenerator,
		eventPublisher: eventPublisher,
		defaultTTL:     ttl,
	}
}

// CreateContract creates a DRAFT contract owned by userID
func (s *contractService) CreateContract(ctx context.Context, userID string, req *dto.CreateContractRequest) (*dto.ContractResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.contract.create")
	defer span.End()

	if req == nil {
		span.SetStatus(codes.Error, "missing request")
		return nil, domain.ErrEmptyTitle
	}
	if userID == "" {
		span.SetStatus(codes.Error, "invalid creator_id")
		return nil, domain.ErrInvalidCreatorID
	}

	first, err := domain.NewPartyInfo(req.FirstParty.Name, req.FirstParty.Email, req.FirstParty.Organization)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	second, err := domain.NewPartyInfo(req.SecondParty.Name, req.SecondParty.Email, req.SecondParty.Organization)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	expiresAt := req.ExpiresAt
	if expiresAt == nil && s.defaultTTL > 0 {
		deadline := time.Now().Add(s.defaultTTL)
		expiresAt = &deadline
	}

	contract, err := domain.NewContract(userID, req.TemplateID, req.Title, req.Content, first, second, expiresAt, req.PresetType)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("contract_id", contract.ID),
		attribute.String("creator_id", userID),
	)

	if err := s.contractRepo.Create(ctx, contract); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordCreation(ctx, contract.PresetType)

	span.SetStatus(codes.Ok, "")
	return dto.FromDomain(contract), nil
}

// UpdateContract updates title/content while the contract is editable
func (s *contractService) UpdateContract(ctx context.Context, contractID, userID string, req *dto.UpdateContractRequest) (*dto.ContractResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.contract.update")
	defer span.End()

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	if req == nil {
		span.SetStatus(codes.Error, "missing request")
		return nil, domain.ErrEmptyTitle
	}

	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := contract.UpdateDetails(userID, req.Title, req.Content); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.contractRepo.Save(ctx, contract); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.FromDomain(contract), nil
}

// SendForSigning moves a draft to PENDING and mints the sign token. When the
// contract was created from a template and still has no body, the template is
// rendered here so that what the parties sign is fixed at dispatch time.
func (s *contractService) SendForSigning(ctx context.Context, contractID, userID string) (*dto.SendForSigningResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.contract.send")
	defer span.End()

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if contract.Content == "" && contract.TemplateID != "" {
		if s.renderer == nil {
			span.SetStatus(codes.Error, "no template renderer")
			return nil, domain.ErrTemplateNotFound
		}
		content, err := s.renderer.Render(ctx, contract.TemplateID, contract.FirstParty, contract.SecondParty)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if err := contract.UpdateDetails(userID, contract.Title, content); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	event, err := contract.SendForSigning(userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.contractRepo.Save(ctx, contract, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Notification delivery is best effort
	_ = s.eventPublisher.PublishSigningRequested(ctx, contract)

	metrics.RecordSend(ctx, contract.ID)

	span.SetStatus(codes.Ok, "")
	return &dto.SendForSigningResponse{
		ContractID: contract.ID,
		Status:     contract.Status.String(),
		SignToken:  contract.SignToken,
		ExpiresAt:  contract.ExpiresAt,
	}, nil
}

// CompleteContract finalizes a fully signed contract. PDF generation happens
// after the transition committed; a generation failure leaves the contract
// COMPLETED without an artifact rather than rolling anything back.
func (s *contractService) CompleteContract(ctx context.Context, contractID, userID string) (*dto.ContractResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.contract.complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	event, err := contract.Complete(userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.contractRepo.Save(ctx, contract, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if s.pdfGenerator != nil {
		if path, genErr := s.pdfGenerator.Generate(ctx, contract); genErr == nil {
			if attachErr := contract.AttachPDF(path); attachErr == nil {
				if saveErr := s.contractRepo.Save(ctx, contract); saveErr != nil {
					span.RecordError(saveErr)
				}
			}
		} else {
			span.RecordError(genErr)
		}
	}

	_ = s.eventPublisher.PublishContractCompleted(ctx, contract)

	metrics.RecordCompletion(ctx, time.Since(contract.CreatedAt).Seconds())

	span.SetStatus(codes.Ok, "")
	return dto.FromDomain(contract), nil
}

// CancelContract aborts a contract before signing completes
func (s *contractService) CancelContract(ctx context.Context, contractID, userID string) (*dto.ContractResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.contract.cancel")
	defer span.End()

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	wasPending := contract.Status == domain.ContractStatusPending

	event, err := contract.Cancel(userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.contractRepo.Save(ctx, contract, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	_ = s.eventPublisher.PublishContractCancelled(ctx, contract)

	metrics.RecordCancellation(ctx, wasPending)

	span.SetStatus(codes.Ok, "")
	return dto.FromDomain(contract), nil
}

// DeleteContract removes a DRAFT contract
func (s *contractService) DeleteContract(ctx context.Context, contractID, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.contract.delete")
	defer span.End()

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if !contract.IsCreator(userID) {
		span.SetStatus(codes.Error, "not creator")
		return domain.ErrNotCreator
	}
	if !contract.CanDelete() {
		span.SetStatus(codes.Error, "not draft")
		return domain.ErrContractNotDraft
	}

	if err := s.contractRepo.Delete(ctx, contract.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetContract retrieves a contract for its creator
func (s *contractService) GetContract(ctx context.Context, contractID, userID string) (*dto.ContractResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.contract.get")
	defer span.End()

	span.SetAttributes(
		attribute.String("contract_id", contractID),
		attribute.String("user_id", userID),
	)

	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !contract.IsCreator(userID) {
		span.SetStatus(codes.Error, "not creator")
		return nil, domain.ErrNotCreator
	}

	span.SetStatus(codes.Ok, "")
	return dto.FromDomain(contract), nil
}

// GetContractByToken retrieves a contract through its sign token. An overdue
// PENDING contract is expired on access so the signer page always reflects
// the real state; the response then carries the EXPIRED status.
func (s *contractService) GetContractByToken(ctx context.Context, token string) (*dto.ContractResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.contract.get_by_token")
	defer span.End()

	if err := domain.ValidateSignToken(token); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	contract, err := s.contractRepo.GetByToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("contract_id", contract.ID))

	contract, err = s.lazyExpire(ctx, contract)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.FromDomain(contract), nil
}

// lazyExpire transitions an overdue PENDING contract to EXPIRED at read time.
// Losing the version race to a concurrent writer is fine; the re-read state
// is authoritative either way.
func (s *contractService) lazyExpire(ctx context.Context, contract *domain.Contract) (*domain.Contract, error) {
	if contract.Status != domain.ContractStatusPending || !contract.IsExpiredAt(time.Now()) {
		return contract, nil
	}

	event, err := contract.Expire(time.Now())
	if err != nil {
		return contract, nil
	}

	if err := s.contractRepo.Save(ctx, contract, event); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return s.contractRepo.GetByID(ctx, contract.ID)
		}
		return nil, err
	}

	metrics.RecordExpiration(ctx, 1)
	return contract, nil
}

// GetContractsByCreator lists contracts owned by a user
func (s *contractService) GetContractsByCreator(ctx context.Context, userID string, page, pageSize int) (*dto.PaginatedResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.contract.list_by_creator")
	defer span.End()

	if userID == "" {
		span.SetStatus(codes.Error, "invalid creator_id")
		return nil, domain.ErrInvalidCreatorID
	}

	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	contracts, err := s.contractRepo.GetByCreator(ctx, userID, pageSize, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(contracts)))
	span.SetStatus(codes.Ok, "")
	return paginatedContracts(contracts, page, pageSize), nil
}

// GetContractsByParty lists contracts where the email is a party
func (s *contractService) GetContractsByParty(ctx context.Context, email, status string, page, pageSize int) (*dto.PaginatedResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.contract.list_by_party")
	defer span.End()

	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var filter domain.ContractStatus
	if status != "" {
		filter = domain.ContractStatus(status)
		if !filter.IsValid() {
			span.SetStatus(codes.Error, "invalid status filter")
			return nil, domain.ErrInvalidTransition
		}
	}

	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	contracts, err := s.contractRepo.GetByPartyEmail(ctx, normalized, filter, pageSize, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(contracts)))
	span.SetStatus(codes.Ok, "")
	return paginatedContracts(contracts, page, pageSize), nil
}

// ExpireContracts sweeps at most limit overdue PENDING contracts. Each
// candidate is transitioned and saved independently; a failure on one never
// blocks the rest, and losing a version race just means another writer got
// there first.
func (s *contractService) ExpireContracts(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.contract.expire_sweep")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	span.SetAttributes(attribute.Int("limit", limit))

	now := time.Now()
	candidates, err := s.contractRepo.GetExpired(ctx, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	expired := 0
	for _, contract := range candidates {
		event, err := contract.Expire(now)
		if err != nil {
			continue
		}
		if err := s.contractRepo.Save(ctx, contract, event); err != nil {
			if !errors.Is(err, domain.ErrVersionConflict) {
				span.RecordError(err)
			}
			continue
		}
		expired++
	}

	if expired > 0 {
		metrics.RecordExpiration(ctx, int64(expired))
	}

	span.SetAttributes(attribute.Int("expired", expired))
	span.SetStatus(codes.Ok, "")
	return expired, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func paginatedContracts(contracts []*domain.Contract, page, pageSize int) *dto.PaginatedResponse {
	items := make([]*dto.ContractResponse, 0, len(contracts))
	for _, c := range contracts {
		items = append(items, dto.FromDomain(c))
	}
	return &dto.PaginatedResponse{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Count:    len(items),
	}
}
