package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
	"github.com/HyunsooZo/signly-sub001/internal/dto"
)

// MockContractRepository is a mock implementation of ContractRepository
type MockContractRepository struct {
	CreateFunc          func(ctx context.Context, contract *domain.Contract) error
	GetByIDFunc         func(ctx context.Context, id string) (*domain.Contract, error)
	GetByTokenFunc      func(ctx context.Context, token string) (*domain.Contract, error)
	SaveFunc            func(ctx context.Context, contract *domain.Contract, events ...*domain.AuditEvent) error
	DeleteFunc          func(ctx context.Context, id string) error
	GetByCreatorFunc    func(ctx context.Context, creatorID string, limit, offset int) ([]*domain.Contract, error)
	GetByPartyEmailFunc func(ctx context.Context, email string, status domain.ContractStatus, limit, offset int) ([]*domain.Contract, error)
	GetExpiredFunc      func(ctx context.Context, now time.Time, limit int) ([]*domain.Contract, error)
}

func (m *MockContractRepository) Create(ctx context.Context, contract *domain.Contract) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, contract)
	}
	return nil
}

func (m *MockContractRepository) GetByID(ctx context.Context, id string) (*domain.Contract, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrContractNotFound
}

func (m *MockContractRepository) GetByToken(ctx context.Context, token string) (*domain.Contract, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	return nil, domain.ErrContractNotFound
}

func (m *MockContractRepository) Save(ctx context.Context, contract *domain.Contract, events ...*domain.AuditEvent) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, contract, events...)
	}
	return nil
}

func (m *MockContractRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockContractRepository) GetByCreator(ctx context.Context, creatorID string, limit, offset int) ([]*domain.Contract, error) {
	if m.GetByCreatorFunc != nil {
		return m.GetByCreatorFunc(ctx, creatorID, limit, offset)
	}
	return []*domain.Contract{}, nil
}

func (m *MockContractRepository) GetByPartyEmail(ctx context.Context, email string, status domain.ContractStatus, limit, offset int) ([]*domain.Contract, error) {
	if m.GetByPartyEmailFunc != nil {
		return m.GetByPartyEmailFunc(ctx, email, status, limit, offset)
	}
	return []*domain.Contract{}, nil
}

func (m *MockContractRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Contract, error) {
	if m.GetExpiredFunc != nil {
		return m.GetExpiredFunc(ctx, now, limit)
	}
	return []*domain.Contract{}, nil
}

// MockTemplateRenderer is a mock implementation of TemplateRenderer
type MockTemplateRenderer struct {
	RenderFunc func(ctx context.Context, templateID string, first, second domain.PartyInfo) (string, error)
}

func (m *MockTemplateRenderer) Render(ctx context.Context, templateID string, first, second domain.PartyInfo) (string, error) {
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, templateID, first, second)
	}
	return "", domain.ErrTemplateNotFound
}

// MockSignatureStore is a mock implementation of SignatureStore
type MockSignatureStore struct {
	StoreSignatureFunc func(ctx context.Context, contractID, signerEmail string, image []byte) (string, error)
	GetSignatureFunc   func(ctx context.Context, ref string) ([]byte, error)
}

func (m *MockSignatureStore) StoreSignature(ctx context.Context, contractID, signerEmail string, image []byte) (string, error) {
	if m.StoreSignatureFunc != nil {
		return m.StoreSignatureFunc(ctx, contractID, signerEmail, image)
	}
	return "signatures/" + contractID + "/" + signerEmail + ".png", nil
}

func (m *MockSignatureStore) GetSignature(ctx context.Context, ref string) ([]byte, error) {
	if m.GetSignatureFunc != nil {
		return m.GetSignatureFunc(ctx, ref)
	}
	return nil, domain.ErrMissingArtifact
}

// MockPDFGenerator is a mock implementation of PDFGenerator
type MockPDFGenerator struct {
	GenerateFunc func(ctx context.Context, contract *domain.Contract) (string, error)
}

func (m *MockPDFGenerator) Generate(ctx context.Context, contract *domain.Contract) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, contract)
	}
	return "contracts/" + contract.ID + ".pdf", nil
}

func testParties(t *testing.T) (domain.PartyInfo, domain.PartyInfo) {
	t.Helper()
	first, err := domain.NewPartyInfo("Alice", "a@x.com", "Acme")
	if err != nil {
		t.Fatalf("first party: %v", err)
	}
	second, err := domain.NewPartyInfo("Bob", "b@x.com", "")
	if err != nil {
		t.Fatalf("second party: %v", err)
	}
	return first, second
}

func newDraft(t *testing.T) *domain.Contract {
	t.Helper()
	first, second := testParties(t)
	contract, err := domain.NewContract("creator-1", "", "NDA", "confidential terms", first, second, nil, "")
	if err != nil {
		t.Fatalf("new contract: %v", err)
	}
	return contract
}

func newPending(t *testing.T) *domain.Contract {
	t.Helper()
	contract := newDraft(t)
	if _, err := contract.SendForSigning("creator-1"); err != nil {
		t.Fatalf("send for signing: %v", err)
	}
	return contract
}

func TestContractService_CreateContract(t *testing.T) {
	validReq := func() *dto.CreateContractRequest {
		return &dto.CreateContractRequest{
			Title: "NDA",
			Content: "confidential terms",
			FirstParty: dto.PartyRequest{Name: "Alice", Email: "a@x.com"},
			SecondParty: dto.PartyRequest{Name: "Bob", Email: "b@x.com"},
		}
	}

	tests := []struct {
		name    string
		userID  string
		mutate  func(req *dto.CreateContractRequest)
		setup   func(repo *MockContractRepository)
		wantErr error
	}{
		{
			name:   "successful create",
			userID: "creator-1",
		},
		{
			name:    "missing creator",
			userID:  "",
			wantErr: domain.ErrInvalidCreatorID,
		},
		{
			name:   "blank title",
			userID: "creator-1",
			mutate: func(req *dto.CreateContractRequest) { req.Title = "   " },
			wantErr: domain.ErrEmptyTitle,
		},
		{
			name:   "malformed party email",
			userID: "creator-1",
			mutate: func(req *dto.CreateContractRequest) { req.SecondParty.Email = "not-an-email" },
			wantErr: domain.ErrInvalidPartyEmail,
		},
		{
			name:   "expiry in the past",
			userID: "creator-1",
			mutate: func(req *dto.CreateContractRequest) {
				past := time.Now().Add(-time.Hour)
				req.ExpiresAt = &past
			},
			wantErr: domain.ErrInvalidExpiry,
		},
		{
			name:   "repository failure",
			userID: "creator-1",
			setup: func(repo *MockContractRepository) {
				repo.CreateFunc = func(ctx context.Context, contract *domain.Contract) error {
					return errors.New("connection refused")
				}
			},
			wantErr: errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockContractRepository{}
			if tt.setup != nil {
				tt.setup(repo)
			}
			req := validReq()
			if tt.mutate != nil {
				tt.mutate(req)
			}

			svc := NewContractService(repo, nil, nil, nil, nil)
			resp, err := svc.CreateContract(context.Background(), tt.userID, req)

			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("expected error %v, got nil", tt.wantErr)
				}
				if !errors.Is(err, tt.wantErr) && err.Error() != tt.wantErr.Error() {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.ID == "" {
				t.Error("expected contract id")
			}
			if resp.Status != domain.ContractStatusDraft.String() {
				t.Errorf("expected draft status, got %s", resp.Status)
			}
			if resp.CreatorID != tt.userID {
				t.Errorf("expected creator %s, got %s", tt.userID, resp.CreatorID)
			}
		})
	}
}

func TestContractService_CreateContract_DefaultTTL(t *testing.T) {
	repo := &MockContractRepository{}
	svc := NewContractService(repo, nil, nil, nil, &ContractServiceConfig{
		DefaultSigningTTL: 72 * time.Hour,
	})

	resp, err := svc.CreateContract(context.Background(), "creator-1", &dto.CreateContractRequest{
		Title:       "NDA",
		Content:     "terms",
		FirstParty:  dto.PartyRequest{Name: "Alice", Email: "a@x.com"},
		SecondParty: dto.PartyRequest{Name: "Bob", Email: "b@x.com"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ExpiresAt == nil {
		t.Fatal("expected default deadline to be applied")
	}
	if time.Until(*resp.ExpiresAt) < 71*time.Hour {
		t.Errorf("deadline closer than configured TTL: %v", resp.ExpiresAt)
	}
}

func TestContractService_UpdateContract(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		contract func(t *testing.T) *domain.Contract
		wantErr  error
	}{
		{
			name:     "creator updates draft",
			userID:   "creator-1",
			contract: newDraft,
		},
		{
			name:     "creator updates pending",
			userID:   "creator-1",
			contract: newPending,
		},
		{
			name:     "non-creator rejected",
			userID:   "intruder",
			contract: newDraft,
			wantErr:  domain.ErrNotCreator,
		},
		{
			name:   "signed contract immutable",
			userID: "creator-1",
			contract: func(t *testing.T) *domain.Contract {
				c := newPending(t)
				for _, email := range []string{"a@x.com", "b@x.com"} {
					sig, err := domain.NewSignature(email, "signer", "ref", "", "")
					if err != nil {
						t.Fatalf("signature: %v", err)
					}
					if _, _, err := c.AddSignature(sig); err != nil {
						t.Fatalf("add signature: %v", err)
					}
				}
				return c
			},
			wantErr: domain.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contract := tt.contract(t)
			repo := &MockContractRepository{
				GetByIDFunc: func(ctx context.Context, id string) (*domain.Contract, error) {
					return contract, nil
				},
			}

			svc := NewContractService(repo, nil, nil, nil, nil)
			resp, err := svc.UpdateContract(context.Background(), contract.ID, tt.userID, &dto.UpdateContractRequest{
				Title:   "Updated NDA",
				Content: "updated terms",
			})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Title != "Updated NDA" {
				t.Errorf("title not updated: %s", resp.Title)
			}
		})
	}
}

func TestContractService_SendForSigning(t *testing.T) {
	t.Run("mints token and persists event", func(t *testing.T) {
		contract := newDraft(t)
		var savedEvents []*domain.AuditEvent
		repo := &MockContractRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Contract, error) {
				return contract, nil
			},
			SaveFunc: func(ctx context.Context, c *domain.Contract, events ...*domain.AuditEvent) error {
				savedEvents = events
				return nil
			},
		}

		svc := NewContractService(repo, nil, nil, nil, nil)
		resp, err := svc.SendForSigning(context.Background(), contract.ID, "creator-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Status != domain.ContractStatusPending.String() {
			t.Errorf("expected pending, got %s", resp.Status)
		}
		if err := domain.ValidateSignToken(resp.SignToken); err != nil {
			t.Errorf("invalid sign token %q: %v", resp.SignToken, err)
		}
		if len(savedEvents) != 1 || savedEvents[0].Type != domain.EventContractSent {
			t.Errorf("expected one CONTRACT_SENT event, got %v", savedEvents)
		}
	})

	t.Run("renders template when content is empty", func(t *testing.T) {
		first, second := testParties(t)
		contract, err := domain.NewContract("creator-1", "tpl-nda", "NDA", "", first, second, nil, "")
		if err != nil {
			t.Fatalf("new contract: %v", err)
		}
		repo := &MockContractRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Contract, error) {
				return contract, nil
			},
		}
		renderer := &MockTemplateRenderer{
			RenderFunc: func(ctx context.Context, templateID string, f, s domain.PartyInfo) (string, error) {
				return "rendered between " + f.Name + " and " + s.Name, nil
			},
		}

		svc := NewContractService(repo, renderer, nil, nil, nil)
		if _, err := svc.SendForSigning(context.Background(), contract.ID, "creator-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if contract.Content != "rendered between Alice and Bob" {
			t.Errorf("content not rendered: %q", contract.Content)
		}
	})

	t.Run("template without renderer", func(t *testing.T) {
		first, second := testParties(t)
		contract, err := domain.NewContract("creator-1", "tpl-nda", "NDA", "", first, second, nil, "")
		if err != nil {
			t.Fatalf("new contract: %v", err)
		}
		repo := &MockContractRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Contract, error) {
				return contract, nil
			},
		}

		svc := NewContractService(repo, nil, nil, nil, nil)
		if _, err := svc.SendForSigning(context.Background(), contract.ID, "creator-1"); !errors.Is(err, domain.ErrTemplateNotFound) {
			t.Fatalf("expected ErrTemplateNotFound, got %v", err)
		}
	})

	t.Run("non-creator rejected", func(t *testing.T) {
		contract := newDraft(t)
		repo := &MockContractRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Contract, error) {
				return contract, nil
			},
		}

		svc := NewContractService(repo, nil, nil, nil, nil)
		if _, err := svc.SendForSigning(context.Background(), contract.ID, "intruder"); !errors.Is(err, domain.ErrNotCreator) {
			t.Fatalf("expected ErrNotCreator, got %v", err)
		}
	})

	t.Run("already pending rejected", func(t *testing.T) {
		contract := newPending(t)
		repo := &MockContractRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Contract, error) {
				return contract, nil
			},
		}

		svc := NewContractService(repo, nil, nil, nil, nil)
		if _, err := svc.SendForSigning(context.Background(), contract.ID, "creator-1"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestContractService_CompleteContract(t *testing.T) {
	signedContract := func(t *testing.T) *domain.Contract {
		c := newPending(t)
		for _, email := range []string{"a@x.com", "b@x.com"} {
			sig, err := domain.NewSignature(email, "signer", "ref", "", "")
			if err != nil {
				t.Fatalf("signature: %v", err)
			}
			if _, _, err := c.AddSignature(sig); err != nil {
				t.Fatalf("add signature: %v", err)
			}
		}
		return c
	}

	t.Run("completes and attaches pdf", func(t *testing.T) {
		contract := signedContract(t)
		saves := 0
		repo := &MockContractRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Contract, error) {
				return contract, nil
			},
			SaveFunc: func(ctx context.Context, c *domain.Contract, events ...*domain.AuditEvent) error {
				saves++
				return nil
			},
		}

		svc := NewContractService(repo, nil, &MockPDFGenerator{}, nil, nil)
		resp, err := svc.CompleteContract(context.Background(), contract.ID, "creator-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Status != domain.ContractStatusCompleted.String() {
			t.Errorf("expected completed, got %s", resp.Status)
		}
		if resp.PdfPath == "" {
			t.Error("expected pdf path to be attached")
		}
		if saves != 2 {
			t.Errorf("expected transition save plus pdf save, got %d", saves)
		}
	})

	t.Run("pdf failure leaves contract completed", func(t *testing.T) {
		contract := signedContract(t)
		repo := &MockContractRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Contract, error) {
				return contract, nil
			},
		}
		pdf := &MockPDFGenerator{
			GenerateFunc: func(ctx context.Context, c *domain.Contract) (string, error) {
				return "", errors.New("renderer down")
			},
		}

		svc := NewContractService(repo, nil, pdf, nil, nil)
		resp, err := svc.CompleteContract(context.Background(), contract.ID, "creator-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Status != domain.ContractStatusCompleted.String() {
			t.Errorf("expected completed, got %s", resp.Status)
		}
		if resp.PdfPath != "" {
			t.Errorf("expected no pdf path, got %s", resp.PdfPath)
		}
	})

	t.Run("pending contract cannot complete", func(t *testing.T) {
		contract := newPending(t)
		repo := &MockContractRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Contract, error) {
				return contract, nil
			},
		}

		svc := NewContractService(repo, nil, nil, nil, nil)
		if _, err := svc.CompleteContract(context.Background(), contract.ID, "creator-1"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestContractService_CancelContract(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		contract func(t *testing.T) *domain.Contract
		wantErr  error
	}{
		{name: "cancel draft", userID: "creator-1", contract: newDraft},
		{name: "cancel pending", userID: "creator-1", contract: newPending},
		{name: "non-creator rejected", userID: "intruder", contract: newPending, wantErr: domain.ErrNotCreator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contract := tt.contract(t)
			repo := &MockContractRepository{
				GetByIDFunc: func(ctx context.Context, id string) (*domain.Contract, error) {
					return contract, nil
				},
			}

			svc := NewContractService(repo, nil, nil, nil, nil)
			resp, err := svc.CancelContract(context.Background(), contract.ID, tt.userID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Status != domain.ContractStatusCancelled.String() {
				t.Errorf("expected cancelled, got %s", resp.Status)
			}
		})
	}
}

func TestContractService_DeleteContract(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		contract func(t *testing.T) *domain.Contract
		wantErr  error
	}{
		{name: "delete draft", userID: "creator-1", contract: newDraft},
		{name: "non-creator rejected", userID: "intruder", contract: newDraft, wantErr: domain.ErrNotCreator},
		{name: "pending not deletable", userID: "creator-1", contract: newPending, wantErr: domain.ErrContractNotDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contract := tt.contract(t)
			deleted := false
			repo := &MockContractRepository{
				GetByIDFunc: func(ctx context.Context, id string) (*domain.Contract, error) {
					return contract, nil
				},
				DeleteFunc: func(ctx context.Context, id string) error {
					deleted = true
					return nil
				},
			}

			svc := NewContractService(repo, nil, nil, nil, nil)
			err := svc.DeleteContract(context.Background(), contract.ID, tt.userID)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if deleted {
					t.Error("delete should not have been called")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !deleted {
				t.Error("expected delete to be called")
			}
		})
	}
}

func TestContractService_GetContractByToken(t *testing.T) {
	t.Run("returns pending contract", func(t *testing.T) {
		contract := newPending(t)
		repo := &MockContractRepository{
			GetByTokenFunc: func(ctx context.Context, token string) (*domain.Contract, error) {
				if token != contract.SignToken {
					return nil, domain.ErrContractNotFound
				}
				return contract, nil
			},
		}

		svc := NewContractService(repo, nil, nil, nil, nil)
		resp, err := svc.GetContractByToken(context.Background(), contract.SignToken)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.ID != contract.ID {
			t.Errorf("wrong contract: %s", resp.ID)
		}
	})

	t.Run("malformed token", func(t *testing.T) {
		svc := NewContractService(&MockContractRepository{}, nil, nil, nil, nil)
		if _, err := svc.GetContractByToken(context.Background(), "short"); !errors.Is(err, domain.ErrInvalidSignToken) {
			t.Fatalf("expected ErrInvalidSignToken, got %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		contract := newPending(t)
		svc := NewContractService(&MockContractRepository{}, nil, nil, nil, nil)
		if _, err := svc.GetContractByToken(context.Background(), contract.SignToken); !errors.Is(err, domain.ErrContractNotFound) {
			t.Fatalf("expected ErrContractNotFound, got %v", err)
		}
	})

	t.Run("expires overdue contract on access", func(t *testing.T) {
		first, second := testParties(t)
		deadline := time.Now().Add(time.Hour)
		contract, err := domain.NewContract("creator-1", "", "NDA", "terms", first, second, &deadline, "")
		if err != nil {
			t.Fatalf("new contract: %v", err)
		}
		if _, err := contract.SendForSigning("creator-1"); err != nil {
			t.Fatalf("send: %v", err)
		}
		past := time.Now().Add(-time.Minute)
		contract.ExpiresAt = &past

		var savedEvents []*domain.AuditEvent
		repo := &MockContractRepository{
			GetByTokenFunc: func(ctx context.Context, token string) (*domain.Contract, error) {
				return contract, nil
			},
			SaveFunc: func(ctx context.Context, c *domain.Contract, events ...*domain.AuditEvent) error {
				savedEvents = events
				return nil
			},
		}

		svc := NewContractService(repo, nil, nil, nil, nil)
		resp, err := svc.GetContractByToken(context.Background(), contract.SignToken)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Status != domain.ContractStatusExpired.String() {
			t.Errorf("expected expired, got %s", resp.Status)
		}
		if len(savedEvents) != 1 || savedEvents[0].Type != domain.EventContractExpired {
			t.Errorf("expected one CONTRACT_EXPIRED event, got %v", savedEvents)
		}
	})
}

func TestContractService_GetContractsByParty(t *testing.T) {
	contract := newPending(t)
	repo := &MockContractRepository{
		GetByPartyEmailFunc: func(ctx context.Context, email string, status domain.ContractStatus, limit, offset int) ([]*domain.Contract, error) {
			if email != "a@x.com" {
				t.Errorf("expected normalized email, got %q", email)
			}
			if status != domain.ContractStatusPending {
				t.Errorf("expected pending filter, got %q", status)
			}
			return []*domain.Contract{contract}, nil
		},
	}

	svc := NewContractService(repo, nil, nil, nil, nil)
	resp, err := svc.GetContractsByParty(context.Background(), " A@X.com ", "pending", 1, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("expected 1 contract, got %d", resp.Count)
	}

	if _, err := svc.GetContractsByParty(context.Background(), "a@x.com", "bogus", 1, 20); err == nil {
		t.Error("expected error for invalid status filter")
	}
}

func TestContractService_ExpireContracts(t *testing.T) {
	overdue := func(t *testing.T) *domain.Contract {
		c := newPending(t)
		past := time.Now().Add(-time.Minute)
		c.ExpiresAt = &past
		return c
	}

	t.Run("sweeps overdue contracts", func(t *testing.T) {
		candidates := []*domain.Contract{overdue(t), overdue(t), overdue(t)}
		repo := &MockContractRepository{
			GetExpiredFunc: func(ctx context.Context, now time.Time, limit int) ([]*domain.Contract, error) {
				if limit != 50 {
					t.Errorf("expected limit 50, got %d", limit)
				}
				return candidates, nil
			},
		}

		svc := NewContractService(repo, nil, nil, nil, nil)
		n, err := svc.ExpireContracts(context.Background(), 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 3 {
			t.Errorf("expected 3 expired, got %d", n)
		}
		for _, c := range candidates {
			if c.Status != domain.ContractStatusExpired {
				t.Errorf("candidate left in %s", c.Status)
			}
		}
	})

	t.Run("version conflict skips candidate", func(t *testing.T) {
		candidates := []*domain.Contract{overdue(t), overdue(t)}
		saves := 0
		repo := &MockContractRepository{
			GetExpiredFunc: func(ctx context.Context, now time.Time, limit int) ([]*domain.Contract, error) {
				return candidates, nil
			},
			SaveFunc: func(ctx context.Context, c *domain.Contract, events ...*domain.AuditEvent) error {
				saves++
				if saves == 1 {
					return domain.ErrVersionConflict
				}
				return nil
			},
		}

		svc := NewContractService(repo, nil, nil, nil, nil)
		n, err := svc.ExpireContracts(context.Background(), 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 expired after conflict, got %d", n)
		}
	})

	t.Run("empty sweep", func(t *testing.T) {
		svc := NewContractService(&MockContractRepository{}, nil, nil, nil, nil)
		n, err := svc.ExpireContracts(context.Background(), 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0, got %d", n)
		}
	})
}
