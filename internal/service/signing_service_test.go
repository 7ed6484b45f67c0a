package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
	"github.com/HyunsooZo/signly-sub001/internal/repository"
)

func signingSetup(t *testing.T) (*repository.MemoryContractRepository, *domain.Contract) {
	t.Helper()
	repo := repository.NewMemoryContractRepository()
	contract := newPending(t)
	if err := repo.Create(context.Background(), contract); err != nil {
		t.Fatalf("seed contract: %v", err)
	}
	return repo, contract
}

func signReq(contract *domain.Contract, email, name string) *SigningRequest {
	return &SigningRequest{
		Token:       contract.SignToken,
		SignerEmail: email,
		SignerName:  name,
		Image:       []byte("png-bytes"),
		IPAddress:   "203.0.113.7",
		UserAgent:   "Mozilla/5.0",
	}
}

func TestSigningService_ProcessSigning(t *testing.T) {
	t.Run("first party signs, contract stays pending", func(t *testing.T) {
		repo, contract := signingSetup(t)
		svc := NewSigningService(repo, &MockSignatureStore{}, nil)

		resp, err := svc.ProcessSigning(context.Background(), signReq(contract, "a@x.com", "Alice"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.FullySigned {
			t.Error("one signature must not fully sign")
		}
		if resp.Status != domain.ContractStatusPending.String() {
			t.Errorf("expected pending, got %s", resp.Status)
		}
		if resp.Signature.SignedAt.IsZero() {
			t.Error("expected server-side timestamp")
		}
	})

	t.Run("second party promotes to signed with audit event", func(t *testing.T) {
		repo, contract := signingSetup(t)
		svc := NewSigningService(repo, &MockSignatureStore{}, nil)

		if _, err := svc.ProcessSigning(context.Background(), signReq(contract, "a@x.com", "Alice")); err != nil {
			t.Fatalf("first signature: %v", err)
		}
		resp, err := svc.ProcessSigning(context.Background(), signReq(contract, "b@x.com", "Bob"))
		if err != nil {
			t.Fatalf("second signature: %v", err)
		}
		if !resp.FullySigned {
			t.Error("expected fully signed")
		}
		if resp.Status != domain.ContractStatusSigned.String() {
			t.Errorf("expected signed, got %s", resp.Status)
		}

		var sawSigned bool
		for _, ev := range repo.Events() {
			if ev.Type == domain.EventContractSigned && ev.ContractID == contract.ID {
				sawSigned = true
				if ev.Actor != "b@x.com" {
					t.Errorf("expected actor b@x.com, got %q", ev.Actor)
				}
			}
		}
		if !sawSigned {
			t.Error("expected CONTRACT_SIGNED audit event")
		}
	})

	t.Run("email is normalized before matching", func(t *testing.T) {
		repo, contract := signingSetup(t)
		svc := NewSigningService(repo, &MockSignatureStore{}, nil)

		resp, err := svc.ProcessSigning(context.Background(), signReq(contract, "  A@X.com ", "Alice"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Signature.SignerEmail != "a@x.com" {
			t.Errorf("expected normalized email, got %q", resp.Signature.SignerEmail)
		}

		if _, err := svc.ProcessSigning(context.Background(), signReq(contract, "a@X.COM", "Alice")); !errors.Is(err, domain.ErrAlreadySigned) {
			t.Fatalf("expected ErrAlreadySigned for case variant, got %v", err)
		}
	})

	t.Run("outsider rejected", func(t *testing.T) {
		repo, contract := signingSetup(t)
		svc := NewSigningService(repo, &MockSignatureStore{}, nil)

		if _, err := svc.ProcessSigning(context.Background(), signReq(contract, "c@x.com", "Carol")); !errors.Is(err, domain.ErrNotParty) {
			t.Fatalf("expected ErrNotParty, got %v", err)
		}
	})

	t.Run("malformed token rejected before lookup", func(t *testing.T) {
		svc := NewSigningService(repository.NewMemoryContractRepository(), &MockSignatureStore{}, nil)

		req := &SigningRequest{Token: "nope", SignerEmail: "a@x.com", SignerName: "Alice", Image: []byte("x")}
		if _, err := svc.ProcessSigning(context.Background(), req); !errors.Is(err, domain.ErrInvalidSignToken) {
			t.Fatalf("expected ErrInvalidSignToken, got %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		svc := NewSigningService(repository.NewMemoryContractRepository(), &MockSignatureStore{}, nil)

		contract := newPending(t)
		if _, err := svc.ProcessSigning(context.Background(), signReq(contract, "a@x.com", "Alice")); !errors.Is(err, domain.ErrContractNotFound) {
			t.Fatalf("expected ErrContractNotFound, got %v", err)
		}
	})

	t.Run("missing image rejected", func(t *testing.T) {
		repo, contract := signingSetup(t)
		svc := NewSigningService(repo, &MockSignatureStore{}, nil)

		req := signReq(contract, "a@x.com", "Alice")
		req.Image = nil
		if _, err := svc.ProcessSigning(context.Background(), req); !errors.Is(err, domain.ErrMissingArtifact) {
			t.Fatalf("expected ErrMissingArtifact, got %v", err)
		}
	})

	t.Run("overdue contract expires on submission", func(t *testing.T) {
		repo := repository.NewMemoryContractRepository()
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
		if err := repo.Create(context.Background(), contract); err != nil {
			t.Fatalf("seed: %v", err)
		}

		svc := NewSigningService(repo, &MockSignatureStore{}, nil)
		if _, err := svc.ProcessSigning(context.Background(), signReq(contract, "a@x.com", "Alice")); !errors.Is(err, domain.ErrContractExpired) {
			t.Fatalf("expected ErrContractExpired, got %v", err)
		}

		stored, err := repo.GetByID(context.Background(), contract.ID)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if stored.Status != domain.ContractStatusExpired {
			t.Errorf("expected lazy expiration, got %s", stored.Status)
		}
		if len(stored.Signatures) != 0 {
			t.Error("expired contract must not gain signatures")
		}
	})

	t.Run("artifact store failure aborts before mutation", func(t *testing.T) {
		repo, contract := signingSetup(t)
		store := &MockSignatureStore{
			StoreSignatureFunc: func(ctx context.Context, contractID, signerEmail string, image []byte) (string, error) {
				return "", errors.New("bucket unavailable")
			},
		}
		svc := NewSigningService(repo, store, nil)

		if _, err := svc.ProcessSigning(context.Background(), signReq(contract, "a@x.com", "Alice")); err == nil {
			t.Fatal("expected storage error")
		}

		stored, err := repo.GetByID(context.Background(), contract.ID)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if len(stored.Signatures) != 0 {
			t.Error("failed upload must not leave a signature")
		}
	})

	t.Run("version conflict retries against fresh state", func(t *testing.T) {
		contract := newPending(t)
		stale := 0
		repo := &MockContractRepository{
			GetByTokenFunc: func(ctx context.Context, token string) (*domain.Contract, error) {
				clone := *contract
				clone.Signatures = append([]domain.Signature(nil), contract.Signatures...)
				return &clone, nil
			},
			SaveFunc: func(ctx context.Context, c *domain.Contract, events ...*domain.AuditEvent) error {
				if stale == 0 {
					stale++
					return domain.ErrVersionConflict
				}
				return nil
			},
		}

		svc := NewSigningService(repo, &MockSignatureStore{}, nil)
		resp, err := svc.ProcessSigning(context.Background(), signReq(contract, "a@x.com", "Alice"))
		if err != nil {
			t.Fatalf("unexpected error after retry: %v", err)
		}
		if resp.Signature.SignerEmail != "a@x.com" {
			t.Errorf("unexpected signer: %s", resp.Signature.SignerEmail)
		}
	})
}

// TestSigningService_ConcurrentDuplicate drives many simultaneous submissions
// for the same party through the versioned save and asserts exactly one is
// accepted, the rest failing with ErrAlreadySigned.
func TestSigningService_ConcurrentDuplicate(t *testing.T) {
	repo, contract := signingSetup(t)
	svc := NewSigningService(repo, &MockSignatureStore{}, nil)

	const goroutines = 16

	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.ProcessSigning(context.Background(), signReq(contract, "a@x.com", "Alice"))
		}(i)
	}

	close(start)
	wg.Wait()

	accepted, duplicates := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domain.ErrAlreadySigned):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly 1 accepted signature, got %d", accepted)
	}
	if duplicates != goroutines-1 {
		t.Errorf("expected %d duplicate rejections, got %d", goroutines-1, duplicates)
	}

	stored, err := repo.GetByID(context.Background(), contract.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(stored.Signatures) != 1 {
		t.Fatalf("expected 1 stored signature, got %d", len(stored.Signatures))
	}
	if stored.Status != domain.ContractStatusPending {
		t.Errorf("one signature must leave the contract pending, got %s", stored.Status)
	}
}

// TestSigningService_ConcurrentBothParties races both parties at once; both
// must land and the second writer promotes the contract to SIGNED.
func TestSigningService_ConcurrentBothParties(t *testing.T) {
	repo, contract := signingSetup(t)
	svc := NewSigningService(repo, &MockSignatureStore{}, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	emails := []string{"a@x.com", "b@x.com"}
	start := make(chan struct{})

	for i, email := range emails {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.ProcessSigning(context.Background(), signReq(contract, email, "Signer"))
		}(i, email)
	}

	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("party %s failed: %v", emails[i], err)
		}
	}

	stored, err := repo.GetByID(context.Background(), contract.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(stored.Signatures) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(stored.Signatures))
	}
	if stored.Status != domain.ContractStatusSigned {
		t.Errorf("expected signed, got %s", stored.Status)
	}
}

func TestSigningService_MarkSignedBy(t *testing.T) {
	t.Run("partial consent keeps pending", func(t *testing.T) {
		repo, contract := signingSetup(t)
		svc := NewSigningService(repo, &MockSignatureStore{}, nil)

		if err := svc.MarkSignedBy(context.Background(), contract.ID, "a@x.com", false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		stored, _ := repo.GetByID(context.Background(), contract.ID)
		if stored.Status != domain.ContractStatusPending {
			t.Errorf("expected pending, got %s", stored.Status)
		}
	})

	t.Run("complete consent promotes to signed", func(t *testing.T) {
		repo, contract := signingSetup(t)
		svc := NewSigningService(repo, &MockSignatureStore{}, nil)

		if err := svc.MarkSignedBy(context.Background(), contract.ID, "b@x.com", true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		stored, _ := repo.GetByID(context.Background(), contract.ID)
		if stored.Status != domain.ContractStatusSigned {
			t.Errorf("expected signed, got %s", stored.Status)
		}
	})

	t.Run("outsider rejected", func(t *testing.T) {
		repo, contract := signingSetup(t)
		svc := NewSigningService(repo, &MockSignatureStore{}, nil)

		if err := svc.MarkSignedBy(context.Background(), contract.ID, "c@x.com", true); !errors.Is(err, domain.ErrNotParty) {
			t.Fatalf("expected ErrNotParty, got %v", err)
		}
	})
}
