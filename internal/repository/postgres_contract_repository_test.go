package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
)

func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run.")
	}
}

// getPostgresPool creates a PostgreSQL connection pool for testing
func getPostgresPool(t *testing.T) *pgxpool.Pool {
	skipIfNoIntegration(t)

	host := os.Getenv("TEST_POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("TEST_POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("TEST_POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("TEST_POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("TEST_POSTGRES_DB")
	if dbname == "" {
		dbname = "contracts_test"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, dbname)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping PostgreSQL: %v", err)
	}

	cleanupTestData(t, pool)

	return pool
}

func cleanupTestData(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	// Signatures and outbox rows cascade or carry the creator marker
	_, err := pool.Exec(ctx, "DELETE FROM contracts WHERE creator_id LIKE 'test-%'")
	if err != nil {
		t.Logf("Warning: failed to clean up contracts: %v", err)
	}
	_, err = pool.Exec(ctx, "DELETE FROM outbox WHERE aggregate_type = 'contract' AND created_at < now() - interval '1 hour'")
	if err != nil {
		t.Logf("Warning: failed to clean up outbox: %v", err)
	}
}

func createTestContract(t *testing.T, creatorID string) *domain.Contract {
	t.Helper()

	first, err := domain.NewPartyInfo("Alice Kim", "alice@example.com", "Acme Corp")
	if err != nil {
		t.Fatalf("NewPartyInfo() error = %v", err)
	}
	second, err := domain.NewPartyInfo("Bob Lee", "bob@example.com", "")
	if err != nil {
		t.Fatalf("NewPartyInfo() error = %v", err)
	}

	expiresAt := time.Now().Add(72 * time.Hour)
	contract, err := domain.NewContract(creatorID, "", "Service Agreement", "The parties agree as follows.", first, second, &expiresAt, "")
	if err != nil {
		t.Fatalf("NewContract() error = %v", err)
	}
	return contract
}

func TestPostgresContractRepository_CreateAndGetByID(t *testing.T) {
	skipIfNoIntegration(t)

	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresContractRepository(pool)
	ctx := context.Background()

	contract := createTestContract(t, "test-creator-1")

	if err := repo.Create(ctx, contract); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	retrieved, err := repo.GetByID(ctx, contract.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if retrieved.ID != contract.ID {
		t.Errorf("GetByID() ID = %v, want %v", retrieved.ID, contract.ID)
	}
	if retrieved.Status != domain.ContractStatusDraft {
		t.Errorf("GetByID() Status = %v, want %v", retrieved.Status, domain.ContractStatusDraft)
	}
	if retrieved.FirstParty.Email != "alice@example.com" {
		t.Errorf("GetByID() FirstParty.Email = %v, want alice@example.com", retrieved.FirstParty.Email)
	}
	if retrieved.SecondParty.Name != "Bob Lee" {
		t.Errorf("GetByID() SecondParty.Name = %v, want Bob Lee", retrieved.SecondParty.Name)
	}
	if retrieved.Version != 1 {
		t.Errorf("GetByID() Version = %v, want 1", retrieved.Version)
	}

	_ = repo.Delete(ctx, contract.ID)
}

func TestPostgresContractRepository_GetByID_NotFound(t *testing.T) {
	skipIfNoIntegration(t)

	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresContractRepository(pool)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New().String())
	if !errors.Is(err, domain.ErrContractNotFound) {
		t.Errorf("GetByID() error = %v, want %v", err, domain.ErrContractNotFound)
	}
}

func TestPostgresContractRepository_GetByToken(t *testing.T) {
	skipIfNoIntegration(t)

	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresContractRepository(pool)
	ctx := context.Background()

	contract := createTestContract(t, "test-creator-2")
	if err := repo.Create(ctx, contract); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	event, err := contract.SendForSigning(contract.CreatorID)
	if err != nil {
		t.Fatalf("SendForSigning() error = %v", err)
	}
	if err := repo.Save(ctx, contract, event); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	retrieved, err := repo.GetByToken(ctx, contract.SignToken)
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if retrieved.ID != contract.ID {
		t.Errorf("GetByToken() ID = %v, want %v", retrieved.ID, contract.ID)
	}
	if retrieved.Status != domain.ContractStatusPending {
		t.Errorf("GetByToken() Status = %v, want %v", retrieved.Status, domain.ContractStatusPending)
	}

	_, err = repo.GetByToken(ctx, domain.NewSignToken())
	if !errors.Is(err, domain.ErrContractNotFound) {
		t.Errorf("GetByToken() unknown token error = %v, want %v", err, domain.ErrContractNotFound)
	}

	_ = repo.Delete(ctx, contract.ID)
}

func TestPostgresContractRepository_Save_VersionConflict(t *testing.T) {
	skipIfNoIntegration(t)

	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresContractRepository(pool)
	ctx := context.Background()

	contract := createTestContract(t, "test-creator-3")
	if err := repo.Create(ctx, contract); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Two readers load the same version, both try to advance it
	first, err := repo.GetByID(ctx, contract.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	second, err := repo.GetByID(ctx, contract.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if _, err := first.SendForSigning(first.CreatorID); err != nil {
		t.Fatalf("SendForSigning() error = %v", err)
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save() first writer error = %v", err)
	}

	if _, err := second.SendForSigning(second.CreatorID); err != nil {
		t.Fatalf("SendForSigning() error = %v", err)
	}
	err = repo.Save(ctx, second)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Errorf("Save() stale writer error = %v, want %v", err, domain.ErrVersionConflict)
	}

	_ = repo.Delete(ctx, contract.ID)
}

func TestPostgresContractRepository_Save_PersistsSignaturesAndOutbox(t *testing.T) {
	skipIfNoIntegration(t)

	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresContractRepository(pool)
	outboxRepo := NewPostgresOutboxRepository(pool)
	ctx := context.Background()

	contract := createTestContract(t, "test-creator-4")
	if err := repo.Create(ctx, contract); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := contract.SendForSigning(contract.CreatorID); err != nil {
		t.Fatalf("SendForSigning() error = %v", err)
	}
	if err := repo.Save(ctx, contract); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	aliceSig, err := domain.NewSignature("alice@example.com", "Alice Kim", "signatures/"+contract.ID+"/alice.png", "203.0.113.7", "test-agent/1.0")
	if err != nil {
		t.Fatalf("NewSignature() error = %v", err)
	}
	fullySigned, event, err := contract.AddSignature(aliceSig)
	if err != nil {
		t.Fatalf("AddSignature() error = %v", err)
	}
	if fullySigned || event != nil {
		t.Fatalf("AddSignature() reported completion after one of two signatures")
	}
	if err := repo.Save(ctx, contract); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	bobSig, err := domain.NewSignature("bob@example.com", "Bob Lee", "signatures/"+contract.ID+"/bob.png", "203.0.113.8", "test-agent/1.0")
	if err != nil {
		t.Fatalf("NewSignature() error = %v", err)
	}
	fullySigned, event, err = contract.AddSignature(bobSig)
	if err != nil {
		t.Fatalf("AddSignature() error = %v", err)
	}
	if !fullySigned || event == nil {
		t.Fatalf("AddSignature() did not report completion after both signatures")
	}
	if err := repo.Save(ctx, contract, event); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	retrieved, err := repo.GetByID(ctx, contract.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if retrieved.Status != domain.ContractStatusSigned {
		t.Errorf("GetByID() Status = %v, want %v", retrieved.Status, domain.ContractStatusSigned)
	}
	if len(retrieved.Signatures) != 2 {
		t.Fatalf("GetByID() signatures = %d, want 2", len(retrieved.Signatures))
	}
	if !retrieved.HasSigned("alice@example.com") || !retrieved.HasSigned("bob@example.com") {
		t.Errorf("HasSigned() = false for a recorded signer")
	}

	// The audit event must have landed in the outbox in the same transaction
	pending, err := outboxRepo.GetPendingMessages(ctx, 100)
	if err != nil {
		t.Fatalf("GetPendingMessages() error = %v", err)
	}
	found := false
	for _, msg := range pending {
		if msg.AggregateID == contract.ID && msg.EventType == string(domain.EventContractSigned) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("outbox has no %s message for contract %s", domain.EventContractSigned, contract.ID)
	}

	_ = repo.Delete(ctx, contract.ID)
}

func TestPostgresContractRepository_GetExpired(t *testing.T) {
	skipIfNoIntegration(t)

	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresContractRepository(pool)
	ctx := context.Background()

	first, _ := domain.NewPartyInfo("Alice Kim", "alice@example.com", "")
	second, _ := domain.NewPartyInfo("Bob Lee", "bob@example.com", "")

	now := time.Now()
	past := now.Add(-1 * time.Hour)
	overdue := domain.Restore(
		uuid.New().String(), "test-creator-5", "", "Overdue", "body",
		first, second,
		domain.ContractStatusPending,
		nil,
		domain.NewSignToken(),
		&past,
		"", "",
		1,
		now.Add(-48*time.Hour), now.Add(-48*time.Hour),
	)
	if err := repo.Create(ctx, overdue); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// A live pending contract must not be swept
	live := createTestContract(t, "test-creator-5")
	if err := repo.Create(ctx, live); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := live.SendForSigning(live.CreatorID); err != nil {
		t.Fatalf("SendForSigning() error = %v", err)
	}
	if err := repo.Save(ctx, live); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	expired, err := repo.GetExpired(ctx, time.Now(), 50)
	if err != nil {
		t.Fatalf("GetExpired() error = %v", err)
	}

	foundOverdue, foundLive := false, false
	for _, c := range expired {
		if c.ID == overdue.ID {
			foundOverdue = true
		}
		if c.ID == live.ID {
			foundLive = true
		}
	}
	if !foundOverdue {
		t.Errorf("GetExpired() missing overdue contract %s", overdue.ID)
	}
	if foundLive {
		t.Errorf("GetExpired() returned live contract %s", live.ID)
	}

	capped, err := repo.GetExpired(ctx, time.Now(), 0)
	if err != nil {
		t.Fatalf("GetExpired() error = %v", err)
	}
	if len(capped) != 0 {
		t.Errorf("GetExpired() with limit 0 = %d rows, want 0", len(capped))
	}

	_ = repo.Delete(ctx, overdue.ID)
	_ = repo.Delete(ctx, live.ID)
}

func TestPostgresContractRepository_Delete(t *testing.T) {
	skipIfNoIntegration(t)

	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresContractRepository(pool)
	ctx := context.Background()

	contract := createTestContract(t, "test-creator-6")
	if err := repo.Create(ctx, contract); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, contract.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := repo.GetByID(ctx, contract.ID)
	if !errors.Is(err, domain.ErrContractNotFound) {
		t.Errorf("GetByID() after delete error = %v, want %v", err, domain.ErrContractNotFound)
	}

	err = repo.Delete(ctx, contract.ID)
	if !errors.Is(err, domain.ErrContractNotFound) {
		t.Errorf("Delete() missing row error = %v, want %v", err, domain.ErrContractNotFound)
	}
}

func TestPostgresContractRepository_GetByCreator(t *testing.T) {
	skipIfNoIntegration(t)

	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresContractRepository(pool)
	ctx := context.Background()

	creatorID := "test-creator-7"
	var ids []string
	for i := 0; i < 3; i++ {
		c := createTestContract(t, creatorID)
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids = append(ids, c.ID)
	}

	contracts, err := repo.GetByCreator(ctx, creatorID, 2, 0)
	if err != nil {
		t.Fatalf("GetByCreator() error = %v", err)
	}
	if len(contracts) != 2 {
		t.Errorf("GetByCreator() page size = %d, want 2", len(contracts))
	}

	rest, err := repo.GetByCreator(ctx, creatorID, 2, 2)
	if err != nil {
		t.Fatalf("GetByCreator() error = %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("GetByCreator() second page = %d, want 1", len(rest))
	}

	for _, id := range ids {
		_ = repo.Delete(ctx, id)
	}
}
