package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
)

// MemoryContractRepository is an in-memory ContractRepository for tests and
// local development. It honors the same versioned-save contract as the
// Postgres implementation so concurrency behavior can be exercised without a
// database.
type MemoryContractRepository struct {
	mu        sync.Mutex
	contracts map[string]*domain.Contract
	byToken   map[string]string
	events    []*domain.AuditEvent
}

// NewMemoryContractRepository creates an empty in-memory repository
func NewMemoryContractRepository() *MemoryContractRepository {
	return &MemoryContractRepository{
		contracts: make(map[string]*domain.Contract),
		byToken:   make(map[string]string),
	}
}

func cloneContract(c *domain.Contract) *domain.Contract {
	clone := *c
	if c.Signatures != nil {
		clone.Signatures = make([]domain.Signature, len(c.Signatures))
		copy(clone.Signatures, c.Signatures)
	}
	if c.ExpiresAt != nil {
		expires := *c.ExpiresAt
		clone.ExpiresAt = &expires
	}
	return &clone
}

// Create persists a freshly created DRAFT contract
func (r *MemoryContractRepository) Create(_ context.Context, contract *domain.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contracts[contract.ID] = cloneContract(contract)
	if contract.SignToken != "" {
		r.byToken[contract.SignToken] = contract.ID
	}
	return nil
}

// GetByID retrieves a contract by its id
func (r *MemoryContractRepository) GetByID(_ context.Context, id string) (*domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contract, ok := r.contracts[id]
	if !ok {
		return nil, domain.ErrContractNotFound
	}
	return cloneContract(contract), nil
}

// GetByToken retrieves a contract by its sign token
func (r *MemoryContractRepository) GetByToken(_ context.Context, token string) (*domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byToken[token]
	if !ok {
		return nil, domain.ErrContractNotFound
	}
	return cloneContract(r.contracts[id]), nil
}

// Save persists a mutated contract with a version check
func (r *MemoryContractRepository) Save(_ context.Context, contract *domain.Contract, events ...*domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.contracts[contract.ID]
	if !ok {
		return domain.ErrContractNotFound
	}
	if stored.Version != contract.Version {
		return domain.ErrVersionConflict
	}

	contract.Version++
	r.contracts[contract.ID] = cloneContract(contract)
	if contract.SignToken != "" {
		r.byToken[contract.SignToken] = contract.ID
	}
	for _, ev := range events {
		if ev != nil {
			r.events = append(r.events, ev)
		}
	}
	return nil
}

// Delete removes a contract
func (r *MemoryContractRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	contract, ok := r.contracts[id]
	if !ok {
		return domain.ErrContractNotFound
	}
	if contract.SignToken != "" {
		delete(r.byToken, contract.SignToken)
	}
	delete(r.contracts, id)
	return nil
}

// GetByCreator lists contracts owned by a user, newest first
func (r *MemoryContractRepository) GetByCreator(_ context.Context, creatorID string, limit, offset int) ([]*domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*domain.Contract
	for _, c := range r.contracts {
		if c.CreatorID == creatorID {
			matches = append(matches, cloneContract(c))
		}
	}
	return paginate(matches, limit, offset), nil
}

// GetByPartyEmail lists contracts where the email belongs to either party
func (r *MemoryContractRepository) GetByPartyEmail(_ context.Context, email string, status domain.ContractStatus, limit, offset int) ([]*domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*domain.Contract
	for _, c := range r.contracts {
		if c.FirstParty.Email != email && c.SecondParty.Email != email {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		matches = append(matches, cloneContract(c))
	}
	return paginate(matches, limit, offset), nil
}

// GetExpired returns PENDING contracts past their deadline, capped at limit
func (r *MemoryContractRepository) GetExpired(_ context.Context, now time.Time, limit int) ([]*domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*domain.Contract
	for _, c := range r.contracts {
		if c.Status == domain.ContractStatusPending && c.IsExpiredAt(now) {
			matches = append(matches, cloneContract(c))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ExpiresAt.Before(*matches[j].ExpiresAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Events returns the audit events recorded through Save, oldest first.
func (r *MemoryContractRepository) Events() []*domain.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]*domain.AuditEvent, len(r.events))
	copy(events, r.events)
	return events
}

func paginate(contracts []*domain.Contract, limit, offset int) []*domain.Contract {
	sort.Slice(contracts, func(i, j int) bool {
		return contracts[i].CreatedAt.After(contracts[j].CreatedAt)
	})
	if offset >= len(contracts) {
		return nil
	}
	contracts = contracts[offset:]
	if limit > 0 && len(contracts) > limit {
		contracts = contracts[:limit]
	}
	return contracts
}

// Ensure MemoryContractRepository implements ContractRepository
var _ ContractRepository = (*MemoryContractRepository)(nil)
