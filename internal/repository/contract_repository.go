package repository

import (
	"context"
	"time"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
)

// ContractRepository defines the persistence contract for the aggregate.
//
// Save is an optimistic-concurrency write: it compares the contract's
// in-memory version against the stored row and fails with
// domain.ErrVersionConflict when another writer committed first. Audit events
// passed alongside are stored transactionally with the contract so that a
// committed transition always has its event on record.
type ContractRepository interface {
	// Create persists a freshly created DRAFT contract
	Create(ctx context.Context, contract *domain.Contract) error

	// GetByID retrieves a contract by its id
	GetByID(ctx context.Context, id string) (*domain.Contract, error)

	// GetByToken retrieves a contract by its sign token (indexed point query)
	GetByToken(ctx context.Context, token string) (*domain.Contract, error)

	// Save persists a mutated contract with a version check and stages the
	// given audit events in the same transaction
	Save(ctx context.Context, contract *domain.Contract, events ...*domain.AuditEvent) error

	// Delete removes a contract; callers must have checked CanDelete
	Delete(ctx context.Context, id string) error

	// GetByCreator lists contracts owned by a user, newest first
	GetByCreator(ctx context.Context, creatorID string, limit, offset int) ([]*domain.Contract, error)

	// GetByPartyEmail lists contracts where the normalized email is one of
	// the two parties; status narrows the result when non-empty
	GetByPartyEmail(ctx context.Context, email string, status domain.ContractStatus, limit, offset int) ([]*domain.Contract, error)

	// GetExpired returns at most limit PENDING contracts whose deadline lies
	// before now; the sweep caps its batch through this limit
	GetExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Contract, error)
}
