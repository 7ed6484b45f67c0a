package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a committed contract state transition.
type EventType string

const (
	EventContractSent      EventType = "CONTRACT_SENT"
	EventContractSigned    EventType = "CONTRACT_SIGNED"
	EventContractCompleted EventType = "CONTRACT_COMPLETED"
	EventContractCancelled EventType = "CONTRACT_CANCELLED"
	EventContractExpired   EventType = "CONTRACT_EXPIRED"
)

// AuditEvent is the record emitted for one committed state transition.
// Transitions return these explicitly; the infrastructure layer persists
// them. Actor is empty for system-driven transitions such as expiration.
type AuditEvent struct {
	ID         string    `json:"id"`
	ContractID string    `json:"contract_id"`
	Type       EventType `json:"type"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewAuditEvent creates an audit event for a transition on contractID.
func NewAuditEvent(eventType EventType, contractID, actor string) *AuditEvent {
	return &AuditEvent{
		ID:         uuid.New().String(),
		ContractID: contractID,
		Type:       eventType,
		Actor:      actor,
		OccurredAt: time.Now(),
	}
}

// ContractOutboxEvent wraps an audit event in an outbox message so it is
// stored in the same transaction as the contract write.
func ContractOutboxEvent(ev *AuditEvent) (*OutboxMessage, error) {
	return NewOutboxMessage("contract", ev.ContractID, string(ev.Type), "contract-events", ev)
}
