package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
	"github.com/HyunsooZo/signly-sub001/pkg/kafka"
	"github.com/google/uuid"
)

// EventPublisher defines the interface for publishing contract notifications.
// These are best-effort fan-out messages for downstream consumers (email,
// webhooks); the authoritative audit trail goes through the outbox instead,
// so a publish failure never affects contract state.
type EventPublisher interface {
	// PublishSigningRequested notifies parties that a contract awaits signing
	PublishSigningRequested(ctx context.Context, contract *domain.Contract) error

	// PublishPartySigned notifies that one party has signed
	PublishPartySigned(ctx context.Context, contract *domain.Contract, signerEmail string) error

	// PublishContractCompleted notifies that a contract reached completion
	PublishContractCompleted(ctx context.Context, contract *domain.Contract) error

	// PublishContractCancelled notifies that a contract was cancelled
	PublishContractCancelled(ctx context.Context, contract *domain.Contract) error

	// Close closes the event publisher
	Close() error
}

// ContractNotification is the payload sent to the notification topic
type ContractNotification struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	ContractID  string    `json:"contract_id"`
	Title       string    `json:"title"`
	CreatorID   string    `json:"creator_id"`
	Recipients  []string  `json:"recipients"`
	SignerEmail string    `json:"signer_email,omitempty"`
	SignToken   string    `json:"sign_token,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

const (
	notificationSigningRequested  = "SIGNING_REQUESTED"
	notificationPartySigned       = "PARTY_SIGNED"
	notificationContractCompleted = "CONTRACT_COMPLETED"
	notificationContractCancelled = "CONTRACT_CANCELLED"
)

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "contract-notifications"
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "contract-service"
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "contract-service-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishSigningRequested notifies parties that a contract awaits signing.
// This is the only notification that carries the sign token, since the token
// URL is what the parties need to act on.
func (p *KafkaEventPublisher) PublishSigningRequested(ctx context.Context, contract *domain.Contract) error {
	n := p.notification(notificationSigningRequested, contract)
	n.SignToken = contract.SignToken
	return p.publish(ctx, n)
}

// PublishPartySigned notifies that one party has signed
func (p *KafkaEventPublisher) PublishPartySigned(ctx context.Context, contract *domain.Contract, signerEmail string) error {
	n := p.notification(notificationPartySigned, contract)
	n.SignerEmail = signerEmail
	return p.publish(ctx, n)
}

// PublishContractCompleted notifies that a contract reached completion
func (p *KafkaEventPublisher) PublishContractCompleted(ctx context.Context, contract *domain.Contract) error {
	return p.publish(ctx, p.notification(notificationContractCompleted, contract))
}

// PublishContractCancelled notifies that a contract was cancelled
func (p *KafkaEventPublisher) PublishContractCancelled(ctx context.Context, contract *domain.Contract) error {
	return p.publish(ctx, p.notification(notificationContractCancelled, contract))
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

func (p *KafkaEventPublisher) notification(eventType string, contract *domain.Contract) *ContractNotification {
	return &ContractNotification{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		ContractID: contract.ID,
		Title:      contract.Title,
		CreatorID:  contract.CreatorID,
		Recipients: []string{contract.FirstParty.Email, contract.SecondParty.Email},
		OccurredAt: time.Now(),
	}
}

func (p *KafkaEventPublisher) publish(ctx context.Context, n *ContractNotification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	headers := map[string]string{
		"event_type":   n.EventType,
		"event_id":     n.EventID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(n.ContractID),
		Value:     value,
		Headers:   headers,
		Timestamp: time.Now(),
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", n.EventType, err)
	}

	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher for testing
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishSigningRequested is a no-op
func (p *NoOpEventPublisher) PublishSigningRequested(ctx context.Context, contract *domain.Contract) error {
	return nil
}

// PublishPartySigned is a no-op
func (p *NoOpEventPublisher) PublishPartySigned(ctx context.Context, contract *domain.Contract, signerEmail string) error {
	return nil
}

// PublishContractCompleted is a no-op
func (p *NoOpEventPublisher) PublishContractCompleted(ctx context.Context, contract *domain.Contract) error {
	return nil
}

// PublishContractCancelled is a no-op
func (p *NoOpEventPublisher) PublishContractCancelled(ctx context.Context, contract *domain.Contract) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}
