package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
	"github.com/HyunsooZo/signly-sub001/internal/repository"
	"github.com/HyunsooZo/signly-sub001/pkg/kafka"
	"github.com/HyunsooZo/signly-sub001/pkg/logger"
)

// OutboxWorkerConfig contains configuration for the outbox worker
type OutboxWorkerConfig struct {
	// PollInterval is the interval between polling for pending messages
	PollInterval time.Duration
	// BatchSize is the number of messages to fetch in each poll
	BatchSize int
	// RetryInterval is the interval between retrying failed messages
	RetryInterval time.Duration
	// CleanupInterval is the interval between cleanup of old published messages
	CleanupInterval time.Duration
	// CleanupRetentionDays is the number of days to retain published messages
	CleanupRetentionDays int
}

// DefaultOutboxWorkerConfig returns default configuration
func DefaultOutboxWorkerConfig() *OutboxWorkerConfig {
	return &OutboxWorkerConfig{
		PollInterval:         500 * time.Millisecond,
		BatchSize:            100,
		RetryInterval:        5 * time.Second,
		CleanupInterval:      1 * time.Hour,
		CleanupRetentionDays: 30,
	}
}

// OutboxWorker drains staged audit events to Kafka. Events were committed in
// the same transaction as the contract mutation they describe, so the worker
// only ever re-publishes; it never touches contract state. Delivery order is
// per partition key (the contract id), and a message that keeps failing stays
// in the outbox table with its error recorded rather than being dropped.
type OutboxWorker struct {
	outboxRepo repository.OutboxRepository
	producer   *kafka.Producer
	config     *OutboxWorkerConfig
	log        *logger.Logger

	published atomic.Int64
	failed    atomic.Int64

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewOutboxWorker creates a new outbox worker
func NewOutboxWorker(
	outboxRepo repository.OutboxRepository,
	producer *kafka.Producer,
	config *OutboxWorkerConfig,
) *OutboxWorker {
	if config == nil {
		config = DefaultOutboxWorkerConfig()
	}

	return &OutboxWorker{
		outboxRepo: outboxRepo,
		producer:   producer,
		config:     config,
		log:        logger.Get(),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the drain loop. All three duties (drain, redeliver, purge)
// run on one goroutine so a slow Kafka never piles up concurrent batches.
func (w *OutboxWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting outbox worker",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Stop stops the outbox worker and waits for the in-flight batch
func (w *OutboxWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Outbox worker stopped",
		zap.Int64("published_total", w.published.Load()),
		zap.Int64("failed_total", w.failed.Load()))
}

func (w *OutboxWorker) run(ctx context.Context) {
	defer w.wg.Done()

	poll := time.NewTicker(w.config.PollInterval)
	defer poll.Stop()
	retry := time.NewTicker(w.config.RetryInterval)
	defer retry.Stop()
	purge := time.NewTicker(w.config.CleanupInterval)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-poll.C:
			w.drain(ctx, false)
		case <-retry.C:
			w.drain(ctx, true)
		case <-purge.C:
			w.purgePublished(ctx)
		}
	}
}

// drain fetches one batch (pending or previously failed) and pushes each
// message through Kafka, recording the outcome per message.
func (w *OutboxWorker) drain(ctx context.Context, redeliver bool) {
	var (
		messages []*domain.OutboxMessage
		err      error
	)
	if redeliver {
		messages, err = w.outboxRepo.GetFailedMessages(ctx, w.config.BatchSize)
	} else {
		messages, err = w.outboxRepo.GetPendingMessages(ctx, w.config.BatchSize)
	}
	if err != nil {
		w.log.Error("Failed to fetch outbox batch", zap.Bool("redeliver", redeliver), zap.Error(err))
		return
	}

	for _, msg := range messages {
		w.deliver(ctx, msg, redeliver)
	}
}

func (w *OutboxWorker) deliver(ctx context.Context, msg *domain.OutboxMessage, redeliver bool) {
	err := w.producer.Produce(ctx, &kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.PartitionKey),
		Value: msg.Payload,
		Headers: map[string]string{
			"event_type":     msg.EventType,
			"aggregate_type": msg.AggregateType,
			"aggregate_id":   msg.AggregateID,
			"content_type":   "application/json",
			"source":         "outbox-worker",
		},
		Timestamp: time.Now(),
	})
	if err != nil {
		w.failed.Add(1)
		w.log.Error("Failed to publish audit event",
			zap.String("message_id", msg.ID),
			zap.String("event_type", msg.EventType),
			zap.Int("attempt", msg.RetryCount+1),
			zap.Int("max_retries", msg.MaxRetries),
			zap.Error(err))
		if markErr := w.outboxRepo.MarkAsFailed(ctx, msg.ID, err.Error()); markErr != nil {
			w.log.Error("Failed to record publish failure", zap.String("message_id", msg.ID), zap.Error(markErr))
		}
		return
	}

	w.published.Add(1)
	if redeliver {
		w.log.Info("Redelivered audit event",
			zap.String("message_id", msg.ID),
			zap.Int("attempts", msg.RetryCount+1))
	}
	if markErr := w.outboxRepo.MarkAsPublished(ctx, msg.ID); markErr != nil {
		// The event will be published again on the next poll; consumers
		// must treat audit events as at-least-once.
		w.log.Error("Failed to mark message published", zap.String("message_id", msg.ID), zap.Error(markErr))
	}
}

func (w *OutboxWorker) purgePublished(ctx context.Context) {
	deleted, err := w.outboxRepo.DeletePublished(ctx, w.config.CleanupRetentionDays)
	if err != nil {
		w.log.Error("Failed to purge published outbox rows", zap.Error(err))
		return
	}
	if deleted > 0 {
		w.log.Info("Purged published outbox rows", zap.Int64("deleted", deleted))
	}
}

// OutboxWorkerStats contains worker statistics
type OutboxWorkerStats struct {
	IsRunning      bool  `json:"is_running"`
	PublishedTotal int64 `json:"published_total"`
	FailedTotal    int64 `json:"failed_total"`
}

// GetStats returns worker statistics
func (w *OutboxWorker) GetStats() OutboxWorkerStats {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	return OutboxWorkerStats{
		IsRunning:      running,
		PublishedTotal: w.published.Load(),
		FailedTotal:    w.failed.Load(),
	}
}
