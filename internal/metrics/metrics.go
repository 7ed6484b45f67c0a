package metrics

import (
	"context"
	"sync"

	"github.com/HyunsooZo/signly-sub001/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Contract lifecycle counters
	ContractsCreated   *telemetry.Counter
	ContractsSent      *telemetry.Counter
	SignaturesAccepted *telemetry.Counter
	ContractsCompleted *telemetry.Counter
	ContractsCancelled *telemetry.Counter
	ContractsExpired   *telemetry.Counter

	// Error tracking counters
	ErrorsTotal       *telemetry.Counter
	SigningConflicts  *telemetry.Counter
	SlowRequestsTotal *telemetry.Counter

	// Histograms
	SigningTurnaround *telemetry.Histogram
	RequestDuration   *telemetry.Histogram

	// Gauges
	PendingContracts *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all contract metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	ContractsCreated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "contract_creations_total",
		Description: "Total number of draft contracts created",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ContractsSent, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "contract_sends_total",
		Description: "Total number of contracts sent for signing",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SignaturesAccepted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "contract_signatures_total",
		Description: "Total number of accepted signatures",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ContractsCompleted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "contract_completions_total",
		Description: "Total number of completed contracts",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ContractsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "contract_cancellations_total",
		Description: "Total number of cancelled contracts",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ContractsExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "contract_expirations_total",
		Description: "Total number of expired contracts",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ErrorsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "contract_errors_total",
		Description: "Total number of errors by type",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SigningConflicts, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "contract_signing_conflicts_total",
		Description: "Total number of version conflicts during signing",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SlowRequestsTotal, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "contract_slow_requests_total",
		Description: "Total number of slow requests (>1s)",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SigningTurnaround, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "contract_signing_turnaround_seconds",
		Description: "Duration from send to full signing",
		Unit:        "s",
	}, []float64{60, 300, 900, 3600, 14400, 86400, 259200, 604800}) // 1min to 7 days
	if err != nil {
		return err
	}

	RequestDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "contract_request_duration_seconds",
		Description: "HTTP request duration in seconds",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}) // 5ms to 10s
	if err != nil {
		return err
	}

	PendingContracts, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "contract_pending_contracts",
		Description: "Current number of contracts awaiting signatures",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordCreation records a contract creation metric
func RecordCreation(ctx context.Context, presetType string) {
	if ContractsCreated != nil {
		ContractsCreated.Inc(ctx,
			attribute.String("preset_type", presetType),
		)
	}
}

// RecordSend records a send-for-signing metric
func RecordSend(ctx context.Context, contractID string) {
	if ContractsSent != nil {
		ContractsSent.Inc(ctx)
	}
	if PendingContracts != nil {
		PendingContracts.Inc(ctx)
	}
}

// RecordSignature records an accepted signature metric
func RecordSignature(ctx context.Context, contractID string, fullySigned bool) {
	if SignaturesAccepted != nil {
		SignaturesAccepted.Inc(ctx,
			attribute.Bool("fully_signed", fullySigned),
		)
	}
	if fullySigned && PendingContracts != nil {
		PendingContracts.Dec(ctx)
	}
}

// RecordCompletion records a contract completion metric
func RecordCompletion(ctx context.Context, turnaroundSeconds float64) {
	if ContractsCompleted != nil {
		ContractsCompleted.Inc(ctx)
	}
	if SigningTurnaround != nil && turnaroundSeconds > 0 {
		SigningTurnaround.Record(ctx, turnaroundSeconds)
	}
}

// RecordCancellation records a contract cancellation metric
func RecordCancellation(ctx context.Context, wasPending bool) {
	if ContractsCancelled != nil {
		ContractsCancelled.Inc(ctx)
	}
	if wasPending && PendingContracts != nil {
		PendingContracts.Dec(ctx)
	}
}

// RecordExpiration records expired contract metrics for a sweep batch
func RecordExpiration(ctx context.Context, count int64) {
	if ContractsExpired != nil {
		ContractsExpired.Add(ctx, count)
	}
	if PendingContracts != nil {
		PendingContracts.Add(ctx, -count)
	}
}

// RecordSigningConflict records a version conflict during signing
func RecordSigningConflict(ctx context.Context, contractID string) {
	if SigningConflicts != nil {
		SigningConflicts.Inc(ctx)
	}
}

// RecordError records an error by type and operation
func RecordError(ctx context.Context, errorType, operation string) {
	if ErrorsTotal != nil {
		ErrorsTotal.Inc(ctx,
			attribute.String("error_type", errorType),
			attribute.String("operation", operation),
		)
	}
}

// RecordRequestDuration records HTTP request duration and tracks slow requests
func RecordRequestDuration(ctx context.Context, operation string, durationSeconds float64) {
	if RequestDuration != nil {
		RequestDuration.Record(ctx, durationSeconds,
			attribute.String("operation", operation),
		)
	}
	if durationSeconds > 1.0 && SlowRequestsTotal != nil {
		SlowRequestsTotal.Inc(ctx,
			attribute.String("operation", operation),
		)
	}
}
