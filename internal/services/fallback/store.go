package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
	"github.com/portalclube/payment-reconciler/internal/metrics"
)

// RetryOutcome reports one record's fate inside a retry batch.
type RetryOutcome struct {
	RecordID  string `json:"record_id"`
	PaymentID string `json:"payment_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// CompletionResult is the structured answer to a manual completion attempt.
// A missing record is a result, not a panic: the message names the condition
// so a UI can render "not found" distinctly from other failures.
type CompletionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Store is the durable staging area for deferred side effects. One instance
// is constructed at process start and shared by every caller; retry
// scheduling depends on that shared view of pending work.
type Store struct {
	pending   ports.PendingRepository
	processor ports.PendingProcessor
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewStore creates the fallback store service
func NewStore(pending ports.PendingRepository, processor ports.PendingProcessor, logger *zap.Logger, m *metrics.Metrics) *Store {
	return &Store{
		pending:   pending,
		processor: processor,
		logger:    logger,
		metrics:   m,
	}
}

// Store persists a new pending record before its side effect is attempted.
// A second store for a payment id already pending is a no-op returning the
// existing record's id.
func (s *Store) Store(ctx context.Context, rec *models.PendingRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Status = models.PendingStatusPending
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	err := s.pending.Create(ctx, rec)
	if err == nil {
		s.logger.Info("pending record stored",
			zap.String("record_id", rec.ID),
			zap.String("payment_id", rec.PaymentID),
			zap.String("variant", string(rec.Variant)),
		)
		return rec.ID, nil
	}

	if errors.Is(err, models.ErrDuplicatePending) {
		existing, getErr := s.pending.GetByPaymentID(ctx, rec.Variant, rec.PaymentID)
		if getErr != nil {
			return "", fmt.Errorf("resolve duplicate pending record: %w", getErr)
		}
		s.logger.Warn("pending record already staged for payment, keeping existing",
			zap.String("payment_id", rec.PaymentID),
			zap.String("existing_id", existing.ID),
		)
		return existing.ID, nil
	}

	return "", err
}

// ListRetryable returns the records a retry batch would process, oldest first.
func (s *Store) ListRetryable(ctx context.Context, variant models.PendingVariant, maxAttempts int, minAge time.Duration, limit int32) ([]*models.PendingRecord, error) {
	return s.pending.ListRetryable(ctx, variant, maxAttempts, minAge, limit)
}

// RetryAll re-attempts every retryable record of a variant exactly once.
// Each outcome is reported independently; one record's failure never aborts
// the batch.
func (s *Store) RetryAll(ctx context.Context, variant models.PendingVariant, maxAttempts int, minAge time.Duration, limit int32) ([]RetryOutcome, error) {
	records, err := s.pending.ListRetryable(ctx, variant, maxAttempts, minAge, limit)
	if err != nil {
		return nil, err
	}

	outcomes := make([]RetryOutcome, 0, len(records))
	for _, rec := range records {
		outcome := s.retryOne(ctx, rec)
		outcomes = append(outcomes, outcome)
	}

	s.logger.Info("retry batch finished",
		zap.String("variant", string(variant)),
		zap.Int("total", len(outcomes)),
		zap.Int("succeeded", countSuccesses(outcomes)),
	)
	return outcomes, nil
}

// retryOne attempts one record's deferred side effect. Attempts increments
// regardless of outcome; only success transitions the record to completed.
func (s *Store) retryOne(ctx context.Context, rec *models.PendingRecord) RetryOutcome {
	outcome := RetryOutcome{RecordID: rec.ID, PaymentID: rec.PaymentID}

	rec.Attempts++
	procErr := s.complete(ctx, rec)
	if procErr != nil {
		rec.LastError = procErr.Error()
		outcome.Error = procErr.Error()
		s.metrics.RetryAttempts.WithLabelValues(string(rec.Variant), "failure").Inc()
	} else {
		rec.Status = models.PendingStatusCompleted
		rec.LastError = ""
		outcome.Success = true
		s.metrics.RetryAttempts.WithLabelValues(string(rec.Variant), "success").Inc()
	}

	if err := s.pending.Update(ctx, rec); err != nil {
		s.logger.Error("failed to persist retry outcome",
			zap.Error(err),
			zap.String("record_id", rec.ID),
			zap.String("payment_id", rec.PaymentID),
		)
		outcome.Success = false
		if outcome.Error == "" {
			outcome.Error = err.Error()
		}
	}
	return outcome
}

// ManuallyComplete re-attempts one record synchronously at an operator's
// request and returns a structured result.
func (s *Store) ManuallyComplete(ctx context.Context, id string) CompletionResult {
	rec, err := s.pending.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return CompletionResult{
				Success: false,
				Message: fmt.Sprintf("transação pendente não encontrada: %s", id),
			}
		}
		return CompletionResult{
			Success: false,
			Message: fmt.Sprintf("falha ao carregar transação pendente: %v", err),
		}
	}

	if rec.Status == models.PendingStatusCompleted {
		return CompletionResult{Success: true, Message: "transação já concluída"}
	}

	outcome := s.retryOne(ctx, rec)
	if !outcome.Success {
		return CompletionResult{
			Success: false,
			Message: fmt.Sprintf("conclusão manual falhou: %s", outcome.Error),
		}
	}
	return CompletionResult{Success: true, Message: "transação concluída manualmente"}
}

// MarkFailed is the operator-forced terminal transition. A failed record is
// never retried again automatically.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	rec, err := s.pending.GetByID(ctx, id)
	if err != nil {
		return err
	}
	rec.Status = models.PendingStatusFailed
	rec.LastError = reason
	return s.pending.Update(ctx, rec)
}

// Stats returns aggregate counters for monitoring. Monitoring must never
// crash the caller: any internal failure degrades to a zeroed snapshot.
func (s *Store) Stats(ctx context.Context) models.FallbackStats {
	stats, err := s.pending.AggregateStats(ctx)
	if err != nil {
		s.logger.Warn("stats query failed, returning zeroed snapshot", zap.Error(err))
		return models.FallbackStats{}
	}

	s.metrics.PendingRecords.WithLabelValues(string(models.VariantSubscription)).Set(float64(stats.PendingSubscriptions))
	s.metrics.PendingRecords.WithLabelValues(string(models.VariantCompletion)).Set(float64(stats.PendingCompletions))
	return *stats
}

// complete dispatches to the variant's completion routine.
func (s *Store) complete(ctx context.Context, rec *models.PendingRecord) error {
	switch rec.Variant {
	case models.VariantSubscription:
		return s.processor.CompleteSubscription(ctx, rec)
	case models.VariantCompletion:
		return s.processor.CompleteProcess(ctx, rec)
	default:
		return fmt.Errorf("unknown pending variant %q", rec.Variant)
	}
}

func countSuccesses(outcomes []RetryOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Success {
			n++
		}
	}
	return n
}
