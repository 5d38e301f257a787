package webhookerr

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
	"github.com/portalclube/payment-reconciler/internal/metrics"
)

// Ledger records webhook processing failures and drives their reprocessing.
// Record is fail-loud: there is no further fallback beneath the fallback.
type Ledger struct {
	repo      ports.WebhookErrorRepository
	processor ports.WebhookProcessor
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewLedger creates the webhook error ledger
func NewLedger(repo ports.WebhookErrorRepository, processor ports.WebhookProcessor, logger *zap.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{
		repo:      repo,
		processor: processor,
		logger:    logger,
		metrics:   m,
	}
}

// Record appends a new unresolved entry with the full notification payload.
// A ledger write failure propagates to the caller.
func (l *Ledger) Record(ctx context.Context, paymentID string, procErr error, stack string, payload []byte) (*models.WebhookError, error) {
	we := &models.WebhookError{
		ID:           uuid.New().String(),
		PaymentID:    paymentID,
		ErrorMessage: procErr.Error(),
		ErrorStack:   stack,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}

	if err := l.repo.Create(ctx, we); err != nil {
		return nil, fmt.Errorf("record webhook error: %w", err)
	}

	l.metrics.WebhookErrors.Inc()
	l.logger.Error("webhook processing failure recorded",
		zap.String("webhook_error_id", we.ID),
		zap.String("payment_id", paymentID),
		zap.String("error", we.ErrorMessage),
	)
	return we, nil
}

// Retry re-invokes the webhook processing routine with the stored payload.
// Success marks the entry resolved and leaves retry_count untouched; failure
// increments retry_count and stamps last_retry_at. Retries are not capped
// here; capping is an operator concern layered on top.
func (l *Ledger) Retry(ctx context.Context, id string) (bool, error) {
	we, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if we.Resolved {
		return true, nil
	}

	procErr := l.processor.Process(ctx, we.Payload)
	now := time.Now()

	if procErr != nil {
		we.RetryCount++
		we.LastRetryAt = &now
		if err := l.repo.Update(ctx, we); err != nil {
			return false, err
		}
		l.logger.Warn("webhook reprocessing failed",
			zap.String("webhook_error_id", we.ID),
			zap.String("payment_id", we.PaymentID),
			zap.Int("retry_count", we.RetryCount),
			zap.Error(procErr),
		)
		return false, nil
	}

	we.Resolved = true
	we.ResolvedAt = &now
	if err := l.repo.Update(ctx, we); err != nil {
		return false, err
	}

	l.metrics.WebhookResolved.Inc()
	l.logger.Info("webhook error resolved by reprocessing",
		zap.String("webhook_error_id", we.ID),
		zap.String("payment_id", we.PaymentID),
	)
	return true, nil
}

// MarkResolved flips resolved without reprocessing, for issues fixed
// out-of-band. Resolution is monotonic: an already resolved entry stays so.
func (l *Ledger) MarkResolved(ctx context.Context, id string) error {
	we, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if we.Resolved {
		return nil
	}

	now := time.Now()
	we.Resolved = true
	we.ResolvedAt = &now
	if err := l.repo.Update(ctx, we); err != nil {
		return err
	}

	l.metrics.WebhookResolved.Inc()
	l.logger.Info("webhook error manually resolved",
		zap.String("webhook_error_id", we.ID),
		zap.String("payment_id", we.PaymentID),
	)
	return nil
}

// ListUnresolved exposes open entries for the orchestrator and operators.
func (l *Ledger) ListUnresolved(ctx context.Context, since time.Time, limit int32) ([]*models.WebhookError, error) {
	return l.repo.ListUnresolved(ctx, since, limit)
}
