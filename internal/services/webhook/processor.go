package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
	"github.com/portalclube/payment-reconciler/internal/services/fallback"
)

// notification is the shape of an Asaas payment webhook.
type notification struct {
	Event   string `json:"event"`
	Payment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
}

// paymentEvents are the notifications that carry a payment status change.
var paymentEvents = map[string]bool{
	"PAYMENT_CREATED":                true,
	"PAYMENT_UPDATED":                true,
	"PAYMENT_CONFIRMED":              true,
	"PAYMENT_RECEIVED":               true,
	"PAYMENT_OVERDUE":                true,
	"PAYMENT_REFUNDED":               true,
	"PAYMENT_DELETED":                true,
	"PAYMENT_AWAITING_RISK_ANALYSIS": true,
}

// confirmationEvents are the notifications that release staged side effects.
var confirmationEvents = map[string]bool{
	"PAYMENT_CONFIRMED": true,
	"PAYMENT_RECEIVED":  true,
}

// Processor implements ports.WebhookProcessor: it applies one gateway
// notification to the local state. Idempotent, so the error ledger can replay
// any payload safely.
type Processor struct {
	pending   ports.PendingRepository
	cobrancas ports.CobrancaRepository
	store     *fallback.Store
	logger    *zap.Logger
}

// NewProcessor creates the webhook processor
func NewProcessor(pending ports.PendingRepository, cobrancas ports.CobrancaRepository, store *fallback.Store, logger *zap.Logger) *Processor {
	return &Processor{
		pending:   pending,
		cobrancas: cobrancas,
		store:     store,
		logger:    logger,
	}
}

// Process applies one notification payload. Unknown events are ignored;
// malformed payloads and failed side effects return an error so the caller
// can record the payload in the error ledger.
func (p *Processor) Process(ctx context.Context, payload []byte) error {
	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return fmt.Errorf("parse webhook payload: %w", err)
	}
	if !paymentEvents[n.Event] {
		p.logger.Debug("ignoring webhook event", zap.String("event", n.Event))
		return nil
	}
	if n.Payment.ID == "" {
		return fmt.Errorf("webhook event %s has no payment id", n.Event)
	}

	if err := p.syncCobranca(ctx, n); err != nil {
		return err
	}

	if confirmationEvents[n.Event] {
		return p.releasePending(ctx, n.Payment.ID)
	}
	return nil
}

// syncCobranca updates the local view of the charge. Payments we never staged
// locally are not an error.
func (p *Processor) syncCobranca(ctx context.Context, n notification) error {
	status := models.CobrancaStatusFromGateway(n.Payment.Status)
	if status == "" {
		p.logger.Debug("webhook carries unknown payment status",
			zap.String("payment_id", n.Payment.ID),
			zap.String("status", n.Payment.Status),
		)
		return nil
	}

	err := p.cobrancas.UpdateStatusByPaymentID(ctx, n.Payment.ID, status)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("update charge %s: %w", n.Payment.ID, err)
	}
	return nil
}

// releasePending completes any staged side effect waiting on this payment.
func (p *Processor) releasePending(ctx context.Context, paymentID string) error {
	for _, variant := range []models.PendingVariant{models.VariantSubscription, models.VariantCompletion} {
		rec, err := p.pending.GetByPaymentID(ctx, variant, paymentID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return fmt.Errorf("load pending record for %s: %w", paymentID, err)
		}
		if rec.Status != models.PendingStatusPending {
			continue
		}

		result := p.store.ManuallyComplete(ctx, rec.ID)
		if !result.Success {
			return fmt.Errorf("complete pending record %s: %s", rec.ID, result.Message)
		}
		p.logger.Info("pending record released by webhook",
			zap.String("record_id", rec.ID),
			zap.String("payment_id", paymentID),
			zap.String("variant", string(variant)),
		)
	}
	return nil
}
