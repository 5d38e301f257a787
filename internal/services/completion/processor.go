package completion

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
	"github.com/portalclube/payment-reconciler/internal/services/split"
)

// confirmedStatuses are the gateway payment states that allow completion.
var confirmedStatuses = map[string]bool{
	"CONFIRMED":        true,
	"RECEIVED":         true,
	"RECEIVED_IN_CASH": true,
}

// Processor implements ports.PendingProcessor: it verifies the payment at the
// gateway, provisions the staged application state, and then distributes the
// payment's splits. Safe to call repeatedly for the same record.
type Processor struct {
	gateway     ports.PaymentGateway
	provisioner ports.Provisioner
	calculator  *split.Calculator
	distributor *split.Distributor
	logger      *zap.Logger
}

// NewProcessor creates a new completion processor
func NewProcessor(
	gateway ports.PaymentGateway,
	provisioner ports.Provisioner,
	calculator *split.Calculator,
	distributor *split.Distributor,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		gateway:     gateway,
		provisioner: provisioner,
		calculator:  calculator,
		distributor: distributor,
		logger:      logger,
	}
}

// CompleteSubscription creates the member subscription staged by rec and
// distributes the payment's value.
func (p *Processor) CompleteSubscription(ctx context.Context, rec *models.PendingRecord) error {
	payload := rec.Subscription
	if payload == nil {
		return fmt.Errorf("record %s has no subscription payload", rec.ID)
	}

	if err := p.verifyPayment(ctx, rec.PaymentID); err != nil {
		return err
	}

	if err := p.provisioner.CreateSubscription(ctx, rec); err != nil {
		return fmt.Errorf("provision subscription: %w", err)
	}

	planned, err := p.calculator.ComputeSplits(ctx, models.ServiceFiliacao, payload.Value, payload.AffiliateID)
	if err != nil {
		return fmt.Errorf("compute splits: %w", err)
	}

	if _, err := p.distributor.Distribute(ctx, rec.PaymentID, models.ServiceFiliacao, payload.Value, planned); err != nil {
		return fmt.Errorf("distribute splits: %w", err)
	}

	p.logger.Info("subscription completed",
		zap.String("record_id", rec.ID),
		zap.String("payment_id", rec.PaymentID),
	)
	return nil
}

// CompleteProcess finishes the paid service request staged by rec and
// distributes the payment's value.
func (p *Processor) CompleteProcess(ctx context.Context, rec *models.PendingRecord) error {
	payload := rec.Completion
	if payload == nil {
		return fmt.Errorf("record %s has no completion payload", rec.ID)
	}

	if err := p.verifyPayment(ctx, rec.PaymentID); err != nil {
		return err
	}

	if err := p.provisioner.CompleteServiceRequest(ctx, rec); err != nil {
		return fmt.Errorf("complete service request: %w", err)
	}

	planned, err := p.calculator.ComputeSplits(ctx, payload.ServiceType, payload.Value, payload.AffiliateID)
	if err != nil {
		return fmt.Errorf("compute splits: %w", err)
	}

	if _, err := p.distributor.Distribute(ctx, rec.PaymentID, payload.ServiceType, payload.Value, planned); err != nil {
		return fmt.Errorf("distribute splits: %w", err)
	}

	p.logger.Info("service request completed",
		zap.String("record_id", rec.ID),
		zap.String("payment_id", rec.PaymentID),
		zap.String("request_id", payload.RequestID),
	)
	return nil
}

// verifyPayment confirms the gateway considers the payment settled.
func (p *Processor) verifyPayment(ctx context.Context, paymentID string) error {
	payment, err := p.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("query payment %s: %w", paymentID, err)
	}
	if !confirmedStatuses[strings.ToUpper(payment.Status)] {
		return fmt.Errorf("payment %s not confirmed (status %s)", paymentID, payment.Status)
	}
	return nil
}
