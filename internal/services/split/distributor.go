package split

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
	"github.com/portalclube/payment-reconciler/internal/metrics"
)

// Distributor persists a payment's split plan and creates the external
// transfers it requires. A batch is a single logical unit: a transfer failure
// aborts the remainder, and because the gateway has no compensating
// transaction, the resulting error names which recipients already succeeded
// so an operator can reconcile manually.
type Distributor struct {
	splits          ports.SplitRepository
	gateway         ports.PaymentGateway
	notifier        ports.AffiliateNotifier
	audit           ports.AuditLog
	partnerWalletID string
	logger          *zap.Logger
	metrics         *metrics.Metrics
}

// NewDistributor creates a new split distributor
func NewDistributor(
	splits ports.SplitRepository,
	gateway ports.PaymentGateway,
	notifier ports.AffiliateNotifier,
	audit ports.AuditLog,
	partnerWalletID string,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Distributor {
	return &Distributor{
		splits:          splits,
		gateway:         gateway,
		notifier:        notifier,
		audit:           audit,
		partnerWalletID: partnerWalletID,
		logger:          logger,
		metrics:         m,
	}
}

// Distribute executes one split batch for a payment. Platform rows are
// recorded locally with no external call; partner and affiliate rows create a
// gateway transfer first and record its id alongside the local row.
func (d *Distributor) Distribute(ctx context.Context, cobrancaID string, serviceType models.ServiceType, totalValue decimal.Decimal, planned []models.PlannedSplit) ([]*models.SplitRecord, error) {
	var (
		created   []*models.SplitRecord
		succeeded []models.RecipientType
	)

	for _, plan := range planned {
		rec, err := d.distributeOne(ctx, cobrancaID, serviceType, totalValue, plan)
		if err != nil {
			d.metrics.TransferFailures.Inc()
			return created, &models.ExternalTransferError{
				CobrancaID: cobrancaID,
				Failed:     plan.Recipient,
				Succeeded:  succeeded,
				Err:        err,
			}
		}
		created = append(created, rec)
		succeeded = append(succeeded, plan.Recipient)
		d.metrics.SplitsCreated.WithLabelValues(string(plan.Recipient), string(serviceType)).Inc()
	}

	d.logger.Info("split batch distributed",
		zap.String("cobranca_id", cobrancaID),
		zap.String("service_type", string(serviceType)),
		zap.Int("recipients", len(created)),
	)

	d.postBatch(ctx, cobrancaID, planned, created)
	return created, nil
}

// distributeOne handles a single plan row: resolve wallet, create the
// external transfer when one is needed, persist the ledger row.
func (d *Distributor) distributeOne(ctx context.Context, cobrancaID string, serviceType models.ServiceType, totalValue decimal.Decimal, plan models.PlannedSplit) (*models.SplitRecord, error) {
	rec := &models.SplitRecord{
		ID:               uuid.New().String(),
		CobrancaID:       cobrancaID,
		Recipient:        plan.Recipient,
		ServiceType:      serviceType,
		Percentage:       plan.Percentage,
		CommissionAmount: plan.Amount,
		TotalValue:       totalValue,
		Status:           models.SplitStatusPending,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if plan.Recipient != models.RecipientPlatform {
		walletID := plan.WalletID
		if plan.Recipient == models.RecipientPartner {
			walletID = d.partnerWalletID
		}
		if walletID == "" {
			return nil, fmt.Errorf("no wallet resolved for recipient %s", plan.Recipient)
		}

		transfer, err := d.gateway.CreateTransfer(ctx, &ports.TransferRequest{
			PaymentID:   cobrancaID,
			WalletID:    walletID,
			Amount:      plan.Amount,
			Description: fmt.Sprintf("split %s %s", serviceType, plan.Recipient),
		})
		if err != nil {
			return nil, fmt.Errorf("create transfer for %s: %w", plan.Recipient, err)
		}

		rec.WalletID = &walletID
		rec.AsaasSplitID = &transfer.ID
	}

	if err := d.splits.Create(ctx, nil, rec); err != nil {
		return nil, fmt.Errorf("persist split for %s: %w", plan.Recipient, err)
	}
	return rec, nil
}

// postBatch fires the best-effort side calls: affiliate notification and one
// audit entry per created split. Failures are logged, never surfaced.
func (d *Distributor) postBatch(ctx context.Context, cobrancaID string, planned []models.PlannedSplit, created []*models.SplitRecord) {
	for _, plan := range planned {
		if plan.Recipient == models.RecipientAffiliate && plan.AffiliateID != "" {
			if err := d.notifier.NotifyCommission(ctx, plan.AffiliateID, cobrancaID, plan.Amount); err != nil {
				d.logger.Warn("affiliate notification failed",
					zap.Error(err),
					zap.String("affiliate_id", plan.AffiliateID),
					zap.String("cobranca_id", cobrancaID))
			}
		}
	}

	for _, rec := range created {
		if err := d.audit.RecordSplit(ctx, rec); err != nil {
			d.logger.Warn("audit entry failed",
				zap.Error(err),
				zap.String("split_id", rec.ID),
				zap.String("cobranca_id", cobrancaID))
		}
	}
}
