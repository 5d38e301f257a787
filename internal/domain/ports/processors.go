package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
)

// PendingProcessor executes the deferred side effect staged by a pending
// record. Implementations must be safe to call repeatedly for the same
// record: the payment id is the idempotency key.
type PendingProcessor interface {
	// CompleteSubscription creates the member account and subscription staged
	// by a subscription-variant record.
	CompleteSubscription(ctx context.Context, rec *models.PendingRecord) error

	// CompleteProcess finishes the paid service request staged by a
	// completion-variant record.
	CompleteProcess(ctx context.Context, rec *models.PendingRecord) error
}

// WebhookProcessor re-invokes the application's webhook handling routine with
// a stored notification payload.
type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte) error
}

// AffiliateNotifier tells an affiliate about a commission. Best-effort:
// failures are logged by the caller, never surfaced.
type AffiliateNotifier interface {
	NotifyCommission(ctx context.Context, affiliateID, cobrancaID string, amount decimal.Decimal) error
}

// Provisioner creates the application-side state a pending record stages.
// Both calls must be idempotent on the record's payment id.
type Provisioner interface {
	// CreateSubscription materializes the member subscription staged by rec.
	CreateSubscription(ctx context.Context, rec *models.PendingRecord) error

	// CompleteServiceRequest finishes the paid service request staged by rec.
	CompleteServiceRequest(ctx context.Context, rec *models.PendingRecord) error
}
