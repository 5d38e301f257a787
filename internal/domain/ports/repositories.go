package ports

import (
	"context"
	"time"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
)

// PendingRepository persists staged side effects keyed by payment id.
type PendingRepository interface {
	// Create inserts a new pending record. Returns models.ErrDuplicatePending
	// when a record in status pending already exists for the same payment id
	// and variant.
	Create(ctx context.Context, rec *models.PendingRecord) error

	// GetByID loads a record by its id. Returns models.ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*models.PendingRecord, error)

	// GetByPaymentID loads the non-terminal record for a payment, if any.
	GetByPaymentID(ctx context.Context, variant models.PendingVariant, paymentID string) (*models.PendingRecord, error)

	// ListRetryable returns pending records with attempts below maxAttempts
	// whose age exceeds minAge, oldest first.
	ListRetryable(ctx context.Context, variant models.PendingVariant, maxAttempts int, minAge time.Duration, limit int32) ([]*models.PendingRecord, error)

	// Update persists status, attempts and last error of an existing record.
	Update(ctx context.Context, rec *models.PendingRecord) error

	// CountByStatus counts records per variant and status.
	CountByStatus(ctx context.Context, variant models.PendingVariant, status models.PendingStatus) (int64, error)

	// AggregateStats computes the monitoring snapshot in a single query.
	AggregateStats(ctx context.Context) (*models.FallbackStats, error)
}

// SplitRepository persists the per-beneficiary split ledger.
type SplitRepository interface {
	// Create inserts one split row, optionally inside tx.
	Create(ctx context.Context, tx DBTX, rec *models.SplitRecord) error

	// ListByCobranca returns all splits recorded for a payment.
	ListByCobranca(ctx context.Context, cobrancaID string) ([]*models.SplitRecord, error)

	// UpdateStatus transitions one split row.
	UpdateStatus(ctx context.Context, id string, status models.SplitStatus) error
}

// WebhookErrorRepository persists the webhook error ledger.
type WebhookErrorRepository interface {
	Create(ctx context.Context, we *models.WebhookError) error
	GetByID(ctx context.Context, id string) (*models.WebhookError, error)

	// ListUnresolved returns unresolved errors created after since, oldest first.
	ListUnresolved(ctx context.Context, since time.Time, limit int32) ([]*models.WebhookError, error)

	Update(ctx context.Context, we *models.WebhookError) error

	CountUnresolved(ctx context.Context) (int64, error)
}

// CobrancaRepository tracks the local view of gateway charges.
type CobrancaRepository interface {
	GetByID(ctx context.Context, id string) (*models.Cobranca, error)

	// ListTransient returns charges in a non-final status updated after since.
	ListTransient(ctx context.Context, since time.Time, limit int32) ([]*models.Cobranca, error)

	UpdateStatus(ctx context.Context, id string, status models.CobrancaStatus) error

	// UpdateStatusByPaymentID transitions the charge tied to a gateway payment.
	UpdateStatusByPaymentID(ctx context.Context, asaasPaymentID string, status models.CobrancaStatus) error
}

// AffiliateResolver resolves an affiliate to an active transfer destination.
type AffiliateResolver interface {
	// ResolveWallet returns the affiliate's wallet id, or models.ErrNotFound
	// when the affiliate is absent, inactive or has no wallet.
	ResolveWallet(ctx context.Context, affiliateID string) (string, error)
}

// AuditLog records created splits for later reconciliation. Best-effort:
// callers log failures and move on.
type AuditLog interface {
	RecordSplit(ctx context.Context, rec *models.SplitRecord) error
}
