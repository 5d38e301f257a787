package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
)

// NotificationRepository implements ports.AffiliateNotifier by queueing a row
// the portal's notification UI renders later. Best-effort from the caller's
// point of view.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new notification queue repository
func NewNotificationRepository(db ports.DBPort) *NotificationRepository {
	return &NotificationRepository{pool: db.GetDB()}
}

// NotifyCommission queues a commission notification for an affiliate
func (r *NotificationRepository) NotifyCommission(ctx context.Context, affiliateID, cobrancaID string, amount decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient_type, recipient_id, kind, message, created_at)
		VALUES ($1, 'affiliate', $2, 'commission', $3, now())`,
		uuid.New().String(),
		affiliateID,
		fmt.Sprintf("Comissão de R$ %s creditada para a cobrança %s", amount.StringFixed(2), cobrancaID),
	)
	if err != nil {
		return models.NewPersistenceError("queue affiliate notification", err)
	}
	return nil
}
