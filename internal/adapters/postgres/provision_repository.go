package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
)

// ProvisionRepository implements ports.Provisioner. Inserts are keyed on the
// payment id so a retried completion never creates duplicate rows.
type ProvisionRepository struct {
	pool *pgxpool.Pool
}

// NewProvisionRepository creates a new provisioner
func NewProvisionRepository(db ports.DBPort) *ProvisionRepository {
	return &ProvisionRepository{pool: db.GetDB()}
}

// CreateSubscription materializes the member subscription staged by rec
func (r *ProvisionRepository) CreateSubscription(ctx context.Context, rec *models.PendingRecord) error {
	p := rec.Subscription
	if p == nil {
		return fmt.Errorf("record %s has no subscription payload", rec.ID)
	}

	value, err := decimalToNumeric(p.Value)
	if err != nil {
		return models.NewPersistenceError("create subscription", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO subscriptions
			(id, payment_id, customer_name, customer_email, customer_cpf,
			 plan_id, billing_type, cycle, value, next_due_date,
			 asaas_customer_id, asaas_subscription_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'active', now())
		ON CONFLICT (payment_id) DO NOTHING`,
		uuid.New().String(),
		rec.PaymentID,
		p.CustomerName,
		p.CustomerEmail,
		p.CustomerCPF,
		p.PlanID,
		p.BillingType,
		p.Cycle,
		value,
		p.NextDueDate,
		nullText(rec.AsaasCustomerID),
		nullText(rec.AsaasSubscriptionID),
	)
	if err != nil {
		return models.NewPersistenceError("create subscription", err)
	}
	return nil
}

// CompleteServiceRequest finishes the paid service request staged by rec
func (r *ProvisionRepository) CompleteServiceRequest(ctx context.Context, rec *models.PendingRecord) error {
	p := rec.Completion
	if p == nil {
		return fmt.Errorf("record %s has no completion payload", rec.ID)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE service_requests
		SET status = 'completed', completed_at = now()
		WHERE id = $1 AND status <> 'completed'`,
		p.RequestID)
	if err != nil {
		return models.NewPersistenceError("complete service request", err)
	}
	if tag.RowsAffected() == 0 {
		// Already completed counts as success; absent does not.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM service_requests WHERE id = $1)`,
			p.RequestID).Scan(&exists); err != nil {
			return models.NewPersistenceError("complete service request", err)
		}
		if !exists {
			return models.ErrNotFound
		}
	}
	return nil
}
