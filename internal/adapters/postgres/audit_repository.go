package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
)

// AuditRepository implements ports.AuditLog. Writes are best-effort from the
// caller's point of view; failures here never block a split batch.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(db ports.DBPort) *AuditRepository {
	return &AuditRepository{pool: db.GetDB()}
}

// RecordSplit appends one audit entry for a created split
func (r *AuditRepository) RecordSplit(ctx context.Context, rec *models.SplitRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (id, entity, entity_id, action, detail, created_at)
		VALUES ($1, 'split_record', $2, 'created', $3, now())`,
		uuid.New().String(),
		rec.ID,
		string(rec.Recipient)+" "+rec.CommissionAmount.StringFixed(2)+" of "+rec.TotalValue.StringFixed(2),
	)
	if err != nil {
		return models.NewPersistenceError("record split audit entry", err)
	}
	return nil
}
