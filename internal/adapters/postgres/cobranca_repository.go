package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
)

// CobrancaRepository implements ports.CobrancaRepository.
type CobrancaRepository struct {
	pool *pgxpool.Pool
}

// NewCobrancaRepository creates a new charge repository
func NewCobrancaRepository(db ports.DBPort) *CobrancaRepository {
	return &CobrancaRepository{pool: db.GetDB()}
}

// GetByID loads one charge
func (r *CobrancaRepository) GetByID(ctx context.Context, id string) (*models.Cobranca, error) {
	row := r.pool.QueryRow(ctx, selectCobranca+` WHERE id = $1`, id)
	c, err := scanCobranca(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, models.NewPersistenceError("get cobranca", err)
	}
	return c, nil
}

// ListTransient returns charges in a non-final status updated after since,
// oldest first
func (r *CobrancaRepository) ListTransient(ctx context.Context, since time.Time, limit int32) ([]*models.Cobranca, error) {
	rows, err := r.pool.Query(ctx,
		selectCobranca+`
		WHERE status IN ('pending', 'awaiting_confirmation', 'overdue') AND updated_at >= $1
		ORDER BY updated_at ASC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, models.NewPersistenceError("list transient cobrancas", err)
	}
	defer rows.Close()

	var charges []*models.Cobranca
	for rows.Next() {
		c, err := scanCobranca(rows)
		if err != nil {
			return nil, models.NewPersistenceError("scan cobranca", err)
		}
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewPersistenceError("list transient cobrancas", err)
	}
	return charges, nil
}

// UpdateStatus transitions one charge
func (r *CobrancaRepository) UpdateStatus(ctx context.Context, id string, status models.CobrancaStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cobrancas SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return models.NewPersistenceError("update cobranca status", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateStatusByPaymentID transitions the charge tied to a gateway payment
func (r *CobrancaRepository) UpdateStatusByPaymentID(ctx context.Context, asaasPaymentID string, status models.CobrancaStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cobrancas SET status = $2, updated_at = now() WHERE asaas_payment_id = $1`,
		asaasPaymentID, string(status))
	if err != nil {
		return models.NewPersistenceError("update cobranca status", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

const selectCobranca = `
	SELECT id, asaas_payment_id, customer_id, service_type, value, status,
	       created_at, updated_at
	FROM cobrancas`

func scanCobranca(row pgx.Row) (*models.Cobranca, error) {
	var (
		c       models.Cobranca
		service string
		status  string
		value   pgtype.Numeric
	)

	err := row.Scan(&c.ID, &c.AsaasPaymentID, &c.CustomerID, &service, &value,
		&status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.ServiceType = models.ServiceType(service)
	c.Status = models.CobrancaStatus(status)
	if c.Value, err = pgNumericToDecimal(value); err != nil {
		return nil, err
	}
	return &c, nil
}
