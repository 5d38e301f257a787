package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
)

// SplitRepository implements ports.SplitRepository with hand-written SQL.
type SplitRepository struct {
	pool *pgxpool.Pool
}

// NewSplitRepository creates a new split ledger repository
func NewSplitRepository(db ports.DBPort) *SplitRepository {
	return &SplitRepository{pool: db.GetDB()}
}

// Create inserts one split row, optionally inside tx
func (r *SplitRepository) Create(ctx context.Context, tx ports.DBTX, rec *models.SplitRecord) error {
	var db ports.DBTX = r.pool
	if tx != nil {
		db = tx
	}

	commission, err := decimalToNumeric(rec.CommissionAmount)
	if err != nil {
		return models.NewPersistenceError("create split", err)
	}
	total, err := decimalToNumeric(rec.TotalValue)
	if err != nil {
		return models.NewPersistenceError("create split", err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO split_records
			(id, cobranca_id, recipient_type, service_type, percentage,
			 commission_amount, total_value, wallet_id, asaas_split_id,
			 status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`,
		rec.ID,
		rec.CobrancaID,
		string(rec.Recipient),
		string(rec.ServiceType),
		rec.Percentage,
		commission,
		total,
		nullTextPtr(rec.WalletID),
		nullTextPtr(rec.AsaasSplitID),
		string(rec.Status),
	)
	if err != nil {
		return models.NewPersistenceError("create split", err)
	}
	return nil
}

// ListByCobranca returns all splits recorded for a payment
func (r *SplitRepository) ListByCobranca(ctx context.Context, cobrancaID string) ([]*models.SplitRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, cobranca_id, recipient_type, service_type, percentage,
		       commission_amount, total_value, wallet_id, asaas_split_id,
		       status, created_at, updated_at
		FROM split_records
		WHERE cobranca_id = $1
		ORDER BY created_at ASC`, cobrancaID)
	if err != nil {
		return nil, models.NewPersistenceError("list splits", err)
	}
	defer rows.Close()

	var records []*models.SplitRecord
	for rows.Next() {
		rec, err := scanSplit(rows)
		if err != nil {
			return nil, models.NewPersistenceError("scan split", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewPersistenceError("list splits", err)
	}
	return records, nil
}

// UpdateStatus transitions one split row
func (r *SplitRepository) UpdateStatus(ctx context.Context, id string, status models.SplitStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE split_records SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return models.NewPersistenceError("update split status", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func scanSplit(row pgx.Row) (*models.SplitRecord, error) {
	var (
		rec        models.SplitRecord
		recipient  string
		service    string
		status     string
		commission pgtype.Numeric
		total      pgtype.Numeric
		wallet     pgtype.Text
		asaasSplit pgtype.Text
	)

	err := row.Scan(&rec.ID, &rec.CobrancaID, &recipient, &service, &rec.Percentage,
		&commission, &total, &wallet, &asaasSplit, &status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Recipient = models.RecipientType(recipient)
	rec.ServiceType = models.ServiceType(service)
	rec.Status = models.SplitStatus(status)
	rec.WalletID = textPtr(wallet)
	rec.AsaasSplitID = textPtr(asaasSplit)

	if rec.CommissionAmount, err = pgNumericToDecimal(commission); err != nil {
		return nil, err
	}
	if rec.TotalValue, err = pgNumericToDecimal(total); err != nil {
		return nil, err
	}
	return &rec, nil
}
