package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
)

const pgUniqueViolation = "23505"

// PendingRepository implements ports.PendingRepository with hand-written SQL.
type PendingRepository struct {
	pool *pgxpool.Pool
}

// NewPendingRepository creates a new pending-record repository
func NewPendingRepository(db ports.DBPort) *PendingRepository {
	return &PendingRepository{pool: db.GetDB()}
}

// Create inserts a new pending record. A partial unique index on
// (variant, payment_id) WHERE status = 'pending' enforces the idempotency
// guard; conflicts map to models.ErrDuplicatePending.
func (r *PendingRepository) Create(ctx context.Context, rec *models.PendingRecord) error {
	payload, err := marshalPayload(rec)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO pending_records
			(id, variant, payment_id, asaas_customer_id, asaas_subscription_id,
			 payload, attempts, status, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		rec.ID,
		string(rec.Variant),
		rec.PaymentID,
		nullText(rec.AsaasCustomerID),
		nullText(rec.AsaasSubscriptionID),
		payload,
		rec.Attempts,
		string(rec.Status),
		nullText(rec.LastError),
		rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return models.ErrDuplicatePending
		}
		return models.NewPersistenceError("create pending record", err)
	}
	return nil
}

// GetByID loads a record by its id
func (r *PendingRepository) GetByID(ctx context.Context, id string) (*models.PendingRecord, error) {
	row := r.pool.QueryRow(ctx, selectPending+` WHERE id = $1`, id)
	rec, err := scanPending(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, models.NewPersistenceError("get pending record", err)
	}
	return rec, nil
}

// GetByPaymentID loads the non-terminal record for a payment, if any
func (r *PendingRepository) GetByPaymentID(ctx context.Context, variant models.PendingVariant, paymentID string) (*models.PendingRecord, error) {
	row := r.pool.QueryRow(ctx,
		selectPending+` WHERE variant = $1 AND payment_id = $2 AND status = 'pending'`,
		string(variant), paymentID)
	rec, err := scanPending(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, models.NewPersistenceError("get pending record by payment", err)
	}
	return rec, nil
}

// ListRetryable returns pending records below the attempt ceiling and older
// than the backoff window, oldest first
func (r *PendingRepository) ListRetryable(ctx context.Context, variant models.PendingVariant, maxAttempts int, minAge time.Duration, limit int32) ([]*models.PendingRecord, error) {
	cutoff := time.Now().Add(-minAge)

	rows, err := r.pool.Query(ctx,
		selectPending+`
		WHERE variant = $1 AND status = 'pending' AND attempts < $2 AND created_at <= $3
		ORDER BY created_at ASC
		LIMIT $4`,
		string(variant), maxAttempts, cutoff, limit)
	if err != nil {
		return nil, models.NewPersistenceError("list retryable records", err)
	}
	defer rows.Close()

	var records []*models.PendingRecord
	for rows.Next() {
		rec, err := scanPending(rows)
		if err != nil {
			return nil, models.NewPersistenceError("scan pending record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewPersistenceError("list retryable records", err)
	}
	return records, nil
}

// Update persists status, attempts and last error of an existing record
func (r *PendingRepository) Update(ctx context.Context, rec *models.PendingRecord) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pending_records
		SET status = $2, attempts = $3, last_error = $4,
		    asaas_customer_id = $5, asaas_subscription_id = $6, updated_at = now()
		WHERE id = $1`,
		rec.ID,
		string(rec.Status),
		rec.Attempts,
		nullText(rec.LastError),
		nullText(rec.AsaasCustomerID),
		nullText(rec.AsaasSubscriptionID),
	)
	if err != nil {
		return models.NewPersistenceError("update pending record", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CountByStatus counts records per variant and status
func (r *PendingRepository) CountByStatus(ctx context.Context, variant models.PendingVariant, status models.PendingStatus) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM pending_records WHERE variant = $1 AND status = $2`,
		string(variant), string(status)).Scan(&count)
	if err != nil {
		return 0, models.NewPersistenceError("count pending records", err)
	}
	return count, nil
}

// AggregateStats computes the monitoring snapshot in a single query
func (r *PendingRepository) AggregateStats(ctx context.Context) (*models.FallbackStats, error) {
	var (
		stats         models.FallbackStats
		completed     int64
		terminal      int64
		lastProcessed pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE variant = 'subscription' AND status = 'pending'),
			count(*) FILTER (WHERE variant = 'completion' AND status = 'pending'),
			coalesce(sum(attempts), 0),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status IN ('completed', 'failed', 'expired')),
			max(updated_at) FILTER (WHERE status = 'completed')
		FROM pending_records`).Scan(
		&stats.PendingSubscriptions,
		&stats.PendingCompletions,
		&stats.TotalRetries,
		&completed,
		&terminal,
		&lastProcessed,
	)
	if err != nil {
		return nil, models.NewPersistenceError("aggregate pending stats", err)
	}

	if terminal > 0 {
		stats.SuccessRate = float64(completed) / float64(terminal)
	}
	if lastProcessed.Valid {
		t := lastProcessed.Time
		stats.LastProcessed = &t
	}
	return &stats, nil
}

const selectPending = `
	SELECT id, variant, payment_id, asaas_customer_id, asaas_subscription_id,
	       payload, attempts, status, last_error, created_at, updated_at
	FROM pending_records`

func scanPending(row pgx.Row) (*models.PendingRecord, error) {
	var (
		rec       models.PendingRecord
		variant   string
		status    string
		custID    pgtype.Text
		subID     pgtype.Text
		lastError pgtype.Text
		payload   []byte
	)

	err := row.Scan(&rec.ID, &variant, &rec.PaymentID, &custID, &subID,
		&payload, &rec.Attempts, &status, &lastError, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Variant = models.PendingVariant(variant)
	rec.Status = models.PendingStatus(status)
	rec.AsaasCustomerID = custID.String
	rec.AsaasSubscriptionID = subID.String
	rec.LastError = lastError.String

	if err := unmarshalPayload(&rec, payload); err != nil {
		return nil, err
	}
	return &rec, nil
}

func marshalPayload(rec *models.PendingRecord) ([]byte, error) {
	switch rec.Variant {
	case models.VariantSubscription:
		if rec.Subscription == nil {
			return nil, fmt.Errorf("subscription record %s has no payload", rec.ID)
		}
		return json.Marshal(rec.Subscription)
	case models.VariantCompletion:
		if rec.Completion == nil {
			return nil, fmt.Errorf("completion record %s has no payload", rec.ID)
		}
		return json.Marshal(rec.Completion)
	default:
		return nil, fmt.Errorf("unknown pending variant %q", rec.Variant)
	}
}

func unmarshalPayload(rec *models.PendingRecord, payload []byte) error {
	switch rec.Variant {
	case models.VariantSubscription:
		rec.Subscription = &models.SubscriptionPayload{}
		if err := json.Unmarshal(payload, rec.Subscription); err != nil {
			return fmt.Errorf("unmarshal subscription payload: %w", err)
		}
	case models.VariantCompletion:
		rec.Completion = &models.CompletionPayload{}
		if err := json.Unmarshal(payload, rec.Completion); err != nil {
			return fmt.Errorf("unmarshal completion payload: %w", err)
		}
	default:
		return fmt.Errorf("unknown pending variant %q", rec.Variant)
	}
	return nil
}
