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

// WebhookErrorRepository implements ports.WebhookErrorRepository.
type WebhookErrorRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookErrorRepository creates a new webhook error ledger repository
func NewWebhookErrorRepository(db ports.DBPort) *WebhookErrorRepository {
	return &WebhookErrorRepository{pool: db.GetDB()}
}

// Create appends a new unresolved entry
func (r *WebhookErrorRepository) Create(ctx context.Context, we *models.WebhookError) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_errors
			(id, payment_id, error_message, error_stack, payload,
			 retry_count, last_retry_at, resolved, resolved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		we.ID,
		we.PaymentID,
		we.ErrorMessage,
		nullText(we.ErrorStack),
		we.Payload,
		we.RetryCount,
		nullTime(we.LastRetryAt),
		we.Resolved,
		nullTime(we.ResolvedAt),
		we.CreatedAt,
	)
	if err != nil {
		return models.NewPersistenceError("create webhook error", err)
	}
	return nil
}

// GetByID loads one ledger entry
func (r *WebhookErrorRepository) GetByID(ctx context.Context, id string) (*models.WebhookError, error) {
	row := r.pool.QueryRow(ctx, selectWebhookError+` WHERE id = $1`, id)
	we, err := scanWebhookError(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, models.NewPersistenceError("get webhook error", err)
	}
	return we, nil
}

// ListUnresolved returns unresolved errors created after since, oldest first
func (r *WebhookErrorRepository) ListUnresolved(ctx context.Context, since time.Time, limit int32) ([]*models.WebhookError, error) {
	rows, err := r.pool.Query(ctx,
		selectWebhookError+`
		WHERE resolved = false AND created_at >= $1
		ORDER BY created_at ASC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, models.NewPersistenceError("list webhook errors", err)
	}
	defer rows.Close()

	var entries []*models.WebhookError
	for rows.Next() {
		we, err := scanWebhookError(rows)
		if err != nil {
			return nil, models.NewPersistenceError("scan webhook error", err)
		}
		entries = append(entries, we)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewPersistenceError("list webhook errors", err)
	}
	return entries, nil
}

// Update persists retry bookkeeping and resolution state
func (r *WebhookErrorRepository) Update(ctx context.Context, we *models.WebhookError) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_errors
		SET retry_count = $2, last_retry_at = $3, resolved = $4, resolved_at = $5
		WHERE id = $1`,
		we.ID,
		we.RetryCount,
		nullTime(we.LastRetryAt),
		we.Resolved,
		nullTime(we.ResolvedAt),
	)
	if err != nil {
		return models.NewPersistenceError("update webhook error", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CountUnresolved counts open ledger entries
func (r *WebhookErrorRepository) CountUnresolved(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM webhook_errors WHERE resolved = false`).Scan(&count)
	if err != nil {
		return 0, models.NewPersistenceError("count webhook errors", err)
	}
	return count, nil
}

const selectWebhookError = `
	SELECT id, payment_id, error_message, error_stack, payload,
	       retry_count, last_retry_at, resolved, resolved_at, created_at
	FROM webhook_errors`

func scanWebhookError(row pgx.Row) (*models.WebhookError, error) {
	var (
		we        models.WebhookError
		stack     pgtype.Text
		lastRetry pgtype.Timestamptz
		resolved  pgtype.Timestamptz
	)

	err := row.Scan(&we.ID, &we.PaymentID, &we.ErrorMessage, &stack, &we.Payload,
		&we.RetryCount, &lastRetry, &we.Resolved, &resolved, &we.CreatedAt)
	if err != nil {
		return nil, err
	}

	we.ErrorStack = stack.String
	if lastRetry.Valid {
		t := lastRetry.Time
		we.LastRetryAt = &t
	}
	if resolved.Valid {
		t := resolved.Time
		we.ResolvedAt = &t
	}
	return &we, nil
}

func nullTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
