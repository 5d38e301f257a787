package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
)

// AffiliateRepository implements ports.AffiliateResolver against the portal's
// affiliate table.
type AffiliateRepository struct {
	pool *pgxpool.Pool
}

// NewAffiliateRepository creates a new affiliate resolver
func NewAffiliateRepository(db ports.DBPort) *AffiliateRepository {
	return &AffiliateRepository{pool: db.GetDB()}
}

// ResolveWallet returns the affiliate's wallet id. An affiliate that is
// absent, inactive or has no wallet resolves to models.ErrNotFound.
func (r *AffiliateRepository) ResolveWallet(ctx context.Context, affiliateID string) (string, error) {
	var wallet pgtype.Text
	err := r.pool.QueryRow(ctx,
		`SELECT wallet_id FROM affiliates WHERE id = $1 AND active = true`,
		affiliateID).Scan(&wallet)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrNotFound
		}
		return "", models.NewPersistenceError("resolve affiliate wallet", err)
	}
	if !wallet.Valid || wallet.String == "" {
		return "", models.ErrNotFound
	}
	return wallet.String, nil
}
