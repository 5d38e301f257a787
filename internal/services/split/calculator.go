package split

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/domain/ports"
)

// tableEntry is one row of the static percentage table.
type tableEntry struct {
	recipient  models.RecipientType
	percentage int
}

// percentageTables maps each service type to its split policy. Percentages
// per service type sum to 100.
var percentageTables = map[models.ServiceType][]tableEntry{
	models.ServiceFiliacao: {
		{models.RecipientPlatform, 40},
		{models.RecipientPartner, 40},
		{models.RecipientAffiliate, 20},
	},
	models.ServiceServico: {
		{models.RecipientPlatform, 60},
		{models.RecipientPartner, 40},
	},
	models.ServicePublicidade: {
		{models.RecipientPlatform, 100},
	},
	models.ServiceEvento: {
		{models.RecipientPlatform, 70},
		{models.RecipientPartner, 30},
	},
	models.ServiceOutro: {
		{models.RecipientPlatform, 100},
	},
}

// Calculator computes the per-beneficiary split plan for a payment.
type Calculator struct {
	affiliates ports.AffiliateResolver
	logger     *zap.Logger
}

// NewCalculator creates a new split calculator
func NewCalculator(affiliates ports.AffiliateResolver, logger *zap.Logger) *Calculator {
	return &Calculator{
		affiliates: affiliates,
		logger:     logger,
	}
}

// ComputeSplits produces the ordered split plan for a payment. An affiliate
// row is dropped entirely when no affiliate id is supplied or the affiliate
// has no active wallet; the remaining percentages are NOT rescaled — the
// platform keeps the unallocated remainder implicitly because its own row is
// a direct receipt.
func (c *Calculator) ComputeSplits(ctx context.Context, serviceType models.ServiceType, totalValue decimal.Decimal, affiliateID string) ([]models.PlannedSplit, error) {
	table, ok := percentageTables[serviceType]
	if !ok {
		return nil, &models.InvalidServiceTypeError{ServiceType: serviceType}
	}

	planned := make([]models.PlannedSplit, 0, len(table))
	for _, entry := range table {
		row := models.PlannedSplit{
			Recipient:  entry.recipient,
			Percentage: entry.percentage,
			Amount:     commissionAmount(totalValue, entry.percentage),
		}

		if entry.recipient == models.RecipientAffiliate {
			if affiliateID == "" {
				c.logger.Debug("no affiliate on transaction, dropping affiliate row",
					zap.String("service_type", string(serviceType)))
				continue
			}

			wallet, err := c.affiliates.ResolveWallet(ctx, affiliateID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					c.logger.Warn("affiliate has no active wallet, dropping affiliate row",
						zap.String("affiliate_id", affiliateID),
						zap.String("service_type", string(serviceType)))
					continue
				}
				return nil, err
			}
			row.AffiliateID = affiliateID
			row.WalletID = wallet
		}

		planned = append(planned, row)
	}

	return planned, nil
}

// commissionAmount rounds totalValue * percentage / 100 to the currency's
// minor unit using half-up rounding.
func commissionAmount(totalValue decimal.Decimal, percentage int) decimal.Decimal {
	return totalValue.
		Mul(decimal.NewFromInt(int64(percentage))).
		Div(decimal.NewFromInt(100)).
		Round(2)
}
