package split_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/services/split"
)

// MockAffiliateResolver mocks the affiliate resolver
type MockAffiliateResolver struct {
	mock.Mock
}

func (m *MockAffiliateResolver) ResolveWallet(ctx context.Context, affiliateID string) (string, error) {
	args := m.Called(ctx, affiliateID)
	return args.String(0), args.Error(1)
}

func TestComputeSplits_FiliacaoWithAffiliate(t *testing.T) {
	resolver := new(MockAffiliateResolver)
	resolver.On("ResolveWallet", mock.Anything, "aff_1").Return("wallet_1", nil)

	calc := split.NewCalculator(resolver, zap.NewNop())
	planned, err := calc.ComputeSplits(context.Background(), models.ServiceFiliacao, decimal.NewFromFloat(100.00), "aff_1")

	require.NoError(t, err)
	require.Len(t, planned, 3)

	assert.Equal(t, models.RecipientPlatform, planned[0].Recipient)
	assert.Equal(t, 40, planned[0].Percentage)
	assert.True(t, planned[0].Amount.Equal(decimal.NewFromFloat(40.00)))

	assert.Equal(t, models.RecipientPartner, planned[1].Recipient)
	assert.Equal(t, 40, planned[1].Percentage)

	assert.Equal(t, models.RecipientAffiliate, planned[2].Recipient)
	assert.Equal(t, 20, planned[2].Percentage)
	assert.Equal(t, "aff_1", planned[2].AffiliateID)
	assert.Equal(t, "wallet_1", planned[2].WalletID)
	assert.True(t, planned[2].Amount.Equal(decimal.NewFromFloat(20.00)))

	resolver.AssertExpectations(t)
}

func TestComputeSplits_PercentageTables(t *testing.T) {
	tests := []struct {
		serviceType models.ServiceType
		percentages []int
		recipients  []models.RecipientType
	}{
		{models.ServiceServico, []int{60, 40}, []models.RecipientType{models.RecipientPlatform, models.RecipientPartner}},
		{models.ServicePublicidade, []int{100}, []models.RecipientType{models.RecipientPlatform}},
		{models.ServiceEvento, []int{70, 30}, []models.RecipientType{models.RecipientPlatform, models.RecipientPartner}},
		{models.ServiceOutro, []int{100}, []models.RecipientType{models.RecipientPlatform}},
	}

	calc := split.NewCalculator(new(MockAffiliateResolver), zap.NewNop())

	for _, tt := range tests {
		t.Run(string(tt.serviceType), func(t *testing.T) {
			planned, err := calc.ComputeSplits(context.Background(), tt.serviceType, decimal.NewFromFloat(200.00), "ignored")
			require.NoError(t, err)
			require.Len(t, planned, len(tt.percentages))
			for i := range planned {
				assert.Equal(t, tt.recipients[i], planned[i].Recipient)
				assert.Equal(t, tt.percentages[i], planned[i].Percentage)
			}
		})
	}
}

func TestComputeSplits_UnknownServiceType(t *testing.T) {
	calc := split.NewCalculator(new(MockAffiliateResolver), zap.NewNop())

	_, err := calc.ComputeSplits(context.Background(), models.ServiceType("consultoria"), decimal.NewFromFloat(50.00), "")

	var invalidErr *models.InvalidServiceTypeError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, models.ServiceType("consultoria"), invalidErr.ServiceType)
}

func TestComputeSplits_NoAffiliateDropsRowWithoutRescaling(t *testing.T) {
	calc := split.NewCalculator(new(MockAffiliateResolver), zap.NewNop())

	planned, err := calc.ComputeSplits(context.Background(), models.ServiceFiliacao, decimal.NewFromFloat(100.00), "")

	require.NoError(t, err)
	require.Len(t, planned, 2)
	assert.Equal(t, 40, planned[0].Percentage)
	assert.Equal(t, 40, planned[1].Percentage)
}

func TestComputeSplits_InactiveAffiliateDropsRow(t *testing.T) {
	resolver := new(MockAffiliateResolver)
	resolver.On("ResolveWallet", mock.Anything, "aff_gone").Return("", models.ErrNotFound)

	calc := split.NewCalculator(resolver, zap.NewNop())
	planned, err := calc.ComputeSplits(context.Background(), models.ServiceFiliacao, decimal.NewFromFloat(100.00), "aff_gone")

	require.NoError(t, err)
	require.Len(t, planned, 2)
	for _, p := range planned {
		assert.NotEqual(t, models.RecipientAffiliate, p.Recipient)
	}
}

func TestComputeSplits_ResolverFailurePropagates(t *testing.T) {
	resolver := new(MockAffiliateResolver)
	resolver.On("ResolveWallet", mock.Anything, "aff_1").Return("", errors.New("connection reset"))

	calc := split.NewCalculator(resolver, zap.NewNop())
	_, err := calc.ComputeSplits(context.Background(), models.ServiceFiliacao, decimal.NewFromFloat(100.00), "aff_1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestComputeSplits_RoundsHalfUpToCents(t *testing.T) {
	calc := split.NewCalculator(new(MockAffiliateResolver), zap.NewNop())

	// 33.33 * 60% = 19.998 -> 20.00; 33.33 * 40% = 13.332 -> 13.33
	planned, err := calc.ComputeSplits(context.Background(), models.ServiceServico, decimal.NewFromFloat(33.33), "")

	require.NoError(t, err)
	require.Len(t, planned, 2)
	assert.Equal(t, "20.00", planned[0].Amount.StringFixed(2))
	assert.Equal(t, "13.33", planned[1].Amount.StringFixed(2))
}
