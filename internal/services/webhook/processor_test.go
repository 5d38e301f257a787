package webhook_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/domain/models"
	"github.com/portalclube/payment-reconciler/internal/metrics"
	"github.com/portalclube/payment-reconciler/internal/services/fallback"
	"github.com/portalclube/payment-reconciler/internal/services/webhook"
)

// MockPendingRepository mocks the pending record repository
type MockPendingRepository struct {
	mock.Mock
}

func (m *MockPendingRepository) Create(ctx context.Context, rec *models.PendingRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockPendingRepository) GetByID(ctx context.Context, id string) (*models.PendingRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingRecord), args.Error(1)
}

func (m *MockPendingRepository) GetByPaymentID(ctx context.Context, variant models.PendingVariant, paymentID string) (*models.PendingRecord, error) {
	args := m.Called(ctx, variant, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingRecord), args.Error(1)
}

func (m *MockPendingRepository) ListRetryable(ctx context.Context, variant models.PendingVariant, maxAttempts int, minAge time.Duration, limit int32) ([]*models.PendingRecord, error) {
	args := m.Called(ctx, variant, maxAttempts, minAge, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PendingRecord), args.Error(1)
}

func (m *MockPendingRepository) Update(ctx context.Context, rec *models.PendingRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockPendingRepository) CountByStatus(ctx context.Context, variant models.PendingVariant, status models.PendingStatus) (int64, error) {
	args := m.Called(ctx, variant, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPendingRepository) AggregateStats(ctx context.Context) (*models.FallbackStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FallbackStats), args.Error(1)
}

// MockCobrancaRepository mocks the charge repository
type MockCobrancaRepository struct {
	mock.Mock
}

func (m *MockCobrancaRepository) GetByID(ctx context.Context, id string) (*models.Cobranca, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cobranca), args.Error(1)
}

func (m *MockCobrancaRepository) ListTransient(ctx context.Context, since time.Time, limit int32) ([]*models.Cobranca, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Cobranca), args.Error(1)
}

func (m *MockCobrancaRepository) UpdateStatus(ctx context.Context, id string, status models.CobrancaStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockCobrancaRepository) UpdateStatusByPaymentID(ctx context.Context, asaasPaymentID string, status models.CobrancaStatus) error {
	args := m.Called(ctx, asaasPaymentID, status)
	return args.Error(0)
}

// MockPendingProcessor mocks the completion processor behind the store
type MockPendingProcessor struct {
	mock.Mock
}

func (m *MockPendingProcessor) CompleteSubscription(ctx context.Context, rec *models.PendingRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockPendingProcessor) CompleteProcess(ctx context.Context, rec *models.PendingRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func newProcessor(pending *MockPendingRepository, cobrancas *MockCobrancaRepository, proc *MockPendingProcessor) *webhook.Processor {
	store := fallback.NewStore(pending, proc, zap.NewNop(), metrics.Registry("test"))
	return webhook.NewProcessor(pending, cobrancas, store, zap.NewNop())
}

func TestProcess_MalformedPayload(t *testing.T) {
	p := newProcessor(new(MockPendingRepository), new(MockCobrancaRepository), new(MockPendingProcessor))

	err := p.Process(context.Background(), []byte(`{not json`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse webhook payload")
}

func TestProcess_IgnoresUnknownEvents(t *testing.T) {
	cobrancas := new(MockCobrancaRepository)
	p := newProcessor(new(MockPendingRepository), cobrancas, new(MockPendingProcessor))

	err := p.Process(context.Background(), []byte(`{"event":"TRANSFER_CREATED","payment":{"id":"pay_1"}}`))

	require.NoError(t, err)
	cobrancas.AssertNotCalled(t, "UpdateStatusByPaymentID", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_MissingPaymentID(t *testing.T) {
	p := newProcessor(new(MockPendingRepository), new(MockCobrancaRepository), new(MockPendingProcessor))

	err := p.Process(context.Background(), []byte(`{"event":"PAYMENT_CONFIRMED","payment":{}}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no payment id")
}

func TestProcess_SyncsChargeStatus(t *testing.T) {
	pending := new(MockPendingRepository)
	cobrancas := new(MockCobrancaRepository)
	p := newProcessor(pending, cobrancas, new(MockPendingProcessor))

	cobrancas.On("UpdateStatusByPaymentID", mock.Anything, "pay_1", models.CobrancaOverdue).Return(nil)

	err := p.Process(context.Background(), []byte(`{"event":"PAYMENT_OVERDUE","payment":{"id":"pay_1","status":"OVERDUE"}}`))

	require.NoError(t, err)
	cobrancas.AssertExpectations(t)
	pending.AssertNotCalled(t, "GetByPaymentID", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_UntrackedChargeIsNotAnError(t *testing.T) {
	pending := new(MockPendingRepository)
	cobrancas := new(MockCobrancaRepository)
	p := newProcessor(pending, cobrancas, new(MockPendingProcessor))

	cobrancas.On("UpdateStatusByPaymentID", mock.Anything, "pay_x", models.CobrancaReceived).Return(models.ErrNotFound)
	pending.On("GetByPaymentID", mock.Anything, mock.Anything, "pay_x").Return(nil, models.ErrNotFound)

	err := p.Process(context.Background(), []byte(`{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_x","status":"RECEIVED"}}`))

	require.NoError(t, err)
}

func TestProcess_ConfirmationReleasesPendingRecord(t *testing.T) {
	pending := new(MockPendingRepository)
	cobrancas := new(MockCobrancaRepository)
	proc := new(MockPendingProcessor)
	p := newProcessor(pending, cobrancas, proc)

	rec := &models.PendingRecord{
		ID:           "rec_1",
		Variant:      models.VariantSubscription,
		PaymentID:    "pay_1",
		Status:       models.PendingStatusPending,
		Subscription: &models.SubscriptionPayload{PlanID: "plan_1"},
	}

	cobrancas.On("UpdateStatusByPaymentID", mock.Anything, "pay_1", models.CobrancaConfirmed).Return(nil)
	pending.On("GetByPaymentID", mock.Anything, models.VariantSubscription, "pay_1").Return(rec, nil)
	pending.On("GetByPaymentID", mock.Anything, models.VariantCompletion, "pay_1").Return(nil, models.ErrNotFound)
	pending.On("GetByID", mock.Anything, "rec_1").Return(rec, nil)
	proc.On("CompleteSubscription", mock.Anything, rec).Return(nil)
	pending.On("Update", mock.Anything, rec).Return(nil)

	err := p.Process(context.Background(), []byte(`{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1","status":"CONFIRMED"}}`))

	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusCompleted, rec.Status)
}

func TestProcess_FailedReleasePropagates(t *testing.T) {
	pending := new(MockPendingRepository)
	cobrancas := new(MockCobrancaRepository)
	proc := new(MockPendingProcessor)
	p := newProcessor(pending, cobrancas, proc)

	rec := &models.PendingRecord{
		ID:           "rec_1",
		Variant:      models.VariantSubscription,
		PaymentID:    "pay_1",
		Status:       models.PendingStatusPending,
		Subscription: &models.SubscriptionPayload{PlanID: "plan_1"},
	}

	cobrancas.On("UpdateStatusByPaymentID", mock.Anything, "pay_1", models.CobrancaConfirmed).Return(nil)
	pending.On("GetByPaymentID", mock.Anything, models.VariantSubscription, "pay_1").Return(rec, nil)
	pending.On("GetByID", mock.Anything, "rec_1").Return(rec, nil)
	proc.On("CompleteSubscription", mock.Anything, rec).Return(errors.New("gateway timeout"))
	pending.On("Update", mock.Anything, rec).Return(nil)

	err := p.Process(context.Background(), []byte(`{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1","status":"CONFIRMED"}}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "complete pending record rec_1")
}

func TestProcess_AlreadyCompletedRecordIsSkipped(t *testing.T) {
	pending := new(MockPendingRepository)
	cobrancas := new(MockCobrancaRepository)
	proc := new(MockPendingProcessor)
	p := newProcessor(pending, cobrancas, proc)

	rec := &models.PendingRecord{
		ID:        "rec_1",
		Variant:   models.VariantSubscription,
		PaymentID: "pay_1",
		Status:    models.PendingStatusCompleted,
	}

	cobrancas.On("UpdateStatusByPaymentID", mock.Anything, "pay_1", models.CobrancaConfirmed).Return(nil)
	pending.On("GetByPaymentID", mock.Anything, models.VariantSubscription, "pay_1").Return(rec, nil)
	pending.On("GetByPaymentID", mock.Anything, models.VariantCompletion, "pay_1").Return(nil, models.ErrNotFound)

	err := p.Process(context.Background(), []byte(`{"event":"PAYMENT_CONFIRMED","payment":{"id":"pay_1","status":"CONFIRMED"}}`))

	require.NoError(t, err)
	proc.AssertNotCalled(t, "CompleteSubscription", mock.Anything, mock.Anything)
}
