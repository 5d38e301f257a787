package fallback_test

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

// MockPendingProcessor mocks the completion processor
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

func newStore(repo *MockPendingRepository, proc *MockPendingProcessor) *fallback.Store {
	return fallback.NewStore(repo, proc, zap.NewNop(), metrics.Registry("test"))
}

func subscriptionRecord(id, paymentID string) *models.PendingRecord {
	return &models.PendingRecord{
		ID:           id,
		Variant:      models.VariantSubscription,
		PaymentID:    paymentID,
		Status:       models.PendingStatusPending,
		Subscription: &models.SubscriptionPayload{PlanID: "plan_1"},
		CreatedAt:    time.Now().Add(-time.Hour),
	}
}

func TestStore_AssignsIDAndPersists(t *testing.T) {
	repo := new(MockPendingRepository)
	proc := new(MockPendingProcessor)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	store := newStore(repo, proc)
	rec := &models.PendingRecord{Variant: models.VariantSubscription, PaymentID: "pay_1"}

	id, err := store.Store(context.Background(), rec)

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, models.PendingStatusPending, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestStore_DuplicateReturnsExistingID(t *testing.T) {
	repo := new(MockPendingRepository)
	proc := new(MockPendingProcessor)
	existing := subscriptionRecord("rec_existing", "pay_1")

	repo.On("Create", mock.Anything, mock.Anything).Return(models.ErrDuplicatePending)
	repo.On("GetByPaymentID", mock.Anything, models.VariantSubscription, "pay_1").Return(existing, nil)

	store := newStore(repo, proc)
	id, err := store.Store(context.Background(), &models.PendingRecord{Variant: models.VariantSubscription, PaymentID: "pay_1"})

	require.NoError(t, err)
	assert.Equal(t, "rec_existing", id)
	repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestRetryAll_EachOutcomeIndependent(t *testing.T) {
	repo := new(MockPendingRepository)
	proc := new(MockPendingProcessor)

	good := subscriptionRecord("rec_good", "pay_good")
	bad := subscriptionRecord("rec_bad", "pay_bad")

	repo.On("ListRetryable", mock.Anything, models.VariantSubscription, 5, 10*time.Minute, int32(50)).
		Return([]*models.PendingRecord{good, bad}, nil)
	proc.On("CompleteSubscription", mock.Anything, good).Return(nil)
	proc.On("CompleteSubscription", mock.Anything, bad).Return(errors.New("gateway timeout"))
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	store := newStore(repo, proc)
	outcomes, err := store.RetryAll(context.Background(), models.VariantSubscription, 5, 10*time.Minute, 50)

	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.True(t, outcomes[0].Success)
	assert.Equal(t, models.PendingStatusCompleted, good.Status)
	assert.Empty(t, good.LastError)
	assert.Equal(t, 1, good.Attempts)

	assert.False(t, outcomes[1].Success)
	assert.Equal(t, models.PendingStatusPending, bad.Status)
	assert.Equal(t, "gateway timeout", bad.LastError)
	assert.Equal(t, 1, bad.Attempts)
}

func TestRetryAll_AttemptsIncrementOnEveryTry(t *testing.T) {
	repo := new(MockPendingRepository)
	proc := new(MockPendingProcessor)

	rec := subscriptionRecord("rec_1", "pay_1")
	rec.Attempts = 3

	repo.On("ListRetryable", mock.Anything, models.VariantSubscription, 5, 10*time.Minute, int32(50)).
		Return([]*models.PendingRecord{rec}, nil)
	proc.On("CompleteSubscription", mock.Anything, rec).Return(errors.New("still failing"))
	repo.On("Update", mock.Anything, rec).Return(nil)

	store := newStore(repo, proc)
	_, err := store.RetryAll(context.Background(), models.VariantSubscription, 5, 10*time.Minute, 50)

	require.NoError(t, err)
	assert.Equal(t, 4, rec.Attempts)
}

func TestRetryAll_UpdateFailureFlipsOutcome(t *testing.T) {
	repo := new(MockPendingRepository)
	proc := new(MockPendingProcessor)

	rec := subscriptionRecord("rec_1", "pay_1")

	repo.On("ListRetryable", mock.Anything, models.VariantSubscription, 5, 10*time.Minute, int32(50)).
		Return([]*models.PendingRecord{rec}, nil)
	proc.On("CompleteSubscription", mock.Anything, rec).Return(nil)
	repo.On("Update", mock.Anything, rec).Return(errors.New("write conflict"))

	store := newStore(repo, proc)
	outcomes, err := store.RetryAll(context.Background(), models.VariantSubscription, 5, 10*time.Minute, 50)

	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Equal(t, "write conflict", outcomes[0].Error)
}

func TestManuallyComplete_NotFound(t *testing.T) {
	repo := new(MockPendingRepository)
	proc := new(MockPendingProcessor)
	repo.On("GetByID", mock.Anything, "missing").Return(nil, models.ErrNotFound)

	store := newStore(repo, proc)
	result := store.ManuallyComplete(context.Background(), "missing")

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "não encontrada")
	assert.Contains(t, result.Message, "missing")
}

func TestManuallyComplete_AlreadyCompleted(t *testing.T) {
	repo := new(MockPendingRepository)
	proc := new(MockPendingProcessor)

	rec := subscriptionRecord("rec_done", "pay_1")
	rec.Status = models.PendingStatusCompleted
	repo.On("GetByID", mock.Anything, "rec_done").Return(rec, nil)

	store := newStore(repo, proc)
	result := store.ManuallyComplete(context.Background(), "rec_done")

	assert.True(t, result.Success)
	assert.Equal(t, "transação já concluída", result.Message)
	proc.AssertNotCalled(t, "CompleteSubscription", mock.Anything, mock.Anything)
}

func TestManuallyComplete_Success(t *testing.T) {
	repo := new(MockPendingRepository)
	proc := new(MockPendingProcessor)

	rec := subscriptionRecord("rec_1", "pay_1")
	repo.On("GetByID", mock.Anything, "rec_1").Return(rec, nil)
	proc.On("CompleteSubscription", mock.Anything, rec).Return(nil)
	repo.On("Update", mock.Anything, rec).Return(nil)

	store := newStore(repo, proc)
	result := store.ManuallyComplete(context.Background(), "rec_1")

	assert.True(t, result.Success)
	assert.Equal(t, models.PendingStatusCompleted, rec.Status)
}

func TestMarkFailed_TerminalTransition(t *testing.T) {
	repo := new(MockPendingRepository)
	proc := new(MockPendingProcessor)

	rec := subscriptionRecord("rec_1", "pay_1")
	repo.On("GetByID", mock.Anything, "rec_1").Return(rec, nil)
	repo.On("Update", mock.Anything, rec).Return(nil)

	store := newStore(repo, proc)
	err := store.MarkFailed(context.Background(), "rec_1", "chargeback recebido")

	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusFailed, rec.Status)
	assert.Equal(t, "chargeback recebido", rec.LastError)
}

func TestStats_FailSoftOnRepositoryError(t *testing.T) {
	repo := new(MockPendingRepository)
	proc := new(MockPendingProcessor)
	repo.On("AggregateStats", mock.Anything).Return(nil, errors.New("db down"))

	store := newStore(repo, proc)
	stats := store.Stats(context.Background())

	assert.Equal(t, models.FallbackStats{}, stats)
}

func TestStats_ReturnsAggregates(t *testing.T) {
	repo := new(MockPendingRepository)
	proc := new(MockPendingProcessor)
	repo.On("AggregateStats", mock.Anything).Return(&models.FallbackStats{
		PendingSubscriptions: 3,
		PendingCompletions:   1,
		TotalRetries:         17,
		SuccessRate:          0.85,
	}, nil)

	store := newStore(repo, proc)
	stats := store.Stats(context.Background())

	assert.Equal(t, int64(3), stats.PendingSubscriptions)
	assert.Equal(t, int64(1), stats.PendingCompletions)
	assert.Equal(t, int64(17), stats.TotalRetries)
	assert.InDelta(t, 0.85, stats.SuccessRate, 1e-9)
}
