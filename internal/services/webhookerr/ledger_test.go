package webhookerr_test

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
	"github.com/portalclube/payment-reconciler/internal/services/webhookerr"
)

// MockWebhookErrorRepository mocks the webhook error repository
type MockWebhookErrorRepository struct {
	mock.Mock
}

func (m *MockWebhookErrorRepository) Create(ctx context.Context, we *models.WebhookError) error {
	args := m.Called(ctx, we)
	return args.Error(0)
}

func (m *MockWebhookErrorRepository) GetByID(ctx context.Context, id string) (*models.WebhookError, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WebhookError), args.Error(1)
}

func (m *MockWebhookErrorRepository) ListUnresolved(ctx context.Context, since time.Time, limit int32) ([]*models.WebhookError, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WebhookError), args.Error(1)
}

func (m *MockWebhookErrorRepository) Update(ctx context.Context, we *models.WebhookError) error {
	args := m.Called(ctx, we)
	return args.Error(0)
}

func (m *MockWebhookErrorRepository) CountUnresolved(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockWebhookProcessor mocks the webhook processing routine
type MockWebhookProcessor struct {
	mock.Mock
}

func (m *MockWebhookProcessor) Process(ctx context.Context, payload []byte) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func newLedger(repo *MockWebhookErrorRepository, proc *MockWebhookProcessor) *webhookerr.Ledger {
	return webhookerr.NewLedger(repo, proc, zap.NewNop(), metrics.Registry("test"))
}

func TestRecord_PersistsEntryWithPayload(t *testing.T) {
	repo := new(MockWebhookErrorRepository)
	proc := new(MockWebhookProcessor)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	ledger := newLedger(repo, proc)
	payload := []byte(`{"event":"PAYMENT_CONFIRMED"}`)

	we, err := ledger.Record(context.Background(), "pay_1", errors.New("parse failure"), "stack trace", payload)

	require.NoError(t, err)
	assert.NotEmpty(t, we.ID)
	assert.Equal(t, "pay_1", we.PaymentID)
	assert.Equal(t, "parse failure", we.ErrorMessage)
	assert.Equal(t, payload, we.Payload)
	assert.False(t, we.Resolved)
	assert.Zero(t, we.RetryCount)
}

func TestRecord_FailLoudOnLedgerWriteFailure(t *testing.T) {
	repo := new(MockWebhookErrorRepository)
	proc := new(MockWebhookProcessor)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	ledger := newLedger(repo, proc)
	_, err := ledger.Record(context.Background(), "pay_1", errors.New("boom"), "", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRetry_SuccessResolvesWithoutIncrementingCount(t *testing.T) {
	repo := new(MockWebhookErrorRepository)
	proc := new(MockWebhookProcessor)

	we := &models.WebhookError{ID: "we_1", PaymentID: "pay_1", Payload: []byte(`{}`), RetryCount: 2}
	repo.On("GetByID", mock.Anything, "we_1").Return(we, nil)
	proc.On("Process", mock.Anything, we.Payload).Return(nil)
	repo.On("Update", mock.Anything, we).Return(nil)

	ledger := newLedger(repo, proc)
	resolved, err := ledger.Retry(context.Background(), "we_1")

	require.NoError(t, err)
	assert.True(t, resolved)
	assert.True(t, we.Resolved)
	assert.NotNil(t, we.ResolvedAt)
	assert.Equal(t, 2, we.RetryCount, "a successful retry must not consume a retry")
}

func TestRetry_FailureIncrementsCountAndStampsTime(t *testing.T) {
	repo := new(MockWebhookErrorRepository)
	proc := new(MockWebhookProcessor)

	we := &models.WebhookError{ID: "we_1", PaymentID: "pay_1", Payload: []byte(`{}`)}
	repo.On("GetByID", mock.Anything, "we_1").Return(we, nil)
	proc.On("Process", mock.Anything, we.Payload).Return(errors.New("still broken"))
	repo.On("Update", mock.Anything, we).Return(nil)

	ledger := newLedger(repo, proc)
	resolved, err := ledger.Retry(context.Background(), "we_1")

	require.NoError(t, err)
	assert.False(t, resolved)
	assert.False(t, we.Resolved)
	assert.Equal(t, 1, we.RetryCount)
	assert.NotNil(t, we.LastRetryAt)
}

func TestRetry_AlreadyResolvedSkipsProcessing(t *testing.T) {
	repo := new(MockWebhookErrorRepository)
	proc := new(MockWebhookProcessor)

	we := &models.WebhookError{ID: "we_1", Resolved: true}
	repo.On("GetByID", mock.Anything, "we_1").Return(we, nil)

	ledger := newLedger(repo, proc)
	resolved, err := ledger.Retry(context.Background(), "we_1")

	require.NoError(t, err)
	assert.True(t, resolved)
	proc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestMarkResolved_IsMonotonic(t *testing.T) {
	repo := new(MockWebhookErrorRepository)
	proc := new(MockWebhookProcessor)

	resolvedAt := time.Now().Add(-time.Hour)
	we := &models.WebhookError{ID: "we_1", Resolved: true, ResolvedAt: &resolvedAt}
	repo.On("GetByID", mock.Anything, "we_1").Return(we, nil)

	ledger := newLedger(repo, proc)
	err := ledger.MarkResolved(context.Background(), "we_1")

	require.NoError(t, err)
	assert.Equal(t, resolvedAt, *we.ResolvedAt, "resolution timestamp must not move")
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestMarkResolved_WithoutReprocessing(t *testing.T) {
	repo := new(MockWebhookErrorRepository)
	proc := new(MockWebhookProcessor)

	we := &models.WebhookError{ID: "we_1", PaymentID: "pay_1"}
	repo.On("GetByID", mock.Anything, "we_1").Return(we, nil)
	repo.On("Update", mock.Anything, we).Return(nil)

	ledger := newLedger(repo, proc)
	err := ledger.MarkResolved(context.Background(), "we_1")

	require.NoError(t, err)
	assert.True(t, we.Resolved)
	assert.NotNil(t, we.ResolvedAt)
	proc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}
