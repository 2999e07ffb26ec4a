package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/autodca/autodca-backend/internal/domain"
)

// MockVaultRepository is a mock implementation of VaultRepository for testing
type MockVaultRepository struct {
	mock.Mock
}

func (m *MockVaultRepository) Create(ctx context.Context, vault *domain.Vault) error {
	args := m.Called(ctx, vault)
	return args.Error(0)
}

func (m *MockVaultRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vault, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Vault), args.Error(1)
}

func (m *MockVaultRepository) ListByOwner(ctx context.Context, owner string) ([]*domain.Vault, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Vault), args.Error(1)
}

func (m *MockVaultRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.Vault, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Vault), args.Error(1)
}

func (m *MockVaultRepository) Update(ctx context.Context, vault *domain.Vault) error {
	args := m.Called(ctx, vault)
	return args.Error(0)
}

func (m *MockVaultRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockTransferService is a mock implementation of AssetTransferService for testing
type MockTransferService struct {
	mock.Mock
}

func (m *MockTransferService) MoveFunds(ctx context.Context, from, to, asset string, amount decimal.Decimal) error {
	args := m.Called(ctx, from, to, asset, amount)
	return args.Error(0)
}

func (m *MockTransferService) Balance(ctx context.Context, account, asset string) (decimal.Decimal, error) {
	args := m.Called(ctx, account, asset)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// recordingSink collects emitted events
type recordingSink struct {
	events []domain.Event
}

func (s *recordingSink) Emit(event domain.Event) {
	s.events = append(s.events, event)
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func validCreateInput() CreateInput {
	return CreateInput{
		Owner:            "owner-wallet",
		SourceAsset:      "USDC",
		DestAsset:        "SOL",
		AmountPerCycle:   decimal.NewFromInt(100),
		FrequencySeconds: 3600,
		TotalCycles:      3,
		ExchangeTarget:   "jupiter",
	}
}

func newTestService(repo *MockVaultRepository, transfer *MockTransferService, sink *recordingSink) *Service {
	return NewService(repo, transfer, fixedClock{testNow}, sink)
}

func TestCreate_InitializesSchedule(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVaultRepository)
	service := newTestService(mockRepo, new(MockTransferService), &recordingSink{})

	mockRepo.On("Create", ctx, mock.AnythingOfType("*domain.Vault")).Return(nil)

	v, err := service.Create(ctx, validCreateInput())
	assert.NoError(t, err)
	assert.Equal(t, domain.VaultStatusActive, v.Status)
	assert.Equal(t, uint32(0), v.ExecutedCycles)
	assert.True(t, v.CustodyBalance.Equal(decimal.Zero))
	assert.Equal(t, testNow, v.LastExecution)
	assert.Equal(t, testNow.Add(time.Hour), v.NextExecution)
	assert.NotEmpty(t, v.CustodyAccount)
	assert.NotEmpty(t, v.DestinationAccount)

	mockRepo.AssertExpectations(t)
}

func TestCreate_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		modify func(in *CreateInput)
		errMsg string
	}{
		{
			name:   "missing owner",
			modify: func(in *CreateInput) { in.Owner = "" },
			errMsg: "owner is required",
		},
		{
			name:   "same source and destination",
			modify: func(in *CreateInput) { in.DestAsset = in.SourceAsset },
			errMsg: "source and destination assets must differ",
		},
		{
			name:   "zero amount per cycle",
			modify: func(in *CreateInput) { in.AmountPerCycle = decimal.Zero },
			errMsg: "amount per cycle must be positive",
		},
		{
			name:   "zero frequency",
			modify: func(in *CreateInput) { in.FrequencySeconds = 0 },
			errMsg: "frequency must be positive",
		},
		{
			name:   "zero cycles",
			modify: func(in *CreateInput) { in.TotalCycles = 0 },
			errMsg: "total cycles must be positive",
		},
		{
			name:   "missing exchange target",
			modify: func(in *CreateInput) { in.ExchangeTarget = "" },
			errMsg: "exchange target is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mockRepo := new(MockVaultRepository)
			service := newTestService(mockRepo, new(MockTransferService), &recordingSink{})

			input := validCreateInput()
			tt.modify(&input)

			v, err := service.Create(ctx, input)
			assert.Nil(t, v)
			assert.EqualError(t, err, tt.errMsg)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func storedVault() *domain.Vault {
	return &domain.Vault{
		ID:                 uuid.New(),
		Owner:              "owner-wallet",
		SourceAsset:        "USDC",
		DestAsset:          "SOL",
		AmountPerCycle:     decimal.NewFromInt(100),
		FrequencySeconds:   3600,
		TotalCycles:        3,
		CustodyBalance:     decimal.NewFromInt(250),
		TotalDeposited:     decimal.NewFromInt(250),
		TotalReceived:      decimal.Zero,
		LastExecution:      testNow.Add(-time.Hour),
		NextExecution:      testNow,
		Status:             domain.VaultStatusActive,
		CustodyAccount:     "vault:x:custody",
		DestinationAccount: "vault:x:dest",
		ExchangeTarget:     "jupiter",
	}
}

func TestDeposit_MovesFundsIntoCustody(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVaultRepository)
	mockTransfer := new(MockTransferService)
	service := newTestService(mockRepo, mockTransfer, &recordingSink{})

	v := storedVault()
	mockRepo.On("GetByID", ctx, v.ID).Return(v, nil)
	mockTransfer.On("MoveFunds", ctx, "owner-wallet", v.CustodyAccount, "USDC", decimal.NewFromInt(50)).Return(nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*domain.Vault")).Return(nil)

	updated, err := service.Deposit(ctx, v.ID, "owner-wallet", decimal.NewFromInt(50))
	assert.NoError(t, err)
	assert.True(t, updated.CustodyBalance.Equal(decimal.NewFromInt(300)))
	assert.True(t, updated.TotalDeposited.Equal(decimal.NewFromInt(300)))

	mockRepo.AssertExpectations(t)
	mockTransfer.AssertExpectations(t)
}

func TestDeposit_RejectedWhilePaused(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVaultRepository)
	mockTransfer := new(MockTransferService)
	service := newTestService(mockRepo, mockTransfer, &recordingSink{})

	v := storedVault()
	v.Status = domain.VaultStatusPaused
	mockRepo.On("GetByID", ctx, v.ID).Return(v, nil)

	_, err := service.Deposit(ctx, v.ID, "owner-wallet", decimal.NewFromInt(50))
	assert.ErrorIs(t, err, domain.ErrVaultNotActive)

	// No funds move and nothing persists for a rejected deposit
	mockTransfer.AssertNotCalled(t, "MoveFunds", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDeposit_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVaultRepository)
	mockTransfer := new(MockTransferService)
	service := newTestService(mockRepo, mockTransfer, &recordingSink{})

	v := storedVault()
	mockRepo.On("GetByID", ctx, v.ID).Return(v, nil)

	_, err := service.Deposit(ctx, v.ID, "intruder-wallet", decimal.NewFromInt(50))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	mockTransfer.AssertNotCalled(t, "MoveFunds", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPauseResume_EmitsStatusChanges(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVaultRepository)
	sink := &recordingSink{}
	service := newTestService(mockRepo, new(MockTransferService), sink)

	v := storedVault()
	mockRepo.On("GetByID", ctx, v.ID).Return(v, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*domain.Vault")).Return(nil)

	paused, err := service.Pause(ctx, v.ID, "owner-wallet")
	assert.NoError(t, err)
	assert.Equal(t, domain.VaultStatusPaused, paused.Status)

	resumed, err := service.Resume(ctx, v.ID, "owner-wallet")
	assert.NoError(t, err)
	assert.Equal(t, domain.VaultStatusActive, resumed.Status)
	assert.Equal(t, testNow.Add(time.Hour), resumed.NextExecution)

	assert.Len(t, sink.events, 2)
	assert.Equal(t, domain.EventVaultStatusChanged, sink.events[0].Kind)
	assert.Equal(t, domain.VaultStatusPaused, sink.events[0].NewStatus)
	assert.Equal(t, domain.VaultStatusActive, sink.events[1].NewStatus)
}

func TestClose_ReturnsResidualCustody(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVaultRepository)
	mockTransfer := new(MockTransferService)
	service := newTestService(mockRepo, mockTransfer, &recordingSink{})

	v := storedVault()
	mockRepo.On("GetByID", ctx, v.ID).Return(v, nil)
	mockTransfer.On("MoveFunds", ctx, v.CustodyAccount, "owner-wallet", "USDC", decimal.NewFromInt(250)).Return(nil)
	mockRepo.On("Delete", ctx, v.ID).Return(nil)

	residual, err := service.Close(ctx, v.ID, "owner-wallet")
	assert.NoError(t, err)
	assert.True(t, residual.Equal(decimal.NewFromInt(250)))

	mockRepo.AssertExpectations(t)
	mockTransfer.AssertExpectations(t)
}

func TestClose_PermittedFromPaused(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVaultRepository)
	mockTransfer := new(MockTransferService)
	service := newTestService(mockRepo, mockTransfer, &recordingSink{})

	v := storedVault()
	v.Status = domain.VaultStatusPaused
	mockRepo.On("GetByID", ctx, v.ID).Return(v, nil)
	mockTransfer.On("MoveFunds", ctx, v.CustodyAccount, "owner-wallet", "USDC", decimal.NewFromInt(250)).Return(nil)
	mockRepo.On("Delete", ctx, v.ID).Return(nil)

	_, err := service.Close(ctx, v.ID, "owner-wallet")
	assert.NoError(t, err)
}

func TestClose_TransferFailureKeepsVault(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockVaultRepository)
	mockTransfer := new(MockTransferService)
	service := newTestService(mockRepo, mockTransfer, &recordingSink{})

	v := storedVault()
	mockRepo.On("GetByID", ctx, v.ID).Return(v, nil)
	mockTransfer.On("MoveFunds", ctx, v.CustodyAccount, "owner-wallet", "USDC", decimal.NewFromInt(250)).
		Return(errors.New("router unavailable"))

	_, err := service.Close(ctx, v.ID, "owner-wallet")
	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
