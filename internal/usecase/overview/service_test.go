package overview

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autodca/autodca-backend/internal/adapter/repository/memory"
	"github.com/autodca/autodca-backend/internal/domain"
)

func seedVault(t *testing.T, store *memory.Store, owner string, status domain.VaultStatus, custody, deposited, received int64, executed, total uint32) {
	t.Helper()
	vault := &domain.Vault{
		ID:               uuid.New(),
		Owner:            owner,
		SourceAsset:      "USDC",
		DestAsset:        "SOL",
		AmountPerCycle:   decimal.NewFromInt(100),
		FrequencySeconds: 3600,
		TotalCycles:      total,
		ExecutedCycles:   executed,
		CustodyBalance:   decimal.NewFromInt(custody),
		TotalDeposited:   decimal.NewFromInt(deposited),
		TotalReceived:    decimal.NewFromInt(received),
		LastExecution:    time.Now(),
		NextExecution:    time.Now().Add(time.Hour),
		Status:           status,
		ExchangeTarget:   "jupiter",
	}
	require.NoError(t, store.Vaults().Create(context.Background(), vault))
}

func TestGetPortfolio_AggregatesOwnerVaults(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	service := NewService(store.Vaults(), store.SessionKeys())

	seedVault(t, store, "alice", domain.VaultStatusActive, 300, 500, 4, 2, 5)
	seedVault(t, store, "alice", domain.VaultStatusPaused, 100, 200, 2, 1, 3)
	seedVault(t, store, "alice", domain.VaultStatusCompleted, 0, 400, 8, 4, 4)
	seedVault(t, store, "bob", domain.VaultStatusActive, 999, 999, 9, 1, 9)

	result, err := service.GetPortfolio(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalVaults)
	assert.Equal(t, 1, result.ActiveVaults)
	assert.True(t, result.CustodyTotal.Equal(decimal.NewFromInt(400)))
	assert.True(t, result.TotalDeposited.Equal(decimal.NewFromInt(1100)))
	assert.True(t, result.TotalReceived.Equal(decimal.NewFromInt(14)))
	assert.Equal(t, uint32(7), result.CyclesExecuted)
	assert.Equal(t, uint32(5), result.CyclesRemaining)
}

func TestGetPortfolio_EmptyPortfolio(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	service := NewService(store.Vaults(), store.SessionKeys())

	result, err := service.GetPortfolio(ctx, "nobody")
	require.NoError(t, err)

	assert.Equal(t, 0, result.TotalVaults)
	assert.Equal(t, 0, result.ActiveVaults)
	assert.True(t, result.CustodyTotal.Equal(decimal.Zero))
	assert.Equal(t, uint32(0), result.CyclesRemaining)
}
