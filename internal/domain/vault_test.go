package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &Vault{
		ID:               uuid.New(),
		Owner:            "owner-wallet",
		SourceAsset:      "USDC",
		DestAsset:        "SOL",
		AmountPerCycle:   decimal.NewFromInt(100),
		FrequencySeconds: 3600,
		TotalCycles:      3,
		ExecutedCycles:   0,
		CustodyBalance:   decimal.NewFromInt(300),
		TotalDeposited:   decimal.NewFromInt(300),
		TotalReceived:    decimal.Zero,
		LastExecution:    created,
		NextExecution:    created.Add(time.Hour),
		Status:           VaultStatusActive,
		ExchangeTarget:   "jupiter",
	}
}

func TestVault_CheckExecutable(t *testing.T) {
	due := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		setup   func(v *Vault)
		at      time.Time
		wantErr error
	}{
		{
			name: "due active funded vault passes",
			at:   due,
		},
		{
			name: "exactly at next execution passes",
			at:   due, // NextExecution itself, boundary is inclusive
		},
		{
			name:    "before schedule fails",
			at:      due.Add(-time.Minute),
			wantErr: ErrTooEarlyToExecute,
		},
		{
			name:    "exhausted cycles fail",
			setup:   func(v *Vault) { v.ExecutedCycles = v.TotalCycles },
			at:      due,
			wantErr: ErrAllCyclesCompleted,
		},
		{
			name:    "paused vault fails",
			setup:   func(v *Vault) { v.Status = VaultStatusPaused },
			at:      due,
			wantErr: ErrVaultNotActive,
		},
		{
			name:    "completed vault fails on cycle budget first",
			setup:   func(v *Vault) { v.ExecutedCycles = 3; v.Status = VaultStatusCompleted },
			at:      due,
			wantErr: ErrAllCyclesCompleted,
		},
		{
			name:    "underfunded custody fails",
			setup:   func(v *Vault) { v.CustodyBalance = decimal.NewFromInt(99) },
			at:      due,
			wantErr: ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vault := newTestVault(t)
			if tt.setup != nil {
				tt.setup(vault)
			}

			err := vault.CheckExecutable(tt.at)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVault_ApplyCycle_AdvancesScheduleAndCompletes(t *testing.T) {
	vault := newTestVault(t)
	execAt := vault.NextExecution.Add(5 * time.Minute)

	vault.ApplyCycle(decimal.NewFromInt(95), execAt)

	assert.Equal(t, uint32(1), vault.ExecutedCycles)
	assert.True(t, vault.CustodyBalance.Equal(decimal.NewFromInt(200)))
	assert.True(t, vault.TotalReceived.Equal(decimal.NewFromInt(95)))
	assert.Equal(t, execAt, vault.LastExecution)
	assert.Equal(t, execAt.Add(time.Hour), vault.NextExecution)
	assert.Equal(t, VaultStatusActive, vault.Status)

	// Run the remaining two cycles; the last one completes the vault
	vault.ApplyCycle(decimal.NewFromInt(93), execAt.Add(time.Hour))
	vault.ApplyCycle(decimal.NewFromInt(97), execAt.Add(2*time.Hour))

	assert.Equal(t, uint32(3), vault.ExecutedCycles)
	assert.Equal(t, VaultStatusCompleted, vault.Status)
	assert.True(t, vault.TotalReceived.Equal(decimal.NewFromInt(285)))
	assert.True(t, vault.CustodyBalance.Equal(decimal.Zero))
}

func TestVault_ApplyFailedTransferOut_DebitsCustodyOnly(t *testing.T) {
	vault := newTestVault(t)
	scheduleBefore := vault.NextExecution

	vault.ApplyFailedTransferOut()

	// Funds left custody but nothing else moved
	assert.True(t, vault.CustodyBalance.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, uint32(0), vault.ExecutedCycles)
	assert.True(t, vault.TotalReceived.Equal(decimal.Zero))
	assert.Equal(t, scheduleBefore, vault.NextExecution)
}

func TestVault_Deposit(t *testing.T) {
	vault := newTestVault(t)

	assert.NoError(t, vault.Deposit(decimal.NewFromInt(50)))
	assert.True(t, vault.CustodyBalance.Equal(decimal.NewFromInt(350)))
	assert.True(t, vault.TotalDeposited.Equal(decimal.NewFromInt(350)))

	// Deposits are rejected while paused; balances unchanged
	vault.Status = VaultStatusPaused
	err := vault.Deposit(decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrVaultNotActive)
	assert.True(t, vault.CustodyBalance.Equal(decimal.NewFromInt(350)))
	assert.True(t, vault.TotalDeposited.Equal(decimal.NewFromInt(350)))
}

func TestVault_PauseResume(t *testing.T) {
	vault := newTestVault(t)

	assert.NoError(t, vault.Pause())
	assert.Equal(t, VaultStatusPaused, vault.Status)

	// Pausing twice fails
	assert.ErrorIs(t, vault.Pause(), ErrVaultNotActive)

	// Resume recomputes the schedule from now
	resumeAt := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	assert.NoError(t, vault.Resume(resumeAt))
	assert.Equal(t, VaultStatusActive, vault.Status)
	assert.Equal(t, resumeAt.Add(time.Hour), vault.NextExecution)

	// Resuming an active vault fails
	assert.ErrorIs(t, vault.Resume(resumeAt), ErrVaultNotPaused)
}
