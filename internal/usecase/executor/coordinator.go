package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/autodca/autodca-backend/internal/domain"
)

// Input represents one delegate-initiated cycle execution attempt
type Input struct {
	VaultID      uuid.UUID
	SessionKeyID uuid.UUID
	Caller       string
	MinAmountOut decimal.Decimal
}

// Result reports the committed outcome of a successful cycle
type Result struct {
	Vault          *domain.Vault
	Execution      *domain.Execution
	AmountReceived decimal.Decimal
}

// Coordinator binds session key authorization to vault cycle execution.
// Authorization is evaluated as part of the same attempt as the cycle, spend
// is committed only when the cycle fully succeeds, and no funds move before
// authorization passes.
type Coordinator struct {
	Vaults    domain.VaultRepository
	Keys      domain.SessionKeyRepository
	Committer domain.CycleCommitter
	Transfer  domain.AssetTransferService
	Clock     domain.Clock
	Notifier  domain.NotificationSink

	// one mutex per vault so racing delegates cannot both observe a due
	// schedule and both move funds for the same cycle
	locks sync.Map
}

// NewCoordinator creates a new execution coordinator instance
func NewCoordinator(
	vaults domain.VaultRepository,
	keys domain.SessionKeyRepository,
	committer domain.CycleCommitter,
	transfer domain.AssetTransferService,
	clock domain.Clock,
	notifier domain.NotificationSink,
) *Coordinator {
	return &Coordinator{
		Vaults:    vaults,
		Keys:      keys,
		Committer: committer,
		Transfer:  transfer,
		Clock:     clock,
		Notifier:  notifier,
	}
}

// ExecuteCycle runs one vault cycle under the session key's authorization.
// Logic:
//  1. Serialize on the vault's mutex, then load state
//  2. Vault preconditions: schedule, cycle budget, status, custody balance
//  3. Session key check (caller is delegate, limits, expiry, target scope)
//     WITHOUT committing the spend
//  4. Read destination balance, move AmountPerCycle custody -> exchange
//     target, re-read destination balance
//  5. Enforce the minimum-output guard. On a shortfall the outbound amount
//     has already left custody and is not reversed: the custody debit and a
//     failed execution record are committed, nothing else changes
//  6. On success commit vault state, spent counter, and the execution record
//     in one storage transaction, then emit events
func (c *Coordinator) ExecuteCycle(ctx context.Context, input Input) (*Result, error) {
	mu := c.vaultLock(input.VaultID)
	mu.Lock()
	defer mu.Unlock()

	now := c.Clock.Now()

	vault, err := c.Vaults.GetByID(ctx, input.VaultID)
	if err != nil {
		return nil, err
	}

	if err := vault.CheckExecutable(now); err != nil {
		return nil, err
	}

	key, err := c.Keys.GetByID(ctx, input.SessionKeyID)
	if err != nil {
		return nil, err
	}

	if key.Owner != vault.Owner {
		return nil, domain.ErrUnauthorized
	}

	if key.Delegate != input.Caller {
		return nil, domain.ErrUnauthorized
	}

	// Authorization check only; the spend is committed after the cycle
	// succeeds
	if err := key.CheckAuthorization(vault.ExchangeTarget, vault.AmountPerCycle, now); err != nil {
		return nil, err
	}

	before, err := c.Transfer.Balance(ctx, vault.DestinationAccount, vault.DestAsset)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination balance: %w", err)
	}

	// Irreversible from here: a transfer error aborts with no state change,
	// but once MoveFunds returns nil the amount has left custody
	if err := c.Transfer.MoveFunds(ctx, vault.CustodyAccount, vault.ExchangeTarget, vault.SourceAsset, vault.AmountPerCycle); err != nil {
		return nil, fmt.Errorf("failed to transfer cycle amount: %w", err)
	}

	after, err := c.Transfer.Balance(ctx, vault.DestinationAccount, vault.DestAsset)
	if err != nil {
		return nil, fmt.Errorf("failed to read destination balance after swap: %w", err)
	}

	received := after.Sub(before)
	if received.IsNegative() {
		received = decimal.Zero
	}

	if received.LessThan(input.MinAmountOut) {
		slippageErr := fmt.Errorf("%w: received %s, minimum %s",
			domain.ErrSlippageExceeded, received.String(), input.MinAmountOut.String())

		vault.ApplyFailedTransferOut()
		exec := &domain.Execution{
			ID:         uuid.New(),
			VaultID:    vault.ID,
			Cycle:      vault.ExecutedCycles + 1,
			AmountIn:   vault.AmountPerCycle,
			AmountOut:  received,
			Status:     domain.ExecutionStatusFailed,
			Error:      slippageErr.Error(),
			ExecutedAt: now,
		}

		// No session key spend on failure
		if err := c.Committer.CommitCycle(ctx, vault, nil, exec); err != nil {
			return nil, fmt.Errorf("failed to record slippage failure: %w", err)
		}

		return nil, slippageErr
	}

	statusBefore := vault.Status
	vault.ApplyCycle(received, now)
	key.RecordSpend(vault.AmountPerCycle)

	exec := &domain.Execution{
		ID:         uuid.New(),
		VaultID:    vault.ID,
		Cycle:      vault.ExecutedCycles,
		AmountIn:   vault.AmountPerCycle,
		AmountOut:  received,
		Status:     domain.ExecutionStatusSuccess,
		ExecutedAt: now,
	}

	if err := c.Committer.CommitCycle(ctx, vault, key, exec); err != nil {
		return nil, fmt.Errorf("failed to commit cycle: %w", err)
	}

	c.emit(domain.Event{
		Kind:      domain.EventCycleExecuted,
		VaultID:   vault.ID,
		Cycle:     vault.ExecutedCycles,
		AmountIn:  vault.AmountPerCycle,
		AmountOut: received,
		Timestamp: now,
	})

	if vault.Status != statusBefore {
		c.emit(domain.Event{
			Kind:      domain.EventVaultStatusChanged,
			VaultID:   vault.ID,
			OldStatus: statusBefore,
			NewStatus: vault.Status,
			Timestamp: now,
		})
	}

	return &Result{Vault: vault, Execution: exec, AmountReceived: received}, nil
}

func (c *Coordinator) vaultLock(id uuid.UUID) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (c *Coordinator) emit(event domain.Event) {
	if c.Notifier == nil {
		return
	}
	c.Notifier.Emit(event)
}
