package scheduler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/autodca/autodca-backend/internal/domain"
	"github.com/autodca/autodca-backend/internal/usecase/executor"
)

const bpsDenominator = 10000

// Worker periodically scans for due vaults and drives the execution
// coordinator for each one, using the session key the vault is bound to.
type Worker struct {
	Vaults      domain.VaultRepository
	Keys        domain.SessionKeyRepository
	Coordinator *executor.Coordinator
	Quoter      domain.Quoter
	Clock       domain.Clock
	Logger      *zap.Logger

	// Interval between scans; SlippageBps is the tolerated shortfall applied
	// to the quote when deriving the minimum-output guard (100 = 1%).
	Interval    time.Duration
	SlippageBps int64
}

// NewWorker creates a new scheduler worker instance
func NewWorker(
	vaults domain.VaultRepository,
	keys domain.SessionKeyRepository,
	coordinator *executor.Coordinator,
	quoter domain.Quoter,
	clock domain.Clock,
	logger *zap.Logger,
	interval time.Duration,
	slippageBps int64,
) *Worker {
	return &Worker{
		Vaults:      vaults,
		Keys:        keys,
		Coordinator: coordinator,
		Quoter:      quoter,
		Clock:       clock,
		Logger:      logger,
		Interval:    interval,
		SlippageBps: slippageBps,
	}
}

// Run scans on every tick until the context is cancelled. Per-vault failures
// are logged and never stop the loop.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.Logger.Info("scheduler started",
		zap.Duration("interval", w.Interval),
		zap.Int64("slippage_bps", w.SlippageBps),
	)

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes all currently due vaults and returns the number of
// successful cycles.
func (w *Worker) RunOnce(ctx context.Context) int {
	now := w.Clock.Now()

	due, err := w.Vaults.ListDue(ctx, now)
	if err != nil {
		w.Logger.Error("failed to list due vaults", zap.Error(err))
		return 0
	}

	if len(due) == 0 {
		return 0
	}

	w.Logger.Info("found due vaults", zap.Int("count", len(due)))

	succeeded := 0
	for _, vault := range due {
		executed, err := w.executeVault(ctx, vault)
		if err != nil {
			w.Logger.Error("cycle execution failed",
				zap.String("vault_id", vault.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if executed {
			succeeded++
		}
	}

	return succeeded
}

func (w *Worker) executeVault(ctx context.Context, vault *domain.Vault) (bool, error) {
	if vault.SessionKeyID == nil {
		// Unbound vaults are only executed via explicit API requests
		w.Logger.Debug("skipping vault without bound session key",
			zap.String("vault_id", vault.ID.String()))
		return false, nil
	}

	key, err := w.Keys.GetByID(ctx, *vault.SessionKeyID)
	if err != nil {
		return false, err
	}

	minOut, err := w.minAmountOut(ctx, vault)
	if err != nil {
		return false, err
	}

	result, err := w.Coordinator.ExecuteCycle(ctx, executor.Input{
		VaultID:      vault.ID,
		SessionKeyID: key.ID,
		Caller:       key.Delegate,
		MinAmountOut: minOut,
	})
	if err != nil {
		return false, err
	}

	w.Logger.Info("cycle executed",
		zap.String("vault_id", vault.ID.String()),
		zap.Uint32("cycle", result.Execution.Cycle),
		zap.String("amount_in", result.Execution.AmountIn.String()),
		zap.String("amount_out", result.AmountReceived.String()),
	)
	return true, nil
}

// minAmountOut quotes the swap and applies the slippage tolerance
func (w *Worker) minAmountOut(ctx context.Context, vault *domain.Vault) (decimal.Decimal, error) {
	quote, err := w.Quoter.Quote(ctx, vault.SourceAsset, vault.DestAsset, vault.AmountPerCycle)
	if err != nil {
		return decimal.Zero, err
	}

	tolerance := decimal.NewFromInt(bpsDenominator - w.SlippageBps).
		Div(decimal.NewFromInt(bpsDenominator))
	return quote.Mul(tolerance), nil
}
