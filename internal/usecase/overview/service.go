package overview

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/autodca/autodca-backend/internal/domain"
)

// PortfolioResult represents an owner's aggregate DCA position
type PortfolioResult struct {
	ActiveVaults    int
	TotalVaults     int
	CustodyTotal    decimal.Decimal
	TotalDeposited  decimal.Decimal
	TotalReceived   decimal.Decimal
	CyclesExecuted  uint32
	CyclesRemaining uint32
}

// Service handles portfolio overview operations
type Service struct {
	Vaults domain.VaultRepository
	Keys   domain.SessionKeyRepository
}

// NewService creates a new overview service instance
func NewService(vaults domain.VaultRepository, keys domain.SessionKeyRepository) *Service {
	return &Service{Vaults: vaults, Keys: keys}
}

// GetPortfolio aggregates all of an owner's vaults into one position view.
// Logic:
//   - CustodyTotal: sum of custody balances still awaiting scheduled movement
//   - TotalDeposited / TotalReceived: cumulative over all vaults
//   - CyclesRemaining: scheduled cycles not yet executed across the portfolio
func (s *Service) GetPortfolio(ctx context.Context, owner string) (*PortfolioResult, error) {
	vaults, err := s.Vaults.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list vaults: %w", err)
	}

	result := &PortfolioResult{
		TotalVaults:    len(vaults),
		CustodyTotal:   decimal.Zero,
		TotalDeposited: decimal.Zero,
		TotalReceived:  decimal.Zero,
	}

	for _, v := range vaults {
		if v.Status == domain.VaultStatusActive {
			result.ActiveVaults++
		}
		result.CustodyTotal = result.CustodyTotal.Add(v.CustodyBalance)
		result.TotalDeposited = result.TotalDeposited.Add(v.TotalDeposited)
		result.TotalReceived = result.TotalReceived.Add(v.TotalReceived)
		result.CyclesExecuted += v.ExecutedCycles
		result.CyclesRemaining += v.TotalCycles - v.ExecutedCycles
	}

	return result, nil
}
