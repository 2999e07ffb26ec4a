package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/autodca/autodca-backend/internal/domain"
)

// CreateInput represents the input for creating a DCA vault
type CreateInput struct {
	Owner            string
	SourceAsset      string
	DestAsset        string
	AmountPerCycle   decimal.Decimal
	FrequencySeconds int64
	TotalCycles      uint32
	ExchangeTarget   string
	SessionKeyID     *uuid.UUID
}

// Service handles vault lifecycle operations
type Service struct {
	Vaults   domain.VaultRepository
	Transfer domain.AssetTransferService
	Clock    domain.Clock
	Notifier domain.NotificationSink
}

// NewService creates a new vault service instance
func NewService(
	vaults domain.VaultRepository,
	transfer domain.AssetTransferService,
	clock domain.Clock,
	notifier domain.NotificationSink,
) *Service {
	return &Service{
		Vaults:   vaults,
		Transfer: transfer,
		Clock:    clock,
		Notifier: notifier,
	}
}

// Create initializes a new vault in Active status with an empty custody
// balance and the first execution one full interval away.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Vault, error) {
	if input.Owner == "" {
		return nil, errors.New("owner is required")
	}

	if input.SourceAsset == "" || input.DestAsset == "" {
		return nil, errors.New("source and destination assets are required")
	}

	if input.SourceAsset == input.DestAsset {
		return nil, errors.New("source and destination assets must differ")
	}

	if input.AmountPerCycle.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("amount per cycle must be positive")
	}

	if input.FrequencySeconds <= 0 {
		return nil, errors.New("frequency must be positive")
	}

	if input.TotalCycles == 0 {
		return nil, errors.New("total cycles must be positive")
	}

	if input.ExchangeTarget == "" {
		return nil, errors.New("exchange target is required")
	}

	now := s.Clock.Now()
	id := uuid.New()

	vault := &domain.Vault{
		ID:                 id,
		Owner:              input.Owner,
		SourceAsset:        input.SourceAsset,
		DestAsset:          input.DestAsset,
		AmountPerCycle:     input.AmountPerCycle,
		FrequencySeconds:   input.FrequencySeconds,
		TotalCycles:        input.TotalCycles,
		ExecutedCycles:     0,
		CustodyBalance:     decimal.Zero,
		TotalDeposited:     decimal.Zero,
		TotalReceived:      decimal.Zero,
		LastExecution:      now,
		NextExecution:      now.Add(time.Duration(input.FrequencySeconds) * time.Second),
		Status:             domain.VaultStatusActive,
		CustodyAccount:     fmt.Sprintf("vault:%s:custody", id),
		DestinationAccount: fmt.Sprintf("vault:%s:dest", id),
		ExchangeTarget:     input.ExchangeTarget,
		SessionKeyID:       input.SessionKeyID,
	}

	if err := s.Vaults.Create(ctx, vault); err != nil {
		return nil, err
	}

	return vault, nil
}

// Deposit moves funds from the owner's account into vault custody.
// Logic:
//  1. Owner check, positive amount, vault must be Active
//  2. Transfer owner -> custody account (all-or-nothing)
//  3. Credit custody balance and total deposited
func (s *Service) Deposit(ctx context.Context, vaultID uuid.UUID, caller string, amount decimal.Decimal) (*domain.Vault, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("deposit amount must be positive")
	}

	vault, err := s.Vaults.GetByID(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	if vault.Owner != caller {
		return nil, domain.ErrUnauthorized
	}

	if vault.Status != domain.VaultStatusActive {
		return nil, domain.ErrVaultNotActive
	}

	if err := s.Transfer.MoveFunds(ctx, caller, vault.CustodyAccount, vault.SourceAsset, amount); err != nil {
		return nil, fmt.Errorf("failed to transfer deposit: %w", err)
	}

	if err := vault.Deposit(amount); err != nil {
		return nil, err
	}

	if err := s.Vaults.Update(ctx, vault); err != nil {
		return nil, err
	}

	return vault, nil
}

// Pause suspends a vault's schedule. Owner-only.
func (s *Service) Pause(ctx context.Context, vaultID uuid.UUID, caller string) (*domain.Vault, error) {
	vault, err := s.Vaults.GetByID(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	if vault.Owner != caller {
		return nil, domain.ErrUnauthorized
	}

	if err := vault.Pause(); err != nil {
		return nil, err
	}

	if err := s.Vaults.Update(ctx, vault); err != nil {
		return nil, err
	}

	s.emitStatusChange(vault, domain.VaultStatusActive)
	return vault, nil
}

// Resume reactivates a paused vault and recomputes the next execution from now
func (s *Service) Resume(ctx context.Context, vaultID uuid.UUID, caller string) (*domain.Vault, error) {
	vault, err := s.Vaults.GetByID(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	if vault.Owner != caller {
		return nil, domain.ErrUnauthorized
	}

	if err := vault.Resume(s.Clock.Now()); err != nil {
		return nil, err
	}

	if err := s.Vaults.Update(ctx, vault); err != nil {
		return nil, err
	}

	s.emitStatusChange(vault, domain.VaultStatusPaused)
	return vault, nil
}

// Close cancels a vault from any status, returning residual custody funds to
// the owner before the record is removed. The residual amount is reported
// back to the caller.
func (s *Service) Close(ctx context.Context, vaultID uuid.UUID, caller string) (decimal.Decimal, error) {
	vault, err := s.Vaults.GetByID(ctx, vaultID)
	if err != nil {
		return decimal.Zero, err
	}

	if vault.Owner != caller {
		return decimal.Zero, domain.ErrUnauthorized
	}

	residual := vault.CustodyBalance
	if residual.GreaterThan(decimal.Zero) {
		if err := s.Transfer.MoveFunds(ctx, vault.CustodyAccount, vault.Owner, vault.SourceAsset, residual); err != nil {
			return decimal.Zero, fmt.Errorf("failed to return custody funds: %w", err)
		}
	}

	oldStatus := vault.Status
	vault.Status = domain.VaultStatusCancelled
	if err := s.Vaults.Delete(ctx, vaultID); err != nil {
		return decimal.Zero, err
	}

	s.emitStatusChange(vault, oldStatus)
	return residual, nil
}

// Get retrieves a vault. Owner-only.
func (s *Service) Get(ctx context.Context, vaultID uuid.UUID, caller string) (*domain.Vault, error) {
	vault, err := s.Vaults.GetByID(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	if vault.Owner != caller {
		return nil, domain.ErrUnauthorized
	}

	return vault, nil
}

// ListByOwner retrieves all vaults belonging to the caller
func (s *Service) ListByOwner(ctx context.Context, owner string) ([]*domain.Vault, error) {
	return s.Vaults.ListByOwner(ctx, owner)
}

func (s *Service) emitStatusChange(vault *domain.Vault, oldStatus domain.VaultStatus) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Emit(domain.Event{
		Kind:      domain.EventVaultStatusChanged,
		VaultID:   vault.ID,
		OldStatus: oldStatus,
		NewStatus: vault.Status,
		Timestamp: s.Clock.Now(),
	})
}
