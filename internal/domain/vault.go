package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VaultStatus represents the lifecycle state of a DCA vault
type VaultStatus string

const (
	VaultStatusActive    VaultStatus = "ACTIVE"
	VaultStatusPaused    VaultStatus = "PAUSED"
	VaultStatusCompleted VaultStatus = "COMPLETED"
	VaultStatusCancelled VaultStatus = "CANCELLED"
)

// Vault represents a scheduled recurring-swap vault in the domain layer.
// Custody holds deposited source-asset funds; each cycle moves AmountPerCycle
// out toward the exchange target and credits the destination account.
type Vault struct {
	ID               uuid.UUID
	Owner            string
	SourceAsset      string
	DestAsset        string
	AmountPerCycle   decimal.Decimal
	FrequencySeconds int64
	TotalCycles      uint32
	ExecutedCycles   uint32

	CustodyBalance decimal.Decimal
	TotalDeposited decimal.Decimal
	TotalReceived  decimal.Decimal

	LastExecution time.Time
	NextExecution time.Time
	Status        VaultStatus

	// CustodyAccount and DestinationAccount identify the vault's two fund
	// accounts at the transfer service. ExchangeTarget is the swap router
	// identity outbound funds are sent to; session keys are scoped to it.
	CustodyAccount     string
	DestinationAccount string
	ExchangeTarget     string

	// SessionKeyID binds the vault to the authorization the scheduler uses
	// for delegated execution. Nil means only explicit execution requests
	// (which carry their own session key ID) can drive the vault.
	SessionKeyID *uuid.UUID
}

// Frequency returns the cycle interval as a duration.
func (v *Vault) Frequency() time.Duration {
	return time.Duration(v.FrequencySeconds) * time.Second
}

// CheckExecutable verifies the vault's cycle preconditions at time `now`.
// Check order matches the execution path: schedule, cycle budget, status,
// custody balance.
func (v *Vault) CheckExecutable(now time.Time) error {
	if now.Before(v.NextExecution) {
		return ErrTooEarlyToExecute
	}

	if v.ExecutedCycles >= v.TotalCycles {
		return ErrAllCyclesCompleted
	}

	if v.Status != VaultStatusActive {
		return ErrVaultNotActive
	}

	if v.CustodyBalance.LessThan(v.AmountPerCycle) {
		return ErrInsufficientBalance
	}

	return nil
}

// ApplyCycle commits a successful cycle: custody is debited, counters and
// the schedule advance, and the vault completes when the last cycle lands.
func (v *Vault) ApplyCycle(received decimal.Decimal, now time.Time) {
	v.CustodyBalance = v.CustodyBalance.Sub(v.AmountPerCycle)
	v.ExecutedCycles++
	v.TotalReceived = v.TotalReceived.Add(received)
	v.LastExecution = now
	v.NextExecution = now.Add(v.Frequency())

	if v.ExecutedCycles >= v.TotalCycles {
		v.Status = VaultStatusCompleted
	}
}

// ApplyFailedTransferOut records the irreversible custody debit of a cycle
// whose outbound transfer completed but whose output failed the slippage
// guard. Counters and the schedule do not advance.
func (v *Vault) ApplyFailedTransferOut() {
	v.CustodyBalance = v.CustodyBalance.Sub(v.AmountPerCycle)
}

// Deposit credits custody. Only permitted while the vault is Active.
func (v *Vault) Deposit(amount decimal.Decimal) error {
	if v.Status != VaultStatusActive {
		return ErrVaultNotActive
	}
	v.CustodyBalance = v.CustodyBalance.Add(amount)
	v.TotalDeposited = v.TotalDeposited.Add(amount)
	return nil
}

// Pause suspends execution. Only valid from Active.
func (v *Vault) Pause() error {
	if v.Status != VaultStatusActive {
		return ErrVaultNotActive
	}
	v.Status = VaultStatusPaused
	return nil
}

// Resume reactivates a paused vault and pushes the schedule forward so the
// next cycle is a full interval away.
func (v *Vault) Resume(now time.Time) error {
	if v.Status != VaultStatusPaused {
		return ErrVaultNotPaused
	}
	v.Status = VaultStatusActive
	v.NextExecution = now.Add(v.Frequency())
	return nil
}
