package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecutionStatus represents the outcome of a cycle execution attempt
type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusFailed  ExecutionStatus = "FAILED"
)

// Execution is the per-attempt history record for a vault cycle. A record is
// written for every attempt that reached the transfer phase, including
// slippage failures where the outbound amount left custody.
type Execution struct {
	ID         uuid.UUID
	VaultID    uuid.UUID
	Cycle      uint32
	AmountIn   decimal.Decimal
	AmountOut  decimal.Decimal
	Status     ExecutionStatus
	Error      string
	ExecutedAt time.Time
}

// EventKind classifies notification records
type EventKind string

const (
	EventCycleExecuted      EventKind = "CYCLE_EXECUTED"
	EventVaultStatusChanged EventKind = "VAULT_STATUS_CHANGED"
)

// Event is a best-effort notification record emitted on cycle completion and
// vault status changes.
type Event struct {
	Kind      EventKind
	VaultID   uuid.UUID
	Cycle     uint32
	AmountIn  decimal.Decimal
	AmountOut decimal.Decimal
	OldStatus VaultStatus
	NewStatus VaultStatus
	Timestamp time.Time
}
