package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionKeyRepository defines the interface for session key persistence operations
type SessionKeyRepository interface {
	// Create stores a new session key
	Create(ctx context.Context, key *SessionKey) error

	// GetByID retrieves a session key by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*SessionKey, error)

	// ListByOwner retrieves all session keys granted by an owner
	ListByOwner(ctx context.Context, owner string) ([]*SessionKey, error)

	// Update persists mutated fields (spent counter, caps, active flag)
	Update(ctx context.Context, key *SessionKey) error

	// Delete removes the session key record unconditionally
	Delete(ctx context.Context, id uuid.UUID) error
}

// VaultRepository defines the interface for vault persistence operations
type VaultRepository interface {
	// Create stores a new vault
	Create(ctx context.Context, vault *Vault) error

	// GetByID retrieves a vault by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Vault, error)

	// ListByOwner retrieves all vaults belonging to an owner
	ListByOwner(ctx context.Context, owner string) ([]*Vault, error)

	// ListDue retrieves active vaults whose next execution is at or before now
	ListDue(ctx context.Context, now time.Time) ([]*Vault, error)

	// Update persists mutated vault state
	Update(ctx context.Context, vault *Vault) error

	// Delete removes the vault record
	Delete(ctx context.Context, id uuid.UUID) error
}

// ExecutionRepository defines the interface for execution history persistence
type ExecutionRepository interface {
	// Add stores a new execution record
	Add(ctx context.Context, exec *Execution) error

	// ListByVault retrieves execution history for a vault, newest first
	ListByVault(ctx context.Context, vaultID uuid.UUID) ([]*Execution, error)
}

// CycleCommitter persists the combined outcome of one execution attempt in a
// single storage transaction: the vault's new state, the session key's spent
// counter (nil on a failed attempt, where no spend is recorded), and the
// execution history record.
type CycleCommitter interface {
	CommitCycle(ctx context.Context, vault *Vault, key *SessionKey, exec *Execution) error
}
