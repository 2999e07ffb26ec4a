// Package memory provides mutex-guarded in-memory implementations of the
// persistence interfaces. Used for local development without Postgres and by
// the integration tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autodca/autodca-backend/internal/domain"
)

// Store holds all three aggregates behind one lock so CommitCycle is atomic
type Store struct {
	mu         sync.Mutex
	keys       map[uuid.UUID]*domain.SessionKey
	vaults     map[uuid.UUID]*domain.Vault
	executions map[uuid.UUID][]*domain.Execution
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		keys:       make(map[uuid.UUID]*domain.SessionKey),
		vaults:     make(map[uuid.UUID]*domain.Vault),
		executions: make(map[uuid.UUID][]*domain.Execution),
	}
}

// SessionKeys returns the store's domain.SessionKeyRepository view
func (s *Store) SessionKeys() domain.SessionKeyRepository { return (*sessionKeyRepo)(s) }

// Vaults returns the store's domain.VaultRepository view
func (s *Store) Vaults() domain.VaultRepository { return (*vaultRepo)(s) }

// Executions returns the store's domain.ExecutionRepository view
func (s *Store) Executions() domain.ExecutionRepository { return (*executionRepo)(s) }

// Committer returns the store's domain.CycleCommitter view
func (s *Store) Committer() domain.CycleCommitter { return (*executionRepo)(s) }

type sessionKeyRepo Store

func (r *sessionKeyRepo) Create(_ context.Context, key *domain.SessionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *sessionKeyRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.SessionKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[id]
	if !ok {
		return nil, fmt.Errorf("session key %s: %w", id, domain.ErrNotFound)
	}
	cp := *key
	return &cp, nil
}

func (r *sessionKeyRepo) ListByOwner(_ context.Context, owner string) ([]*domain.SessionKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.SessionKey, 0)
	for _, key := range r.keys {
		if key.Owner == owner {
			cp := *key
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *sessionKeyRepo) Update(_ context.Context, key *domain.SessionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[key.ID]; !ok {
		return fmt.Errorf("session key %s: %w", key.ID, domain.ErrNotFound)
	}
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *sessionKeyRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[id]; !ok {
		return fmt.Errorf("session key %s: %w", id, domain.ErrNotFound)
	}
	delete(r.keys, id)
	return nil
}

type vaultRepo Store

func (r *vaultRepo) Create(_ context.Context, vault *domain.Vault) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *vault
	r.vaults[vault.ID] = &cp
	return nil
}

func (r *vaultRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Vault, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vault, ok := r.vaults[id]
	if !ok {
		return nil, fmt.Errorf("vault %s: %w", id, domain.ErrNotFound)
	}
	cp := *vault
	return &cp, nil
}

func (r *vaultRepo) ListByOwner(_ context.Context, owner string) ([]*domain.Vault, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Vault, 0)
	for _, vault := range r.vaults {
		if vault.Owner == owner {
			cp := *vault
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastExecution.After(out[j].LastExecution) })
	return out, nil
}

func (r *vaultRepo) ListDue(_ context.Context, now time.Time) ([]*domain.Vault, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Vault, 0)
	for _, vault := range r.vaults {
		if vault.Status == domain.VaultStatusActive && !vault.NextExecution.After(now) {
			cp := *vault
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *vaultRepo) Update(_ context.Context, vault *domain.Vault) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vaults[vault.ID]; !ok {
		return fmt.Errorf("vault %s: %w", vault.ID, domain.ErrNotFound)
	}
	cp := *vault
	r.vaults[vault.ID] = &cp
	return nil
}

func (r *vaultRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vaults[id]; !ok {
		return fmt.Errorf("vault %s: %w", id, domain.ErrNotFound)
	}
	delete(r.vaults, id)
	return nil
}

type executionRepo Store

func (r *executionRepo) Add(_ context.Context, exec *domain.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *exec
	r.executions[exec.VaultID] = append(r.executions[exec.VaultID], &cp)
	return nil
}

func (r *executionRepo) ListByVault(_ context.Context, vaultID uuid.UUID) ([]*domain.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.executions[vaultID]
	out := make([]*domain.Execution, 0, len(records))
	for _, e := range records {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	return out, nil
}

// CommitCycle applies vault state, optional session key spend, and the
// execution record under one lock acquisition
func (r *executionRepo) CommitCycle(_ context.Context, vault *domain.Vault, key *domain.SessionKey, exec *domain.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.vaults[vault.ID]; !ok {
		return fmt.Errorf("vault %s: %w", vault.ID, domain.ErrNotFound)
	}
	if key != nil {
		if _, ok := r.keys[key.ID]; !ok {
			return fmt.Errorf("session key %s: %w", key.ID, domain.ErrNotFound)
		}
	}

	vaultCp := *vault
	r.vaults[vault.ID] = &vaultCp

	if key != nil {
		keyCp := *key
		r.keys[key.ID] = &keyCp
	}

	execCp := *exec
	r.executions[exec.VaultID] = append(r.executions[exec.VaultID], &execCp)
	return nil
}
