package sessionkey

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/autodca/autodca-backend/internal/domain"
)

// CreateInput represents the input for granting a session key
type CreateInput struct {
	Owner          string
	Delegate       string
	PerTxCap       decimal.Decimal
	TotalCap       decimal.Decimal
	ExpiresAt      time.Time
	AllowedTargets []string
}

// UpdateLimitsInput represents the input for replacing a session key's caps
type UpdateLimitsInput struct {
	KeyID    uuid.UUID
	Caller   string
	PerTxCap decimal.Decimal
	TotalCap decimal.Decimal
}

// UpdateLimitsResult reports the updated key plus whether the new total cap
// landed below the already-spent amount, leaving the key permanently
// exhausted. The update is applied either way.
type UpdateLimitsResult struct {
	Key        *domain.SessionKey
	BelowSpent bool
}

// Service handles session key lifecycle and authorization operations
type Service struct {
	Keys  domain.SessionKeyRepository
	Clock domain.Clock
}

// NewService creates a new session key service instance
func NewService(keys domain.SessionKeyRepository, clock domain.Clock) *Service {
	return &Service{Keys: keys, Clock: clock}
}

// Create grants a new session key with explicit spending limits.
// Logic:
//  1. Validate caps are positive and expiry is in the future
//  2. Build the fixed-capacity target set (explicit error on overflow)
//  3. Persist with spent=0, active=true
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.SessionKey, error) {
	if input.Owner == "" || input.Delegate == "" {
		return nil, errors.New("owner and delegate are required")
	}

	if input.PerTxCap.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("per-transaction cap must be positive")
	}

	if input.TotalCap.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("total cap must be positive")
	}

	now := s.Clock.Now()
	if !input.ExpiresAt.After(now) {
		return nil, errors.New("expiry must be in the future")
	}

	targets, err := domain.NewTargetSet(input.AllowedTargets)
	if err != nil {
		return nil, err
	}

	key := &domain.SessionKey{
		ID:             uuid.New(),
		Owner:          input.Owner,
		Delegate:       input.Delegate,
		PerTxCap:       input.PerTxCap,
		TotalCap:       input.TotalCap,
		Spent:          decimal.Zero,
		CreatedAt:      now,
		ExpiresAt:      input.ExpiresAt,
		AllowedTargets: targets,
		Active:         true,
	}

	if err := s.Keys.Create(ctx, key); err != nil {
		return nil, err
	}

	return key, nil
}

// Authorize validates a delegate-initiated spend and commits the spent
// counter in one step. The caller must be the key's delegate.
func (s *Service) Authorize(ctx context.Context, keyID uuid.UUID, caller, target string, amount decimal.Decimal) error {
	key, err := s.Keys.GetByID(ctx, keyID)
	if err != nil {
		return err
	}

	if key.Delegate != caller {
		return domain.ErrUnauthorized
	}

	if err := key.Authorize(target, amount, s.Clock.Now()); err != nil {
		return err
	}

	return s.Keys.Update(ctx, key)
}

// Revoke deactivates the session key. Owner-only, idempotent.
func (s *Service) Revoke(ctx context.Context, keyID uuid.UUID, caller string) error {
	key, err := s.Keys.GetByID(ctx, keyID)
	if err != nil {
		return err
	}

	if key.Owner != caller {
		return domain.ErrUnauthorized
	}

	key.Revoke()
	return s.Keys.Update(ctx, key)
}

// UpdateLimits replaces both caps. Owner-only. A total cap below the spent
// counter is accepted and leaves the key exhausted; the result surfaces that
// hazard instead of rejecting it.
func (s *Service) UpdateLimits(ctx context.Context, input UpdateLimitsInput) (*UpdateLimitsResult, error) {
	if input.PerTxCap.LessThanOrEqual(decimal.Zero) || input.TotalCap.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("caps must be positive")
	}

	key, err := s.Keys.GetByID(ctx, input.KeyID)
	if err != nil {
		return nil, err
	}

	if key.Owner != input.Caller {
		return nil, domain.ErrUnauthorized
	}

	key.UpdateLimits(input.PerTxCap, input.TotalCap)
	if err := s.Keys.Update(ctx, key); err != nil {
		return nil, err
	}

	return &UpdateLimitsResult{
		Key:        key,
		BelowSpent: key.Spent.GreaterThan(key.TotalCap),
	}, nil
}

// Close deletes the session key record. Owner-only; revocation is not a
// precondition, an active key may be closed directly.
func (s *Service) Close(ctx context.Context, keyID uuid.UUID, caller string) error {
	key, err := s.Keys.GetByID(ctx, keyID)
	if err != nil {
		return err
	}

	if key.Owner != caller {
		return domain.ErrUnauthorized
	}

	return s.Keys.Delete(ctx, keyID)
}

// Get retrieves a session key. Visible to its owner and its delegate.
func (s *Service) Get(ctx context.Context, keyID uuid.UUID, caller string) (*domain.SessionKey, error) {
	key, err := s.Keys.GetByID(ctx, keyID)
	if err != nil {
		return nil, err
	}

	if key.Owner != caller && key.Delegate != caller {
		return nil, domain.ErrUnauthorized
	}

	return key, nil
}

// ListByOwner retrieves all session keys granted by the caller
func (s *Service) ListByOwner(ctx context.Context, owner string) ([]*domain.SessionKey, error) {
	return s.Keys.ListByOwner(ctx, owner)
}
