package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxAllowedTargets is the fixed capacity of a session key's target allow-list.
const MaxAllowedTargets = 10

// TargetSet is a fixed-capacity set of target identities a session key is
// scoped to. Insertions beyond capacity are rejected at construction time,
// never silently dropped.
type TargetSet struct {
	targets []string
}

// NewTargetSet builds a TargetSet from the given identities.
// Returns ErrTooManyTargets if more than MaxAllowedTargets are supplied.
// Duplicates are collapsed before the capacity check.
func NewTargetSet(targets []string) (TargetSet, error) {
	seen := make(map[string]bool, len(targets))
	unique := make([]string, 0, len(targets))
	for _, t := range targets {
		if seen[t] {
			continue
		}
		seen[t] = true
		unique = append(unique, t)
	}

	if len(unique) > MaxAllowedTargets {
		return TargetSet{}, ErrTooManyTargets
	}

	return TargetSet{targets: unique}, nil
}

// Contains reports whether the target is in the set.
func (s TargetSet) Contains(target string) bool {
	for _, t := range s.targets {
		if t == target {
			return true
		}
	}
	return false
}

// List returns a copy of the targets in insertion order.
func (s TargetSet) List() []string {
	out := make([]string, len(s.targets))
	copy(out, s.targets)
	return out
}

// Size returns the number of targets in the set.
func (s TargetSet) Size() int {
	return len(s.targets)
}

// SessionKey represents a delegated spending authorization in the domain layer.
// The owner grants the delegate the right to trigger actions against a bounded
// set of targets, capped per transaction and in total, until expiry.
type SessionKey struct {
	ID             uuid.UUID
	Owner          string
	Delegate       string
	PerTxCap       decimal.Decimal
	TotalCap       decimal.Decimal
	Spent          decimal.Decimal
	CreatedAt      time.Time
	ExpiresAt      time.Time
	AllowedTargets TargetSet
	Active         bool
}

// CheckAuthorization verifies the session key permits spending `amount`
// against `target` at time `now`, without recording the spend.
// Check order: active, expiry, per-tx cap, total cap, target allow-list.
func (k *SessionKey) CheckAuthorization(target string, amount decimal.Decimal, now time.Time) error {
	if !k.Active {
		return ErrSessionKeyNotActive
	}

	if !now.Before(k.ExpiresAt) {
		return ErrSessionKeyExpired
	}

	if amount.GreaterThan(k.PerTxCap) {
		return ErrPerTxLimitExceeded
	}

	if k.Spent.Add(amount).GreaterThan(k.TotalCap) {
		return ErrTotalLimitExceeded
	}

	if !k.AllowedTargets.Contains(target) {
		return ErrTargetNotAllowed
	}

	return nil
}

// RecordSpend adds the amount to the running spent counter.
// The amount must already have passed CheckAuthorization; Spent never
// decreases and never exceeds TotalCap through this path.
func (k *SessionKey) RecordSpend(amount decimal.Decimal) {
	k.Spent = k.Spent.Add(amount)
}

// Authorize runs the full check and commits the spend in one step.
// Spent is unchanged when any check fails.
func (k *SessionKey) Authorize(target string, amount decimal.Decimal, now time.Time) error {
	if err := k.CheckAuthorization(target, amount, now); err != nil {
		return err
	}
	k.RecordSpend(amount)
	return nil
}

// Revoke deactivates the session key. Idempotent.
func (k *SessionKey) Revoke() {
	k.Active = false
}

// UpdateLimits replaces both caps. There is no floor check against the
// already-spent amount: a TotalCap below Spent permanently blocks further
// authorization. Callers should inspect Exhausted afterwards.
func (k *SessionKey) UpdateLimits(perTxCap, totalCap decimal.Decimal) {
	k.PerTxCap = perTxCap
	k.TotalCap = totalCap
}

// Exhausted reports whether the spent counter has reached or passed the
// total cap, i.e. no further authorization can ever succeed.
func (k *SessionKey) Exhausted() bool {
	return k.Spent.GreaterThanOrEqual(k.TotalCap)
}
