package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/autodca/autodca-backend/internal/domain"
)

// sessionKeyRepository implements domain.SessionKeyRepository
type sessionKeyRepository struct {
	db *DB
}

// NewSessionKeyRepository creates a new session key repository
func NewSessionKeyRepository(db *DB) domain.SessionKeyRepository {
	return &sessionKeyRepository{db: db}
}

// Create stores a new session key
func (r *sessionKeyRepository) Create(ctx context.Context, key *domain.SessionKey) error {
	query := `
		INSERT INTO session_keys (id, owner, delegate, per_tx_cap, total_cap, spent,
			created_at, expires_at, allowed_targets, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		key.ID,
		key.Owner,
		key.Delegate,
		key.PerTxCap.String(),
		key.TotalCap.String(),
		key.Spent.String(),
		key.CreatedAt,
		key.ExpiresAt,
		pq.Array(key.AllowedTargets.List()),
		key.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to create session key: %w", err)
	}

	return nil
}

// GetByID retrieves a session key by its ID
func (r *sessionKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SessionKey, error) {
	query := `
		SELECT id, owner, delegate, per_tx_cap, total_cap, spent,
			created_at, expires_at, allowed_targets, active
		FROM session_keys
		WHERE id = $1
	`

	key, err := scanSessionKey(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session key %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session key by ID: %w", err)
	}

	return key, nil
}

// ListByOwner retrieves all session keys granted by an owner
func (r *sessionKeyRepository) ListByOwner(ctx context.Context, owner string) ([]*domain.SessionKey, error) {
	query := `
		SELECT id, owner, delegate, per_tx_cap, total_cap, spent,
			created_at, expires_at, allowed_targets, active
		FROM session_keys
		WHERE owner = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list session keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*domain.SessionKey, 0)
	for rows.Next() {
		key, err := scanSessionKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session keys: %w", err)
	}

	return keys, nil
}

// Update persists mutated fields (spent counter, caps, active flag)
func (r *sessionKeyRepository) Update(ctx context.Context, key *domain.SessionKey) error {
	query := `
		UPDATE session_keys
		SET per_tx_cap = $2, total_cap = $3, spent = $4, active = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		key.ID,
		key.PerTxCap.String(),
		key.TotalCap.String(),
		key.Spent.String(),
		key.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to update session key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session key %s: %w", key.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes the session key record unconditionally
func (r *sessionKeyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM session_keys WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session key %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSessionKey(row rowScanner) (*domain.SessionKey, error) {
	var key domain.SessionKey
	var perTxStr, totalStr, spentStr string
	var createdAt, expiresAt time.Time
	var targets pq.StringArray

	err := row.Scan(
		&key.ID,
		&key.Owner,
		&key.Delegate,
		&perTxStr,
		&totalStr,
		&spentStr,
		&createdAt,
		&expiresAt,
		&targets,
		&key.Active,
	)
	if err != nil {
		return nil, err
	}

	key.CreatedAt = createdAt
	key.ExpiresAt = expiresAt

	if key.PerTxCap, err = decimal.NewFromString(perTxStr); err != nil {
		return nil, fmt.Errorf("failed to parse per_tx_cap: %w", err)
	}
	if key.TotalCap, err = decimal.NewFromString(totalStr); err != nil {
		return nil, fmt.Errorf("failed to parse total_cap: %w", err)
	}
	if key.Spent, err = decimal.NewFromString(spentStr); err != nil {
		return nil, fmt.Errorf("failed to parse spent: %w", err)
	}

	// Stored rows were validated at creation, the capacity check cannot fail here
	key.AllowedTargets, err = domain.NewTargetSet(targets)
	if err != nil {
		return nil, fmt.Errorf("failed to restore allowed targets: %w", err)
	}

	return &key, nil
}
