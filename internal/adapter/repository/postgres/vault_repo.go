package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/autodca/autodca-backend/internal/domain"
)

const vaultColumns = `id, owner, source_asset, dest_asset, amount_per_cycle,
	frequency_seconds, total_cycles, executed_cycles, custody_balance,
	total_deposited, total_received, last_execution, next_execution, status,
	custody_account, destination_account, exchange_target, session_key_id`

// vaultRepository implements domain.VaultRepository
type vaultRepository struct {
	db *DB
}

// NewVaultRepository creates a new vault repository
func NewVaultRepository(db *DB) domain.VaultRepository {
	return &vaultRepository{db: db}
}

// Create stores a new vault
func (r *vaultRepository) Create(ctx context.Context, vault *domain.Vault) error {
	query := `
		INSERT INTO vaults (` + vaultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	var sessionKeyID interface{}
	if vault.SessionKeyID != nil {
		sessionKeyID = *vault.SessionKeyID
	}

	_, err := r.db.ExecContext(ctx, query,
		vault.ID,
		vault.Owner,
		vault.SourceAsset,
		vault.DestAsset,
		vault.AmountPerCycle.String(),
		vault.FrequencySeconds,
		vault.TotalCycles,
		vault.ExecutedCycles,
		vault.CustodyBalance.String(),
		vault.TotalDeposited.String(),
		vault.TotalReceived.String(),
		vault.LastExecution,
		vault.NextExecution,
		string(vault.Status),
		vault.CustodyAccount,
		vault.DestinationAccount,
		vault.ExchangeTarget,
		sessionKeyID,
	)
	if err != nil {
		return fmt.Errorf("failed to create vault: %w", err)
	}

	return nil
}

// GetByID retrieves a vault by its ID
func (r *vaultRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE id = $1`

	vault, err := scanVault(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vault %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get vault by ID: %w", err)
	}

	return vault, nil
}

// ListByOwner retrieves all vaults belonging to an owner
func (r *vaultRepository) ListByOwner(ctx context.Context, owner string) ([]*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE owner = $1 ORDER BY last_execution DESC`

	return r.queryVaults(ctx, query, owner)
}

// ListDue retrieves active vaults whose next execution is at or before now
func (r *vaultRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE status = $1 AND next_execution <= $2`

	return r.queryVaults(ctx, query, string(domain.VaultStatusActive), now)
}

// Update persists mutated vault state
func (r *vaultRepository) Update(ctx context.Context, vault *domain.Vault) error {
	return updateVault(ctx, r.db.DB, vault)
}

// Delete removes the vault record
func (r *vaultRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM vaults WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete vault: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("vault %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

func (r *vaultRepository) queryVaults(ctx context.Context, query string, args ...interface{}) ([]*domain.Vault, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vaults: %w", err)
	}
	defer rows.Close()

	vaults := make([]*domain.Vault, 0)
	for rows.Next() {
		vault, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vault: %w", err)
		}
		vaults = append(vaults, vault)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vaults: %w", err)
	}

	return vaults, nil
}

// execer covers *sql.DB and *sql.Tx so vault updates can run inside the
// cycle-commit transaction
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func updateVault(ctx context.Context, db execer, vault *domain.Vault) error {
	query := `
		UPDATE vaults
		SET executed_cycles = $2, custody_balance = $3, total_deposited = $4,
			total_received = $5, last_execution = $6, next_execution = $7, status = $8
		WHERE id = $1
	`

	result, err := db.ExecContext(ctx, query,
		vault.ID,
		vault.ExecutedCycles,
		vault.CustodyBalance.String(),
		vault.TotalDeposited.String(),
		vault.TotalReceived.String(),
		vault.LastExecution,
		vault.NextExecution,
		string(vault.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to update vault: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("vault %s: %w", vault.ID, domain.ErrNotFound)
	}

	return nil
}

func scanVault(row rowScanner) (*domain.Vault, error) {
	var vault domain.Vault
	var amountStr, custodyStr, depositedStr, receivedStr string
	var status string
	var sessionKeyID sql.NullString

	err := row.Scan(
		&vault.ID,
		&vault.Owner,
		&vault.SourceAsset,
		&vault.DestAsset,
		&amountStr,
		&vault.FrequencySeconds,
		&vault.TotalCycles,
		&vault.ExecutedCycles,
		&custodyStr,
		&depositedStr,
		&receivedStr,
		&vault.LastExecution,
		&vault.NextExecution,
		&status,
		&vault.CustodyAccount,
		&vault.DestinationAccount,
		&vault.ExchangeTarget,
		&sessionKeyID,
	)
	if err != nil {
		return nil, err
	}

	vault.Status = domain.VaultStatus(status)

	if sessionKeyID.Valid {
		keyID, err := uuid.Parse(sessionKeyID.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse session_key_id: %w", err)
		}
		vault.SessionKeyID = &keyID
	}

	if vault.AmountPerCycle, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount_per_cycle: %w", err)
	}
	if vault.CustodyBalance, err = decimal.NewFromString(custodyStr); err != nil {
		return nil, fmt.Errorf("failed to parse custody_balance: %w", err)
	}
	if vault.TotalDeposited, err = decimal.NewFromString(depositedStr); err != nil {
		return nil, fmt.Errorf("failed to parse total_deposited: %w", err)
	}
	if vault.TotalReceived, err = decimal.NewFromString(receivedStr); err != nil {
		return nil, fmt.Errorf("failed to parse total_received: %w", err)
	}

	return &vault, nil
}
