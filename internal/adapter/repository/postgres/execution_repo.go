package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/autodca/autodca-backend/internal/domain"
)

// executionRepository implements domain.ExecutionRepository and
// domain.CycleCommitter
type executionRepository struct {
	db *DB
}

// NewExecutionRepository creates a new execution history repository
func NewExecutionRepository(db *DB) domain.ExecutionRepository {
	return &executionRepository{db: db}
}

// NewCycleCommitter creates a committer that persists a cycle outcome in one
// database transaction
func NewCycleCommitter(db *DB) domain.CycleCommitter {
	return &executionRepository{db: db}
}

// Add stores a new execution record
func (r *executionRepository) Add(ctx context.Context, exec *domain.Execution) error {
	if err := insertExecution(ctx, r.db.DB, exec); err != nil {
		return err
	}
	return nil
}

// ListByVault retrieves execution history for a vault, newest first
func (r *executionRepository) ListByVault(ctx context.Context, vaultID uuid.UUID) ([]*domain.Execution, error) {
	query := `
		SELECT id, vault_id, cycle, amount_in, amount_out, status, error, executed_at
		FROM executions
		WHERE vault_id = $1
		ORDER BY executed_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, vaultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	execs := make([]*domain.Execution, 0)
	for rows.Next() {
		var e domain.Execution
		var amountInStr, amountOutStr, status string
		var errMsg sql.NullString

		err := rows.Scan(
			&e.ID,
			&e.VaultID,
			&e.Cycle,
			&amountInStr,
			&amountOutStr,
			&status,
			&errMsg,
			&e.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		e.Status = domain.ExecutionStatus(status)
		if errMsg.Valid {
			e.Error = errMsg.String
		}
		if e.AmountIn, err = decimal.NewFromString(amountInStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount_in: %w", err)
		}
		if e.AmountOut, err = decimal.NewFromString(amountOutStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount_out: %w", err)
		}

		execs = append(execs, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}

	return execs, nil
}

// CommitCycle persists the combined outcome of one execution attempt in a
// single database transaction: the vault's new state, the session key's spent
// counter (key may be nil for failed attempts), and the execution record.
func (r *executionRepository) CommitCycle(ctx context.Context, vault *domain.Vault, key *domain.SessionKey, exec *domain.Execution) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := updateVault(ctx, dbTx, vault); err != nil {
		return err
	}

	if key != nil {
		updateKeyQuery := `
			UPDATE session_keys
			SET per_tx_cap = $2, total_cap = $3, spent = $4, active = $5
			WHERE id = $1
		`
		_, err := dbTx.ExecContext(ctx, updateKeyQuery,
			key.ID,
			key.PerTxCap.String(),
			key.TotalCap.String(),
			key.Spent.String(),
			key.Active,
		)
		if err != nil {
			return fmt.Errorf("failed to update session key: %w", err)
		}
	}

	if err := insertExecution(ctx, dbTx, exec); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle: %w", err)
	}

	return nil
}

func insertExecution(ctx context.Context, db execer, exec *domain.Execution) error {
	query := `
		INSERT INTO executions (id, vault_id, cycle, amount_in, amount_out, status, error, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var errMsg interface{}
	if exec.Error != "" {
		errMsg = exec.Error
	}

	_, err := db.ExecContext(ctx, query,
		exec.ID,
		exec.VaultID,
		exec.Cycle,
		exec.AmountIn.String(),
		exec.AmountOut.String(),
		string(exec.Status),
		errMsg,
		exec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}

	return nil
}
