package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/credits"
	"github.com/chigozzdevv/zecflow-sub000/common/db"
)

// LedgerRepository handles database operations for org credit balances.
// Implements credits.Ledger.
type LedgerRepository struct {
	db *db.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(database *db.DB) *LedgerRepository {
	return &LedgerRepository{db: database}
}

// GetAvailable returns an org's current credit balance. Unknown orgs
// read as zero.
func (r *LedgerRepository) GetAvailable(ctx context.Context, org string) (int, error) {
	query := `
		SELECT balance
		FROM credit_ledger
		WHERE org_id = $1
	`

	var balance int
	err := r.db.QueryRow(ctx, query, org).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get credit balance: %w", err)
	}
	return balance, nil
}

// Debit atomically moves amount out of an org's balance and records the
// entry. The guarded UPDATE makes overdraw impossible even under
// concurrent runs; zero rows affected means insufficient funds.
func (r *LedgerRepository) Debit(ctx context.Context, org string, amount int, reason string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin debit: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE credit_ledger
		SET balance = balance - $2, updated_at = now()
		WHERE org_id = $1 AND balance >= $2
	`, org, amount)
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return credits.ErrInsufficient
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO credit_entry (org_id, amount, reason, created_at)
		VALUES ($1, $2, $3, now())
	`, org, -amount, reason)
	if err != nil {
		return fmt.Errorf("failed to record credit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit debit: %w", err)
	}
	return nil
}

// Credit adds amount to an org's balance, creating the row when absent
func (r *LedgerRepository) Credit(ctx context.Context, org string, amount int, reason string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin credit: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO credit_ledger (org_id, balance, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (org_id) DO UPDATE
		SET balance = credit_ledger.balance + $2, updated_at = now()
	`, org, amount)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO credit_entry (org_id, amount, reason, created_at)
		VALUES ($1, $2, $3, now())
	`, org, amount, reason)
	if err != nil {
		return fmt.Errorf("failed to record credit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit credit: %w", err)
	}
	return nil
}
