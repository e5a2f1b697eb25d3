package repository

import (
	"context"
	"database/sql"
)

// CreditRepo provides access to per-user credit balances.  Debits and
// refunds lock the balance row FOR UPDATE so two simultaneous
// confirmations drawing from the same balance cannot double-spend.
type CreditRepo struct {
	db *sql.DB
}

// NewCreditRepo returns a new CreditRepo bound to the given database.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

// Remaining returns the current balance for one user and credit type
// without locking.  A user with no balance row has zero credits.
func (r *CreditRepo) Remaining(ctx context.Context, userID uint64, creditType string) (int, error) {
	const q = `SELECT remaining FROM credit_balances WHERE user_id = ? AND credit_type = ?`
	var remaining int
	err := r.db.QueryRowContext(ctx, q, userID, creditType).Scan(&remaining)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// DebitTx atomically takes one credit of the given type from the user
// inside the given transaction.  The balance row is locked FOR UPDATE
// before the check; ErrInsufficientCredits is returned when the balance is
// empty or the user has no balance row, and nothing is mutated.
func (r *CreditRepo) DebitTx(ctx context.Context, tx *sql.Tx, userID uint64, creditType string) error {
	const sel = `SELECT remaining FROM credit_balances WHERE user_id = ? AND credit_type = ? FOR UPDATE`
	var remaining int
	err := tx.QueryRowContext(ctx, sel, userID, creditType).Scan(&remaining)
	if err == sql.ErrNoRows {
		return ErrInsufficientCredits
	}
	if err != nil {
		return err
	}
	if remaining < 1 {
		return ErrInsufficientCredits
	}
	const upd = `UPDATE credit_balances
	             SET remaining = remaining - 1, updated_at = UTC_TIMESTAMP()
	             WHERE user_id = ? AND credit_type = ?`
	_, err = tx.ExecContext(ctx, upd, userID, creditType)
	return err
}

// RefundTx gives one credit of the given type back to the user, creating
// the balance row when the user never held one.  Used by teacher-initiated
// unbooking of credit-paid reservations.
func (r *CreditRepo) RefundTx(ctx context.Context, tx *sql.Tx, userID uint64, creditType string) error {
	const q = `INSERT INTO credit_balances (user_id, credit_type, remaining)
	           VALUES (?, ?, 1)
	           ON DUPLICATE KEY UPDATE remaining = remaining + 1, updated_at = UTC_TIMESTAMP()`
	_, err := tx.ExecContext(ctx, q, userID, creditType)
	return err
}
