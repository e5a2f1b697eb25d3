package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lesson-slot-booking/internal/model"
)

// BlockedRangeRepo provides access to the blocked_ranges table.  Blocks
// are created and deleted by administrators; the availability calculator
// and the booking flow only ever read them.
type BlockedRangeRepo struct {
	db *sql.DB
}

// NewBlockedRangeRepo returns a new BlockedRangeRepo bound to the given database.
func NewBlockedRangeRepo(db *sql.DB) *BlockedRangeRepo { return &BlockedRangeRepo{db: db} }

// ListByInstructorDate returns all blocks for one instructor and date,
// all-day blocks first.  When none exist an empty slice is returned.
func (r *BlockedRangeRepo) ListByInstructorDate(ctx context.Context, instructorID uint64, date string) ([]model.BlockedRange, error) {
	const q = `SELECT id, instructor_id, block_date, all_day, start_minute, end_minute, reason, created_at
	           FROM blocked_ranges
	           WHERE instructor_id = ? AND block_date = ?
	           ORDER BY all_day DESC, start_minute`
	return r.scanList(r.db.QueryContext(ctx, q, instructorID, date))
}

// ListByInstructorDateTx is ListByInstructorDate inside an existing
// transaction, used by the create/move availability re-check.
func (r *BlockedRangeRepo) ListByInstructorDateTx(ctx context.Context, tx *sql.Tx, instructorID uint64, date string) ([]model.BlockedRange, error) {
	const q = `SELECT id, instructor_id, block_date, all_day, start_minute, end_minute, reason, created_at
	           FROM blocked_ranges
	           WHERE instructor_id = ? AND block_date = ?
	           ORDER BY all_day DESC, start_minute`
	return r.scanList(tx.QueryContext(ctx, q, instructorID, date))
}

// Create inserts a new blocked range and populates the generated ID.
func (r *BlockedRangeRepo) Create(ctx context.Context, b *model.BlockedRange) error {
	const q = `INSERT INTO blocked_ranges (instructor_id, block_date, all_day, start_minute, end_minute, reason)
	           VALUES (?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, b.InstructorID, b.BlockDate, b.AllDay, b.StartMinute, b.EndMinute, b.Reason)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID loads one blocked range belonging to the given instructor.
// sql.ErrNoRows is returned when no matching row exists.
func (r *BlockedRangeRepo) GetByID(ctx context.Context, instructorID, blockID uint64) (*model.BlockedRange, error) {
	const q = `SELECT id, instructor_id, block_date, all_day, start_minute, end_minute, reason, created_at
	           FROM blocked_ranges
	           WHERE id = ? AND instructor_id = ?`
	var b model.BlockedRange
	err := r.db.QueryRowContext(ctx, q, blockID, instructorID).Scan(
		&b.ID, &b.InstructorID, &b.BlockDate, &b.AllDay, &b.StartMinute, &b.EndMinute, &b.Reason, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Delete removes a blocked range belonging to the given instructor.  It
// returns sql.ErrNoRows when no matching row was deleted, letting the
// handler answer 404.
func (r *BlockedRangeRepo) Delete(ctx context.Context, instructorID, blockID uint64) error {
	const q = `DELETE FROM blocked_ranges WHERE id = ? AND instructor_id = ?`
	result, err := r.db.ExecContext(ctx, q, blockID, instructorID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *BlockedRangeRepo) scanList(rows *sql.Rows, err error) ([]model.BlockedRange, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.BlockedRange, 0)
	for rows.Next() {
		var b model.BlockedRange
		if err := rows.Scan(&b.ID, &b.InstructorID, &b.BlockDate, &b.AllDay, &b.StartMinute, &b.EndMinute, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
