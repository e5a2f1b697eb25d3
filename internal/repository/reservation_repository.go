package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/lesson-slot-booking/internal/model"
)

// ReservationRepo provides CRUD operations for lesson reservations.  All
// timestamp columns are stored in UTC.  Mutations that participate in the
// booking state machine are exposed as ...Tx methods so handlers can group
// the availability re-check, the write and the invoice update into one
// transaction.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so handlers can begin transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, instructor_id, student_id, lesson_date, start_minute, end_minute,
	participants, status, payment_status, payment_method, notes, completed_at, deleted_at,
	created_at, updated_at`

func scanReservation(row interface {
	Scan(dest ...interface{}) error
}) (*model.Reservation, error) {
	var res model.Reservation
	var completedAt, deletedAt sql.NullTime
	err := row.Scan(
		&res.ID, &res.InstructorID, &res.StudentID, &res.LessonDate, &res.StartMinute, &res.EndMinute,
		&res.Participants, &res.Status, &res.PaymentStatus, &res.PaymentMethod, &res.Notes,
		&completedAt, &deletedAt, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		res.CompletedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		res.DeletedAt = &t
	}
	return &res, nil
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID and timestamps on the
// provided record.  The caller must hold the instructor lock, have
// re-checked availability and must commit or rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
	           (instructor_id, student_id, lesson_date, start_minute, end_minute, participants,
	            status, payment_status, payment_method, notes)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.InstructorID, res.StudentID, res.LessonDate, res.StartMinute, res.EndMinute,
		res.Participants, res.Status, res.PaymentStatus, res.PaymentMethod, res.Notes,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults
	sel := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	loaded, err := scanReservation(tx.QueryRowContext(ctx, sel, res.ID))
	if err != nil {
		return err
	}
	*res = *loaded
	return nil
}

// GetByID returns a single non-deleted reservation.  sql.ErrNoRows is
// returned when the reservation does not exist or was soft deleted.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? AND deleted_at IS NULL`
	return scanReservation(r.db.QueryRowContext(ctx, q, id))
}

// GetForUpdateTx loads a reservation row FOR UPDATE inside the given
// transaction.  Payment transitions take this lock so a webhook and an
// admin action racing for the same reservation serialize against each
// other, not globally.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? AND deleted_at IS NULL FOR UPDATE`
	return scanReservation(tx.QueryRowContext(ctx, q, id))
}

// ListForDateTx returns all non-deleted reservations for one instructor
// and date inside the given transaction, regardless of status.  Status
// filtering (cancelled rows, soft-expired holds) is the caller's job via
// the schedule package, so the expiry policy lives in exactly one place.
func (r *ReservationRepo) ListForDateTx(ctx context.Context, tx *sql.Tx, instructorID uint64, date string) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE instructor_id = ? AND lesson_date = ? AND deleted_at IS NULL
	      ORDER BY start_minute`
	rows, err := tx.QueryContext(ctx, q, instructorID, date)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ListForDate is ListForDateTx outside a transaction, used by the
// read-only availability query.
func (r *ReservationRepo) ListForDate(ctx context.Context, instructorID uint64, date string) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE instructor_id = ? AND lesson_date = ? AND deleted_at IS NULL
	      ORDER BY start_minute`
	rows, err := r.db.QueryContext(ctx, q, instructorID, date)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ListByStudent returns all non-deleted reservations created by the given
// student, newest first.  When none exist an empty slice is returned.
func (r *ReservationRepo) ListByStudent(ctx context.Context, studentID uint64) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE student_id = ? AND deleted_at IS NULL
	      ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, studentID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	items := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// SetStatusTx updates the lifecycle status and appends an audit note when
// one is given.  The caller decides whether the transition is legal.
func (r *ReservationRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status, note string) error {
	const q = `UPDATE reservations
	           SET status = ?,
	               notes = IF(? = '', notes, CONCAT(notes, IF(notes = '', '', '\n'), ?)),
	               updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, status, note, note, id)
	return err
}

// SetPaymentTx updates the payment status and, when status is non-empty,
// the lifecycle status in the same statement.  Used by every
// reconciliation path so the two columns cannot be written in separate
// transactions.
func (r *ReservationRepo) SetPaymentTx(ctx context.Context, tx *sql.Tx, id uint64, paymentStatus, status string) error {
	const q = `UPDATE reservations
	           SET payment_status = ?,
	               status = IF(? = '', status, ?),
	               updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, paymentStatus, status, status, id)
	return err
}

// SetMethodTx records which payment rail the customer chose.
func (r *ReservationRepo) SetMethodTx(ctx context.Context, tx *sql.Tx, id uint64, method string) error {
	const q = `UPDATE reservations SET payment_method = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, method, id)
	return err
}

// MoveTx changes the date and time range of a reservation.  The caller
// holds the instructor lock and has re-checked the target slot excluding
// this reservation.
func (r *ReservationRepo) MoveTx(ctx context.Context, tx *sql.Tx, id uint64, date string, startMinute, endMinute int) error {
	const q = `UPDATE reservations
	           SET lesson_date = ?, start_minute = ?, end_minute = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, date, startMinute, endMinute, id)
	return err
}

// MarkCompletedTx stamps the completion time and moves the reservation to
// COMPLETED.  Legality (only from CONFIRMED, idempotent on COMPLETED) is
// checked by the handler against the locked row.
func (r *ReservationRepo) MarkCompletedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE reservations
	           SET status = ?, completed_at = UTC_TIMESTAMP(), updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, model.StatusCompleted, id)
	return err
}

// ReapStaleTx cancels every reservation with the given status whose hold
// started before cutoff and whose payment is not settled, appending an
// audit note.  It returns the affected rows (as they were before the
// update) so callers can bust caches and publish events.  A run matching
// nothing returns an empty slice and no error.
func (r *ReservationRepo) ReapStaleTx(ctx context.Context, tx *sql.Tx, status string, cutoff time.Time, note string) ([]model.Reservation, error) {
	// Lock and collect the victims first so their rows survive the update.
	sel := `SELECT ` + reservationColumns + ` FROM reservations
	        WHERE status = ? AND payment_status <> ? AND created_at < ? AND deleted_at IS NULL
	        FOR UPDATE`
	cutoffStr := cutoff.UTC().Format("2006-01-02 15:04:05")
	rows, err := tx.QueryContext(ctx, sel, status, model.PayPaid, cutoffStr)
	if err != nil {
		return nil, err
	}
	victims, err := collectReservations(rows)
	if err != nil {
		return nil, err
	}
	if len(victims) == 0 {
		return victims, nil
	}
	const upd = `UPDATE reservations
	             SET status = ?,
	                 notes = CONCAT(notes, IF(notes = '', '', '\n'), ?),
	                 updated_at = UTC_TIMESTAMP()
	             WHERE status = ? AND payment_status <> ? AND created_at < ? AND deleted_at IS NULL`
	if _, err := tx.ExecContext(ctx, upd,
		model.StatusCancelled, note, status, model.PayPaid, cutoffStr); err != nil {
		return nil, err
	}
	return victims, nil
}

// SoftDeleteTx marks a reservation deleted without removing the row, so
// the audit trail of attempted payments survives.
func (r *ReservationRepo) SoftDeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE reservations SET deleted_at = UTC_TIMESTAMP(), updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, id)
	return err
}
