package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lesson-slot-booking/internal/model"
)

// InstructorRepo provides read access to instructors and their weekly
// availability templates.  Instructors are administrative configuration;
// the booking flow never mutates them, but create/move/reap lock the
// instructor row to serialize writers per resource.
type InstructorRepo struct {
	db *sql.DB
}

// NewInstructorRepo returns a new InstructorRepo bound to the given database.
func NewInstructorRepo(db *sql.DB) *InstructorRepo { return &InstructorRepo{db: db} }

// GetByID loads a single instructor.  sql.ErrNoRows is returned when no
// instructor with the ID exists.
func (r *InstructorRepo) GetByID(ctx context.Context, id uint64) (*model.Instructor, error) {
	const q = `SELECT id, name, max_participants, is_active, created_at
	           FROM instructors WHERE id = ?`
	var ins model.Instructor
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&ins.ID, &ins.Name, &ins.MaxParticipants, &ins.IsActive, &ins.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ins, nil
}

// LockTx locks the instructor row FOR UPDATE inside the given transaction
// and returns the instructor.  Every writer that reads-then-writes a day's
// reservations (create, move, reap) takes this lock first, so two
// concurrent writers for the same instructor cannot both observe
// "available" and both commit.  sql.ErrNoRows is returned when the
// instructor does not exist.
func (r *InstructorRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Instructor, error) {
	const q = `SELECT id, name, max_participants, is_active, created_at
	           FROM instructors WHERE id = ? FOR UPDATE`
	var ins model.Instructor
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&ins.ID, &ins.Name, &ins.MaxParticipants, &ins.IsActive, &ins.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ins, nil
}

// ListActive returns all active instructors ordered by name, for public
// browsing.  When none exist an empty slice is returned.
func (r *InstructorRepo) ListActive(ctx context.Context) ([]model.Instructor, error) {
	const q = `SELECT id, name, max_participants, is_active, created_at
	           FROM instructors WHERE is_active = 1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.Instructor, 0)
	for rows.Next() {
		var ins model.Instructor
		if err := rows.Scan(&ins.ID, &ins.Name, &ins.MaxParticipants, &ins.IsActive, &ins.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// TemplateWindows returns the instructor's template windows for one
// weekday (0=Sunday .. 6=Saturday), ordered by start time.  An instructor
// with no windows on that weekday yields an empty slice.
func (r *InstructorRepo) TemplateWindows(ctx context.Context, instructorID uint64, weekday int) ([]model.TemplateWindow, error) {
	const q = `SELECT id, instructor_id, weekday, start_minute, end_minute
	           FROM template_windows
	           WHERE instructor_id = ? AND weekday = ?
	           ORDER BY start_minute`
	rows, err := r.db.QueryContext(ctx, q, instructorID, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	windows := make([]model.TemplateWindow, 0)
	for rows.Next() {
		var w model.TemplateWindow
		if err := rows.Scan(&w.ID, &w.InstructorID, &w.Weekday, &w.StartMinute, &w.EndMinute); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return windows, nil
}

// TemplateWindowsTx is TemplateWindows executed inside an existing
// transaction, used by create/move so the availability re-check sees a
// consistent snapshot under the instructor lock.
func (r *InstructorRepo) TemplateWindowsTx(ctx context.Context, tx *sql.Tx, instructorID uint64, weekday int) ([]model.TemplateWindow, error) {
	const q = `SELECT id, instructor_id, weekday, start_minute, end_minute
	           FROM template_windows
	           WHERE instructor_id = ? AND weekday = ?
	           ORDER BY start_minute`
	rows, err := tx.QueryContext(ctx, q, instructorID, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	windows := make([]model.TemplateWindow, 0)
	for rows.Next() {
		var w model.TemplateWindow
		if err := rows.Scan(&w.ID, &w.InstructorID, &w.Weekday, &w.StartMinute, &w.EndMinute); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return windows, nil
}
