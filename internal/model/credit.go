package model

import "time"

// Credit types distinguish pre-purchased lesson packages.  A standard
// credit buys one regular lesson slot.
const (
	CreditLesson = "LESSON"
	CreditExam   = "EXAM"
)

// CreditBalance tracks how many pre-purchased credits of a given type a
// user still holds.  The balance is decremented atomically when a
// reservation is paid with credits and incremented when a teacher-initiated
// unbooking refunds one.  The (UserID, CreditType) pair is unique.
type CreditBalance struct {
	ID         uint64    // credit_balances.id
	UserID     uint64    // credit_balances.user_id
	CreditType string    // credit_balances.credit_type
	Remaining  int       // credit_balances.remaining
	UpdatedAt  time.Time // credit_balances.updated_at
}
