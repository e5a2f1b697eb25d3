package model

import "time"

// Lifecycle statuses of a reservation.  A reservation starts as TEMP when a
// student books a slot, moves to ON_HOLD once a payment has been initiated,
// to CONFIRMED when the slot is guaranteed, and to COMPLETED after the
// lesson took place.  CANCELLED is terminal and may be entered from any
// pre-COMPLETED state.
const (
	StatusTemp      = "TEMP"
	StatusOnHold    = "ON_HOLD"
	StatusConfirmed = "CONFIRMED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Payment statuses, tracked independently of the lifecycle status because a
// reservation can be confirmed-but-unpaid (pay on location) or
// confirmed-and-paid.  PAID is terminal and never regresses.
const (
	PayUnpaid       = "UNPAID"
	PayPendingAdmin = "PENDING_ADMIN"
	PayPaid         = "PAID"
	PayFailed       = "FAILED"
	PayCancelled    = "CANCELLED"
)

// Payment methods accepted by the booking flow.
const (
	MethodCash    = "CASH"
	MethodOnline  = "ONLINE"
	MethodCredits = "CREDITS"
)

// Reservation records a student's booking of a lesson slot with an
// instructor.  The time range is half-open [StartMinute, EndMinute) in
// minutes since midnight on LessonDate.  Reservations are never hard
// deleted once a payment has been attempted; cancellation and the
// DeletedAt marker preserve the audit trail.
//
// Fields:
//  ID            – primary key identifier.
//  InstructorID  – instructor whose calendar is reserved.
//  StudentID     – student who made the reservation.
//  LessonDate    – calendar date of the lesson (date only, UTC).
//  StartMinute   – start of the slot, minutes since midnight.
//  EndMinute     – end of the slot, minutes since midnight (exclusive).
//  Participants  – occupant count (primary student + supervisors).
//  Status        – lifecycle state (TEMP, ON_HOLD, CONFIRMED, COMPLETED, CANCELLED).
//  PaymentStatus – payment state (UNPAID, PENDING_ADMIN, PAID, FAILED, CANCELLED).
//  PaymentMethod – CASH, ONLINE or CREDITS.
//  Notes         – appended audit notes (reap reason, cancellation reason).
//  CompletedAt   – when the lesson was marked completed, if ever.
//  DeletedAt     – soft-delete marker.
//  CreatedAt     – creation timestamp; bounds the hold lifetime.
//  UpdatedAt     – last update timestamp.
type Reservation struct {
	ID            uint64     // reservations.id
	InstructorID  uint64     // reservations.instructor_id
	StudentID     uint64     // reservations.student_id
	LessonDate    string     // reservations.lesson_date (YYYY-MM-DD)
	StartMinute   int        // reservations.start_minute
	EndMinute     int        // reservations.end_minute
	Participants  int        // reservations.participants
	Status        string     // reservations.status
	PaymentStatus string     // reservations.payment_status
	PaymentMethod string     // reservations.payment_method
	Notes         string     // reservations.notes
	CompletedAt   *time.Time // reservations.completed_at
	DeletedAt     *time.Time // reservations.deleted_at
	CreatedAt     time.Time  // reservations.created_at
	UpdatedAt     time.Time  // reservations.updated_at
}
