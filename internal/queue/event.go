// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names used by the publisher and the consumer.
const (
	ConfirmedQueue = "booking.confirmed"
	CancelledQueue = "booking.cancelled"
)

// BookingConfirmedEvent is published when a reservation's payment settles
// and the slot is guaranteed.  It carries enough information for
// downstream consumers to log or notify without querying the primary
// database.
type BookingConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	InstructorID  uint64 `json:"instructor_id"`
	StudentID     uint64 `json:"student_id"`
	LessonDate    string `json:"lesson_date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	PaymentMethod string `json:"payment_method"`
	InvoiceNumber string `json:"invoice_number"`
	AmountCents   uint32 `json:"amount_cents"`
	ConfirmedAt   string `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a reservation is cancelled by
// the student, an administrator, a teacher's unbooking or the stale-hold
// reaper.  Reason distinguishes the paths.
type BookingCancelledEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	InstructorID  uint64 `json:"instructor_id"`
	StudentID     uint64 `json:"student_id"`
	LessonDate    string `json:"lesson_date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Reason        string `json:"reason"`
	CancelledAt   string `json:"cancelled_at"`
}
