package schedule

import (
	"time"

	"github.com/iliyamo/lesson-slot-booking/internal/model"
)

// Default timeouts for tentative reservations.  The availability
// calculator ignores unpaid TEMP/ON_HOLD rows older than
// DefaultHoldTimeout even before the reaper has swept them, so
// availability never depends on reaper cadence.  The reaper cancels rows
// older than DefaultReapCutoff.
const (
	DefaultHoldTimeout = 10 * time.Minute
	DefaultReapCutoff  = 15 * time.Minute
)

// HoldExpired is the single predicate deciding whether a tentative
// reservation is still alive.  Both the availability calculator (soft
// expiry during read) and the reaper (hard expiry during sweep) use it so
// the two cannot drift apart.  A reservation is expired when it sits in
// TEMP or ON_HOLD, has not been paid, and was created more than timeout
// ago relative to now.
func HoldExpired(status, paymentStatus string, createdAt, now time.Time, timeout time.Duration) bool {
	if status != model.StatusTemp && status != model.StatusOnHold {
		return false
	}
	if paymentStatus == model.PayPaid {
		return false
	}
	return !createdAt.Add(timeout).After(now)
}
