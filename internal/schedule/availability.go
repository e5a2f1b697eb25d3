package schedule

import (
	"sort"
	"time"

	"github.com/iliyamo/lesson-slot-booking/internal/model"
)

// Block is a blocked range projected onto a single date.  When AllDay is
// set the minute fields are ignored and every template window of the date
// is excluded.
type Block struct {
	AllDay bool
	Start  int
	End    int
}

// Booking is the slice of a reservation the calculator needs: its time
// range plus the fields feeding the hold-expiry predicate.
type Booking struct {
	Start         int
	End           int
	Status        string
	PaymentStatus string
	CreatedAt     time.Time
}

// Occupies reports whether the booking still claims its slot at the given
// instant.  Cancelled rows never occupy; unpaid TEMP/ON_HOLD rows stop
// occupying once their hold has expired, even if no sweep has run yet.
func (b Booking) Occupies(now time.Time, holdTimeout time.Duration) bool {
	if b.Status == model.StatusCancelled {
		return false
	}
	return !HoldExpired(b.Status, b.PaymentStatus, b.CreatedAt, now, holdTimeout)
}

// FreeWindows computes the bookable slots for one instructor and date.
// template holds the instructor's windows for the date's weekday, blocks
// the date's blocked ranges and bookings the date's reservations (soft
// deleted rows filtered out by the caller).  A window survives when it
// overlaps no block and no occupying booking; a window that overlaps a
// partial block is excluded whole rather than split.  The result is
// ordered by start time and its windows are pairwise disjoint because the
// template windows of a single weekday are.
func FreeWindows(template []Window, blocks []Block, bookings []Booking, now time.Time, holdTimeout time.Duration) []Window {
	free := make([]Window, 0, len(template))
	for _, w := range template {
		if w.Start >= w.End {
			continue
		}
		if blocked(w, blocks) {
			continue
		}
		if taken(w, bookings, now, holdTimeout) {
			continue
		}
		free = append(free, w)
	}
	sort.Slice(free, func(i, j int) bool { return free[i].Start < free[j].Start })
	return free
}

func blocked(w Window, blocks []Block) bool {
	for _, b := range blocks {
		if b.AllDay {
			return true
		}
		if Overlaps(w.Start, w.End, b.Start, b.End) {
			return true
		}
	}
	return false
}

func taken(w Window, bookings []Booking, now time.Time, holdTimeout time.Duration) bool {
	for _, b := range bookings {
		if !b.Occupies(now, holdTimeout) {
			continue
		}
		if Overlaps(w.Start, w.End, b.Start, b.End) {
			return true
		}
	}
	return false
}
