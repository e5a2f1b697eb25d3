package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lesson-slot-booking/internal/model"
)

var testNow = time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)

// Monday 08:15–08:55, no blocks, no reservations: the template window is
// returned as-is.
func TestFreeWindows_EmptyCalendar(t *testing.T) {
	template := []Window{{Start: 495, End: 535}}

	got := FreeWindows(template, nil, nil, testNow, DefaultHoldTimeout)

	require.Len(t, got, 1)
	assert.Equal(t, Window{Start: 495, End: 535}, got[0])
}

func TestFreeWindows_NoTemplate(t *testing.T) {
	got := FreeWindows(nil, nil, nil, testNow, DefaultHoldTimeout)
	assert.Empty(t, got)
}

// A confirmed reservation over the slot removes it; a touching reservation
// does not.
func TestFreeWindows_ReservationOccupies(t *testing.T) {
	template := []Window{{Start: 495, End: 535}, {Start: 535, End: 575}}
	bookings := []Booking{{
		Start: 495, End: 535,
		Status:        model.StatusConfirmed,
		PaymentStatus: model.PayPaid,
		CreatedAt:     testNow.Add(-time.Hour),
	}}

	got := FreeWindows(template, nil, bookings, testNow, DefaultHoldTimeout)

	require.Len(t, got, 1)
	assert.Equal(t, Window{Start: 535, End: 575}, got[0])
}

func TestFreeWindows_CancelledReservationIgnored(t *testing.T) {
	template := []Window{{Start: 495, End: 535}}
	bookings := []Booking{{
		Start: 495, End: 535,
		Status:        model.StatusCancelled,
		PaymentStatus: model.PayCancelled,
		CreatedAt:     testNow.Add(-time.Hour),
	}}

	got := FreeWindows(template, nil, bookings, testNow, DefaultHoldTimeout)
	assert.Len(t, got, 1)
}

// An unpaid TEMP reservation older than the hold timeout frees its slot
// even though no reaper run has cancelled it yet.
func TestFreeWindows_StaleHoldSoftExpires(t *testing.T) {
	template := []Window{{Start: 495, End: 535}}
	fresh := Booking{
		Start: 495, End: 535,
		Status:        model.StatusTemp,
		PaymentStatus: model.PayUnpaid,
		CreatedAt:     testNow.Add(-5 * time.Minute),
	}
	stale := fresh
	stale.CreatedAt = testNow.Add(-11 * time.Minute)

	assert.Empty(t, FreeWindows(template, nil, []Booking{fresh}, testNow, DefaultHoldTimeout))
	assert.Len(t, FreeWindows(template, nil, []Booking{stale}, testNow, DefaultHoldTimeout), 1)
}

// A paid ON_HOLD reservation never expires, regardless of age.
func TestFreeWindows_PaidHoldNeverExpires(t *testing.T) {
	template := []Window{{Start: 495, End: 535}}
	bookings := []Booking{{
		Start: 495, End: 535,
		Status:        model.StatusOnHold,
		PaymentStatus: model.PayPaid,
		CreatedAt:     testNow.Add(-24 * time.Hour),
	}}

	assert.Empty(t, FreeWindows(template, nil, bookings, testNow, DefaultHoldTimeout))
}

func TestFreeWindows_AllDayBlock(t *testing.T) {
	template := []Window{{Start: 495, End: 535}, {Start: 600, End: 640}}
	blocks := []Block{{AllDay: true}}

	assert.Empty(t, FreeWindows(template, blocks, nil, testNow, DefaultHoldTimeout))
}

// A partial block excludes every window it touches, whole; windows it does
// not touch survive.  No splitting.
func TestFreeWindows_PartialBlockExcludesWholeWindow(t *testing.T) {
	template := []Window{{Start: 495, End: 535}, {Start: 535, End: 575}, {Start: 600, End: 640}}
	blocks := []Block{{Start: 530, End: 560}}

	got := FreeWindows(template, blocks, nil, testNow, DefaultHoldTimeout)

	require.Len(t, got, 1)
	assert.Equal(t, Window{Start: 600, End: 640}, got[0])
}

func TestFreeWindows_OutputSortedAndDisjoint(t *testing.T) {
	template := []Window{{Start: 600, End: 640}, {Start: 495, End: 535}, {Start: 535, End: 575}}

	got := FreeWindows(template, nil, nil, testNow, DefaultHoldTimeout)

	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].End, got[i].Start, "windows must be ordered and pairwise disjoint")
	}
}

func TestFreeWindows_DegenerateTemplateWindowDropped(t *testing.T) {
	template := []Window{{Start: 535, End: 535}, {Start: 575, End: 535}}
	assert.Empty(t, FreeWindows(template, nil, nil, testNow, DefaultHoldTimeout))
}

func TestHoldExpired(t *testing.T) {
	created := testNow.Add(-16 * time.Minute)

	assert.True(t, HoldExpired(model.StatusTemp, model.PayUnpaid, created, testNow, DefaultReapCutoff))
	assert.True(t, HoldExpired(model.StatusOnHold, model.PayPendingAdmin, created, testNow, DefaultReapCutoff))
	// paid holds survive
	assert.False(t, HoldExpired(model.StatusOnHold, model.PayPaid, created, testNow, DefaultReapCutoff))
	// confirmed and completed rows are outside the predicate entirely
	assert.False(t, HoldExpired(model.StatusConfirmed, model.PayUnpaid, created, testNow, DefaultReapCutoff))
	assert.False(t, HoldExpired(model.StatusCompleted, model.PayPaid, created, testNow, DefaultReapCutoff))
	// a hold exactly at the cutoff boundary counts as expired
	boundary := testNow.Add(-DefaultReapCutoff)
	assert.True(t, HoldExpired(model.StatusTemp, model.PayUnpaid, boundary, testNow, DefaultReapCutoff))
	// one second inside the window is still alive
	alive := testNow.Add(-DefaultReapCutoff + time.Second)
	assert.False(t, HoldExpired(model.StatusTemp, model.PayUnpaid, alive, testNow, DefaultReapCutoff))
}
