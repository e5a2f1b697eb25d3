package handler

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lesson-slot-booking/internal/middleware"
	"github.com/iliyamo/lesson-slot-booking/internal/model"
	"github.com/iliyamo/lesson-slot-booking/internal/repository"
	"github.com/iliyamo/lesson-slot-booking/internal/schedule"
)

// dateLayout is the wire and storage format for lesson dates.
const dateLayout = "2006-01-02"

var errUnauthorized = errors.New("unauthorized")

// getUserID extracts the authenticated user's numeric ID from the Echo
// context, where JWTAuth stored the subject claim.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errUnauthorized
	}
	return id, nil
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// parseDate validates a YYYY-MM-DD date string and returns its weekday.
func parseDate(s string) (time.Weekday, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}

// windowJSON is the wire form of a free slot.
type windowJSON struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func toWindowJSON(windows []schedule.Window) []windowJSON {
	out := make([]windowJSON, 0, len(windows))
	for _, w := range windows {
		out = append(out, windowJSON{StartTime: schedule.FormatMinute(w.Start), EndTime: schedule.FormatMinute(w.End)})
	}
	return out
}

func templateToWindows(tpl []model.TemplateWindow) []schedule.Window {
	out := make([]schedule.Window, 0, len(tpl))
	for _, w := range tpl {
		out = append(out, schedule.Window{Start: w.StartMinute, End: w.EndMinute})
	}
	return out
}

func blocksToSchedule(blocks []model.BlockedRange) []schedule.Block {
	out := make([]schedule.Block, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, schedule.Block{AllDay: b.AllDay, Start: b.StartMinute, End: b.EndMinute})
	}
	return out
}

// reservationsToBookings projects reservations into the calculator's
// shape, dropping the one identified by excludeID (used by move so a
// reservation does not collide with itself).
func reservationsToBookings(items []model.Reservation, excludeID uint64) []schedule.Booking {
	out := make([]schedule.Booking, 0, len(items))
	for _, r := range items {
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		out = append(out, schedule.Booking{
			Start:         r.StartMinute,
			End:           r.EndMinute,
			Status:        r.Status,
			PaymentStatus: r.PaymentStatus,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out
}

// freeWindowsTx recomputes the free slots for one instructor and date
// inside an open transaction.  create and move call it under the
// instructor lock so the answer cannot be invalidated by a concurrent
// writer before the commit.
func freeWindowsTx(
	ctx context.Context,
	tx *sql.Tx,
	instructors *repository.InstructorRepo,
	blocks *repository.BlockedRangeRepo,
	reservations *repository.ReservationRepo,
	instructorID uint64,
	date string,
	excludeID uint64,
	now time.Time,
	holdTimeout time.Duration,
) ([]schedule.Window, error) {
	weekday, err := parseDate(date)
	if err != nil {
		return []schedule.Window{}, nil
	}
	tpl, err := instructors.TemplateWindowsTx(ctx, tx, instructorID, int(weekday))
	if err != nil {
		return nil, err
	}
	blk, err := blocks.ListByInstructorDateTx(ctx, tx, instructorID, date)
	if err != nil {
		return nil, err
	}
	res, err := reservations.ListForDateTx(ctx, tx, instructorID, date)
	if err != nil {
		return nil, err
	}
	return schedule.FreeWindows(
		templateToWindows(tpl),
		blocksToSchedule(blk),
		reservationsToBookings(res, excludeID),
		now, holdTimeout,
	), nil
}

// windowFree reports whether the requested range is one of the free
// windows.  Slots are template-defined and fixed-duration, so a booking
// must claim a window exactly rather than an arbitrary sub-range.
func windowFree(free []schedule.Window, start, end int) bool {
	for _, w := range free {
		if w.Start == start && w.End == end {
			return true
		}
	}
	return false
}
