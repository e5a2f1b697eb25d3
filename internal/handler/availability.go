package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lesson-slot-booking/internal/repository"
	"github.com/iliyamo/lesson-slot-booking/internal/schedule"
)

// AvailabilityHandler serves the public availability query.  It is a pure
// read: the calculator applies the same soft-expiry predicate as the
// reaper, so a stale unpaid hold stops hiding its slot the moment it
// times out, regardless of when the next sweep runs.
type AvailabilityHandler struct {
	InstructorRepo  *repository.InstructorRepo
	BlockedRepo     *repository.BlockedRangeRepo
	ReservationRepo *repository.ReservationRepo
	HoldTimeout     time.Duration
}

// NewAvailabilityHandler constructs an AvailabilityHandler.  All
// dependencies must be non-nil.
func NewAvailabilityHandler(ins *repository.InstructorRepo, blk *repository.BlockedRangeRepo, res *repository.ReservationRepo, holdTimeout time.Duration) *AvailabilityHandler {
	if ins == nil || blk == nil || res == nil {
		panic("nil repository passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{InstructorRepo: ins, BlockedRepo: blk, ReservationRepo: res, HoldTimeout: holdTimeout}
}

// Get handles GET /v1/availability?instructor_id=&date=.  It returns the
// ordered list of free windows for the instructor and date.  An invalid
// instructor, date or weekday without template windows yields an empty
// list, never an error.
func (h *AvailabilityHandler) Get(c echo.Context) error {
	empty := echo.Map{"items": []windowJSON{}}

	instructorID, err := strconv.ParseUint(c.QueryParam("instructor_id"), 10, 64)
	if err != nil || instructorID == 0 {
		return c.JSON(http.StatusOK, empty)
	}
	date := c.QueryParam("date")
	weekday, err := parseDate(date)
	if err != nil {
		return c.JSON(http.StatusOK, empty)
	}

	ctx := c.Request().Context()
	tpl, err := h.InstructorRepo.TemplateWindows(ctx, instructorID, int(weekday))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if len(tpl) == 0 {
		return c.JSON(http.StatusOK, empty)
	}
	blocks, err := h.BlockedRepo.ListByInstructorDate(ctx, instructorID, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	reservations, err := h.ReservationRepo.ListForDate(ctx, instructorID, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	free := schedule.FreeWindows(
		templateToWindows(tpl),
		blocksToSchedule(blocks),
		reservationsToBookings(reservations, 0),
		time.Now().UTC(),
		h.HoldTimeout,
	)
	return c.JSON(http.StatusOK, echo.Map{"items": toWindowJSON(free)})
}

// ListInstructors handles GET /v1/instructors.  It returns all active
// instructors for public browsing.
func (h *AvailabilityHandler) ListInstructors(c echo.Context) error {
	items, err := h.InstructorRepo.ListActive(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	type instructorJSON struct {
		ID              uint64 `json:"id"`
		Name            string `json:"name"`
		MaxParticipants int    `json:"max_participants"`
	}
	out := make([]instructorJSON, 0, len(items))
	for _, ins := range items {
		out = append(out, instructorJSON{ID: ins.ID, Name: ins.Name, MaxParticipants: ins.MaxParticipants})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
