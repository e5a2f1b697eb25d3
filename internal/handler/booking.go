package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/lesson-slot-booking/internal/middleware"
	"github.com/iliyamo/lesson-slot-booking/internal/model"
	"github.com/iliyamo/lesson-slot-booking/internal/queue"
	"github.com/iliyamo/lesson-slot-booking/internal/repository"
	"github.com/iliyamo/lesson-slot-booking/internal/schedule"
	queue_publisher "github.com/iliyamo/lesson-slot-booking/internal/service"
)

// BookingHandler implements the student-facing reservation lifecycle:
// creating a tentative hold, listing, viewing and cancelling.  All
// methods assume JWT authentication and the capability gate have already
// run.  Critical DB operations run inside a transaction: create takes the
// instructor lock and re-runs the availability check before inserting, so
// two concurrent requests for the same slot cannot both commit.
type BookingHandler struct {
	InstructorRepo  *repository.InstructorRepo
	BlockedRepo     *repository.BlockedRangeRepo
	ReservationRepo *repository.ReservationRepo
	InvoiceRepo     *repository.InvoiceRepo
	RDB             *redis.Client
	CachePrefix     string
	HoldTimeout     time.Duration
	PriceCents      uint32
	Currency        string
	DueDays         int
}

// NewBookingHandler constructs a BookingHandler.  Repositories must be
// non-nil; RDB may be nil, in which case cache busting is a no-op.
func NewBookingHandler(ins *repository.InstructorRepo, blk *repository.BlockedRangeRepo, res *repository.ReservationRepo, inv *repository.InvoiceRepo, rdb *redis.Client, cachePrefix string, holdTimeout time.Duration, priceCents uint32, currency string, dueDays int) *BookingHandler {
	if ins == nil || blk == nil || res == nil || inv == nil {
		panic("nil repository passed to NewBookingHandler")
	}
	return &BookingHandler{
		InstructorRepo:  ins,
		BlockedRepo:     blk,
		ReservationRepo: res,
		InvoiceRepo:     inv,
		RDB:             rdb,
		CachePrefix:     cachePrefix,
		HoldTimeout:     holdTimeout,
		PriceCents:      priceCents,
		Currency:        currency,
		DueDays:         dueDays,
	}
}

type createBookingRequest struct {
	InstructorID  uint64 `json:"instructor_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Participants  int    `json:"participants"`
	PaymentMethod string `json:"payment_method"`
}

// Create handles POST /v1/reservations.  It validates the request,
// re-checks availability under the instructor lock and inserts a TEMP
// reservation together with its invoice in one transaction.  The hold
// expires after the configured timeout unless a payment signal arrives.
// Returns 201 with the reservation and invoice identifiers, 409 when a
// concurrent writer already filled the slot.
func (h *BookingHandler) Create(c echo.Context) error {
	studentID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.InstructorID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "instructor_id is required"})
	}
	if _, err := parseDate(body.Date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
	}
	start, err := schedule.ParseMinute(body.StartTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start_time"})
	}
	end, err := schedule.ParseMinute(body.EndTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_time"})
	}
	if start >= end {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be before end_time"})
	}
	if body.Participants == 0 {
		body.Participants = 1
	}
	if body.Participants < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "participants must be positive"})
	}
	method := body.PaymentMethod
	if method == "" {
		method = model.MethodCash
	}
	switch method {
	case model.MethodCash, model.MethodOnline, model.MethodCredits:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown payment_method"})
	}

	ctx := c.Request().Context()
	tx, err := h.ReservationRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the instructor row; every writer for this calendar serializes here.
	instructor, err := h.InstructorRepo.LockTx(ctx, tx, body.InstructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "instructor not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !instructor.IsActive {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "instructor is not bookable"})
	}
	if body.Participants > instructor.MaxParticipants {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "participants exceeds slot capacity"})
	}

	now := time.Now().UTC()
	free, err := freeWindowsTx(ctx, tx, h.InstructorRepo, h.BlockedRepo, h.ReservationRepo,
		body.InstructorID, body.Date, 0, now, h.HoldTimeout)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check availability"})
	}
	if !windowFree(free, start, end) {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrSlotTaken.Error()})
	}

	res := &model.Reservation{
		InstructorID:  body.InstructorID,
		StudentID:     studentID,
		LessonDate:    body.Date,
		StartMinute:   start,
		EndMinute:     end,
		Participants:  body.Participants,
		Status:        model.StatusTemp,
		PaymentStatus: model.PayUnpaid,
		PaymentMethod: method,
	}
	if err := h.ReservationRepo.CreateTx(ctx, tx, res); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create reservation"})
	}

	seq, err := h.InvoiceRepo.NextSeqTx(ctx, tx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to assign invoice number"})
	}
	inv := &model.Invoice{
		Seq:           seq,
		ReservationID: &res.ID,
		AmountCents:   h.PriceCents,
		Currency:      h.Currency,
		Status:        model.InvoiceOpen,
		PaymentMethod: method,
		DueAt:         now.AddDate(0, 0, h.DueDays),
	}
	if err := h.InvoiceRepo.CreateTx(ctx, tx, inv); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create invoice"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	middleware.BustAvailability(ctx, h.RDB, h.CachePrefix, body.InstructorID, body.Date)

	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id":  res.ID,
		"invoice_id":      inv.ID,
		"invoice_number":  inv.Number(),
		"status":          res.Status,
		"payment_status":  res.PaymentStatus,
		"hold_expires_at": res.CreatedAt.Add(h.HoldTimeout).Format(time.RFC3339),
	})
}

// reservationJSON is the wire form of a reservation.
type reservationJSON struct {
	ID            uint64 `json:"id"`
	InstructorID  uint64 `json:"instructor_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Participants  int    `json:"participants"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentMethod string `json:"payment_method"`
	CreatedAt     string `json:"created_at"`
}

func toReservationJSON(r *model.Reservation) reservationJSON {
	return reservationJSON{
		ID:            r.ID,
		InstructorID:  r.InstructorID,
		Date:          r.LessonDate,
		StartTime:     schedule.FormatMinute(r.StartMinute),
		EndTime:       schedule.FormatMinute(r.EndMinute),
		Participants:  r.Participants,
		Status:        r.Status,
		PaymentStatus: r.PaymentStatus,
		PaymentMethod: r.PaymentMethod,
		CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ListMine handles GET /v1/my-reservations.  It returns all reservations
// created by the current user, newest first.
func (h *BookingHandler) ListMine(c echo.Context) error {
	studentID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.ReservationRepo.ListByStudent(c.Request().Context(), studentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	out := make([]reservationJSON, 0, len(items))
	for i := range items {
		out = append(out, toReservationJSON(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Get handles GET /v1/reservations/:id.  It returns one reservation with
// its invoice for the authenticated user; 404 when it does not exist and
// 403 when it belongs to someone else.
func (h *BookingHandler) Get(c echo.Context) error {
	studentID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx := c.Request().Context()
	res, err := h.ReservationRepo.GetByID(ctx, resID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reservation"})
	}
	if res.StudentID != studentID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": repository.ErrForbidden.Error()})
	}
	payload := echo.Map{"item": toReservationJSON(res)}
	if inv, err := h.InvoiceRepo.GetByReservation(ctx, resID); err == nil {
		payload["invoice"] = echo.Map{
			"id":             inv.ID,
			"number":         inv.Number(),
			"amount_cents":   inv.AmountCents,
			"currency":       inv.Currency,
			"status":         inv.Status,
			"payment_method": inv.PaymentMethod,
			"due_at":         inv.DueAt.UTC().Format(time.RFC3339),
		}
	}
	return c.JSON(http.StatusOK, payload)
}

// Cancel handles DELETE /v1/reservations/:id.  The student may cancel
// their own reservation from any pre-COMPLETED state.  A paid reservation
// is cancelled without an automatic refund; refunds are a separate,
// explicit operation.  Unpaid cancellations void the invoice in the same
// transaction.
func (h *BookingHandler) Cancel(c echo.Context) error {
	studentID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx := c.Request().Context()
	tx, err := h.ReservationRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := h.ReservationRepo.GetForUpdateTx(ctx, tx, resID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservation"})
	}
	if res.StudentID != studentID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": repository.ErrForbidden.Error()})
	}
	if res.Status == model.StatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrConflict.Error()})
	}
	if res.Status == model.StatusCancelled {
		// cancelling twice is a no-op
		return c.NoContent(http.StatusNoContent)
	}

	if err := h.ReservationRepo.SetStatusTx(ctx, tx, resID, model.StatusCancelled, "cancelled by student"); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservation"})
	}
	if res.PaymentStatus != model.PayPaid {
		if err := h.ReservationRepo.SetPaymentTx(ctx, tx, resID, model.PayCancelled, ""); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update payment status"})
		}
		if inv, invErr := h.InvoiceRepo.GetByReservationTx(ctx, tx, resID); invErr == nil {
			if err := h.InvoiceRepo.SetStatusTx(ctx, tx, inv.ID, model.InvoiceVoid, ""); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to void invoice"})
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	middleware.BustAvailability(ctx, h.RDB, h.CachePrefix, res.InstructorID, res.LessonDate)
	_ = queue_publisher.PublishBookingCancelled(ctx, queue.BookingCancelledEvent{
		ReservationID: res.ID,
		InstructorID:  res.InstructorID,
		StudentID:     res.StudentID,
		LessonDate:    res.LessonDate,
		StartTime:     schedule.FormatMinute(res.StartMinute),
		EndTime:       schedule.FormatMinute(res.EndMinute),
		Reason:        "cancelled by student",
		CancelledAt:   time.Now().UTC().Format(time.RFC3339),
	})
	return c.NoContent(http.StatusNoContent)
}
