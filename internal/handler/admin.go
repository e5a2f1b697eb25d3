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
	"github.com/iliyamo/lesson-slot-booking/internal/payment"
	"github.com/iliyamo/lesson-slot-booking/internal/queue"
	"github.com/iliyamo/lesson-slot-booking/internal/repository"
	"github.com/iliyamo/lesson-slot-booking/internal/schedule"
	queue_publisher "github.com/iliyamo/lesson-slot-booking/internal/service"
)

// AdminHandler groups the staff-side operations: settling or declining
// cash claims, moving and completing reservations, unbooking on a
// teacher's behalf and managing blocked ranges on a calendar.  The
// capability gate decides which role may reach which route; the handler
// itself does not re-check roles.
type AdminHandler struct {
	InstructorRepo  *repository.InstructorRepo
	BlockedRepo     *repository.BlockedRangeRepo
	ReservationRepo *repository.ReservationRepo
	InvoiceRepo     *repository.InvoiceRepo
	CreditRepo      *repository.CreditRepo
	RDB             *redis.Client
	CachePrefix     string
	HoldTimeout     time.Duration
}

// NewAdminHandler constructs an AdminHandler; all repositories must be
// non-nil.
func NewAdminHandler(ins *repository.InstructorRepo, blk *repository.BlockedRangeRepo, res *repository.ReservationRepo, inv *repository.InvoiceRepo, cred *repository.CreditRepo, rdb *redis.Client, cachePrefix string, holdTimeout time.Duration) *AdminHandler {
	if ins == nil || blk == nil || res == nil || inv == nil || cred == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{
		InstructorRepo:  ins,
		BlockedRepo:     blk,
		ReservationRepo: res,
		InvoiceRepo:     inv,
		CreditRepo:      cred,
		RDB:             rdb,
		CachePrefix:     cachePrefix,
		HoldTimeout:     holdTimeout,
	}
}

// settle applies an admin confirm or decline to a locked reservation and
// keeps the invoice in step.  It is the shared core of ConfirmPayment and
// DeclinePayment.
func (h *AdminHandler) settle(c echo.Context, apply func(string) (string, bool, error)) error {
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
	if res.Status == model.StatusCancelled || res.Status == model.StatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrConflict.Error()})
	}

	next, changed, err := apply(res.PaymentStatus)
	if err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	if !changed {
		return c.JSON(http.StatusOK, echo.Map{
			"reservation_id": resID,
			"payment_status": res.PaymentStatus,
			"changed":        false,
		})
	}
	if err := h.ReservationRepo.SetPaymentTx(ctx, tx, resID, next, payment.ReservationStatusFor(next)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update payment status"})
	}
	inv, err := h.InvoiceRepo.GetByReservationTx(ctx, tx, resID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load invoice"})
	}
	method := ""
	if next == model.PayPaid {
		method = res.PaymentMethod
	}
	if err := h.InvoiceRepo.SetStatusTx(ctx, tx, inv.ID, payment.InvoiceStatusFor(next), method); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update invoice"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	middleware.BustAvailability(ctx, h.RDB, h.CachePrefix, res.InstructorID, res.LessonDate)
	now := time.Now().UTC().Format(time.RFC3339)
	switch next {
	case model.PayPaid:
		_ = queue_publisher.PublishBookingConfirmed(ctx, queue.BookingConfirmedEvent{
			ReservationID: res.ID,
			InstructorID:  res.InstructorID,
			StudentID:     res.StudentID,
			LessonDate:    res.LessonDate,
			StartTime:     schedule.FormatMinute(res.StartMinute),
			EndTime:       schedule.FormatMinute(res.EndMinute),
			PaymentMethod: res.PaymentMethod,
			InvoiceNumber: inv.Number(),
			AmountCents:   inv.AmountCents,
			ConfirmedAt:   now,
		})
	case model.PayFailed:
		_ = queue_publisher.PublishBookingCancelled(ctx, queue.BookingCancelledEvent{
			ReservationID: res.ID,
			InstructorID:  res.InstructorID,
			StudentID:     res.StudentID,
			LessonDate:    res.LessonDate,
			StartTime:     schedule.FormatMinute(res.StartMinute),
			EndTime:       schedule.FormatMinute(res.EndMinute),
			Reason:        "payment declined",
			CancelledAt:   now,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation_id": resID,
		"payment_status": next,
		"changed":        true,
	})
}

// ConfirmPayment handles POST /v1/admin/reservations/:id/confirm-payment.
// It settles a cash (or on-location) payment: the reservation confirms,
// the invoice is marked paid.
func (h *AdminHandler) ConfirmPayment(c echo.Context) error {
	return h.settle(c, payment.AdminConfirm)
}

// DeclinePayment handles POST /v1/admin/reservations/:id/decline-payment.
// The payment fails, the slot is released and the invoice voided.  No
// credits change hands; declining is not a refund.
func (h *AdminHandler) DeclinePayment(c echo.Context) error {
	return h.settle(c, payment.AdminDecline)
}

type moveRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Move handles POST /v1/admin/reservations/:id/move.  The reservation is
// relocated to another free window on the same instructor's calendar.
// Payment state travels with the reservation untouched.  The availability
// check excludes the reservation itself so moving within its own window
// is legal.
func (h *AdminHandler) Move(c echo.Context) error {
	resID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body moveRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
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
	if res.Status == model.StatusCancelled || res.Status == model.StatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrConflict.Error()})
	}
	if _, err := h.InstructorRepo.LockTx(ctx, tx, res.InstructorID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock instructor"})
	}
	free, err := freeWindowsTx(ctx, tx, h.InstructorRepo, h.BlockedRepo, h.ReservationRepo,
		res.InstructorID, body.Date, resID, time.Now().UTC(), h.HoldTimeout)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check availability"})
	}
	if !windowFree(free, start, end) {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrSlotTaken.Error()})
	}
	if err := h.ReservationRepo.MoveTx(ctx, tx, resID, body.Date, start, end); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to move reservation"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	ctxBust := c.Request().Context()
	middleware.BustAvailability(ctxBust, h.RDB, h.CachePrefix, res.InstructorID, res.LessonDate)
	if body.Date != res.LessonDate {
		middleware.BustAvailability(ctxBust, h.RDB, h.CachePrefix, res.InstructorID, body.Date)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation_id": resID,
		"date":           body.Date,
		"start_time":     schedule.FormatMinute(start),
		"end_time":       schedule.FormatMinute(end),
	})
}

// Complete handles POST /v1/admin/reservations/:id/complete.  Only a
// confirmed reservation can complete; completing twice is an idempotent
// 200.
func (h *AdminHandler) Complete(c echo.Context) error {
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
	if res.Status == model.StatusCompleted {
		return c.JSON(http.StatusOK, echo.Map{"reservation_id": resID, "status": res.Status})
	}
	if res.Status != model.StatusConfirmed {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrConflict.Error()})
	}
	if err := h.ReservationRepo.MarkCompletedTx(ctx, tx, resID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to complete reservation"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"reservation_id": resID, "status": model.StatusCompleted})
}

// Unbook handles POST /v1/admin/reservations/:id/unbook.  A teacher (or
// admin) releases a student's slot.  When the reservation was paid with
// credits the credit flows back to the student and the paid invoice
// stands; any other payment state is cancelled and the invoice voided.
func (h *AdminHandler) Unbook(c echo.Context) error {
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
	if res.Status == model.StatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrConflict.Error()})
	}
	if res.Status == model.StatusCancelled {
		return c.NoContent(http.StatusNoContent)
	}

	if err := h.ReservationRepo.SetStatusTx(ctx, tx, resID, model.StatusCancelled, "unbooked by staff"); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservation"})
	}
	refunded := false
	if res.PaymentStatus == model.PayPaid && res.PaymentMethod == model.MethodCredits {
		// Staff-initiated release returns the credit; payment and
		// invoice stay settled.
		if err := h.CreditRepo.RefundTx(ctx, tx, res.StudentID, model.CreditLesson); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refund credit"})
		}
		refunded = true
	} else if res.PaymentStatus != model.PayPaid {
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
		Reason:        "unbooked by staff",
		CancelledAt:   time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusOK, echo.Map{
		"reservation_id":  resID,
		"status":          model.StatusCancelled,
		"credit_refunded": refunded,
	})
}

type createBlockRequest struct {
	Date      string `json:"date"`
	AllDay    bool   `json:"all_day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

// CreateBlock handles POST /v1/admin/instructors/:id/blocks.  Blocks
// close template windows; a window touched by a block disappears whole
// from availability.  Existing reservations are deliberately untouched.
func (h *AdminHandler) CreateBlock(c echo.Context) error {
	instructorID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid instructor id"})
	}
	var body createBlockRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if _, err := parseDate(body.Date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
	}
	blk := &model.BlockedRange{
		InstructorID: instructorID,
		BlockDate:    body.Date,
		AllDay:       body.AllDay,
		Reason:       body.Reason,
	}
	if !body.AllDay {
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
		blk.StartMinute = start
		blk.EndMinute = end
	}
	ctx := c.Request().Context()
	if _, err := h.InstructorRepo.GetByID(ctx, instructorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "instructor not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.BlockedRepo.Create(ctx, blk); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create block"})
	}
	middleware.BustAvailability(ctx, h.RDB, h.CachePrefix, instructorID, body.Date)
	return c.JSON(http.StatusCreated, echo.Map{"block_id": blk.ID})
}

// ListBlocks handles GET /v1/admin/instructors/:id/blocks?date=YYYY-MM-DD.
func (h *AdminHandler) ListBlocks(c echo.Context) error {
	instructorID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid instructor id"})
	}
	date := c.QueryParam("date")
	if _, err := parseDate(date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
	}
	items, err := h.BlockedRepo.ListByInstructorDate(c.Request().Context(), instructorID, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load blocks"})
	}
	out := make([]echo.Map, 0, len(items))
	for _, b := range items {
		entry := echo.Map{
			"id":      b.ID,
			"date":    b.BlockDate,
			"all_day": b.AllDay,
			"reason":  b.Reason,
		}
		if !b.AllDay {
			entry["start_time"] = schedule.FormatMinute(b.StartMinute)
			entry["end_time"] = schedule.FormatMinute(b.EndMinute)
		}
		out = append(out, entry)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// DeleteBlock handles DELETE /v1/admin/instructors/:id/blocks/:block_id.
func (h *AdminHandler) DeleteBlock(c echo.Context) error {
	instructorID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid instructor id"})
	}
	blockID, err := paramID(c, "block_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid block id"})
	}
	ctx := c.Request().Context()
	// Load the block first; its date pins which cached availability
	// answer must be dropped after the delete.
	blk, err := h.BlockedRepo.GetByID(ctx, instructorID, blockID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "block not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load block"})
	}
	if err := h.BlockedRepo.Delete(ctx, instructorID, blockID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "block not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete block"})
	}
	middleware.BustAvailability(ctx, h.RDB, h.CachePrefix, instructorID, blk.BlockDate)
	return c.NoContent(http.StatusNoContent)
}
