package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
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

// PaymentHandler drives the three payment rails.  Cash is a claim that an
// administrator later confirms, checkout delegates to the external
// provider and settles via signed webhook (or an admin-triggered poll),
// credits settle immediately against the stored balance.  Every settling
// path funnels through the same state machine and updates reservation,
// payment status and invoice in one transaction.
type PaymentHandler struct {
	ReservationRepo *repository.ReservationRepo
	InvoiceRepo     *repository.InvoiceRepo
	CreditRepo      *repository.CreditRepo
	Provider        payment.Provider
	WebhookSecret   string
	RDB             *redis.Client
	CachePrefix     string
}

// NewPaymentHandler constructs a PaymentHandler.  Repositories must be
// non-nil; Provider may be nil when the checkout rail is disabled.
func NewPaymentHandler(res *repository.ReservationRepo, inv *repository.InvoiceRepo, cred *repository.CreditRepo, provider payment.Provider, webhookSecret string, rdb *redis.Client, cachePrefix string) *PaymentHandler {
	if res == nil || inv == nil || cred == nil {
		panic("nil repository passed to NewPaymentHandler")
	}
	return &PaymentHandler{
		ReservationRepo: res,
		InvoiceRepo:     inv,
		CreditRepo:      cred,
		Provider:        provider,
		WebhookSecret:   webhookSecret,
		RDB:             rdb,
		CachePrefix:     cachePrefix,
	}
}

// ClaimCash handles POST /v1/reservations/:id/pay/claim.  The student
// reports that they will (or did) pay in cash; the payment parks in
// PENDING_ADMIN and the reservation moves to ON_HOLD until an
// administrator settles it.  The claim never marks anything as paid and
// does not stop the clock: a claim nobody settles still expires at the
// reap cutoff.
func (h *PaymentHandler) ClaimCash(c echo.Context) error {
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
	if res.Status == model.StatusCancelled || res.Status == model.StatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrConflict.Error()})
	}

	next, changed, err := payment.ClaimCash(res.PaymentStatus)
	if err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	if changed {
		if err := h.ReservationRepo.SetPaymentTx(ctx, tx, resID, next, model.StatusOnHold); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update payment status"})
		}
		if err := h.ReservationRepo.SetMethodTx(ctx, tx, resID, model.MethodCash); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update payment method"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{
		"reservation_id": resID,
		"payment_status": next,
	})
}

// Checkout handles POST /v1/reservations/:id/pay/checkout.  It registers
// an order with the external provider using the reservation ID as the
// merchant reference and returns the redirect URL.  The provider call
// happens before the transaction; the webhook (or a poll) settles the
// payment later.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	studentID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if h.Provider == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "online checkout is not configured"})
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
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservation"})
	}
	if res.StudentID != studentID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": repository.ErrForbidden.Error()})
	}
	if res.Status == model.StatusCancelled || res.Status == model.StatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrConflict.Error()})
	}
	if res.PaymentStatus == model.PayPaid {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is already paid"})
	}
	inv, err := h.InvoiceRepo.GetByReservation(ctx, resID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load invoice"})
	}

	// Register the order before touching local state so a provider
	// failure leaves nothing to roll back.
	order, err := h.Provider.CreateOrder(ctx, strconv.FormatUint(resID, 10), inv.AmountCents, inv.Currency)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "checkout provider unavailable"})
	}

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
	if _, err := h.ReservationRepo.GetForUpdateTx(ctx, tx, resID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock reservation"})
	}
	if err := h.ReservationRepo.SetMethodTx(ctx, tx, resID, model.MethodOnline); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update payment method"})
	}
	if err := h.ReservationRepo.SetStatusTx(ctx, tx, resID, model.StatusOnHold, ""); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update reservation"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	return c.JSON(http.StatusOK, echo.Map{
		"reservation_id": resID,
		"order_id":       order.OrderID,
		"redirect_url":   order.RedirectURL,
	})
}

// PayWithCredits handles POST /v1/reservations/:id/pay/credits.  One
// lesson credit is debited and the payment settles immediately; balance
// check, debit, payment transition and invoice update share a single
// transaction so a failed debit cannot leave a paid reservation behind.
// Returns 402 when the balance is empty.
func (h *PaymentHandler) PayWithCredits(c echo.Context) error {
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
	if res.Status == model.StatusCancelled || res.Status == model.StatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": repository.ErrConflict.Error()})
	}

	next, changed, err := payment.DebitCredits(res.PaymentStatus)
	if err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	if !changed {
		return c.JSON(http.StatusOK, echo.Map{
			"reservation_id": resID,
			"payment_status": res.PaymentStatus,
		})
	}
	if err := h.CreditRepo.DebitTx(ctx, tx, studentID, model.CreditLesson); err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			return c.JSON(http.StatusPaymentRequired, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to debit credits"})
	}
	if err := h.ReservationRepo.SetPaymentTx(ctx, tx, resID, next, payment.ReservationStatusFor(next)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update payment status"})
	}
	if err := h.ReservationRepo.SetMethodTx(ctx, tx, resID, model.MethodCredits); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update payment method"})
	}
	inv, err := h.InvoiceRepo.GetByReservationTx(ctx, tx, resID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load invoice"})
	}
	if err := h.InvoiceRepo.SetStatusTx(ctx, tx, inv.ID, payment.InvoiceStatusFor(next), model.MethodCredits); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update invoice"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	middleware.BustAvailability(ctx, h.RDB, h.CachePrefix, res.InstructorID, res.LessonDate)
	_ = queue_publisher.PublishBookingConfirmed(ctx, queue.BookingConfirmedEvent{
		ReservationID: res.ID,
		InstructorID:  res.InstructorID,
		StudentID:     res.StudentID,
		LessonDate:    res.LessonDate,
		StartTime:     schedule.FormatMinute(res.StartMinute),
		EndTime:       schedule.FormatMinute(res.EndMinute),
		PaymentMethod: model.MethodCredits,
		InvoiceNumber: inv.Number(),
		AmountCents:   inv.AmountCents,
		ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusOK, echo.Map{
		"reservation_id": resID,
		"payment_status": next,
		"status":         model.StatusConfirmed,
	})
}

// MyCredits handles GET /v1/my-credits.  It returns the caller's
// remaining balance per credit type so a student can see whether the
// credit rail is open to them before booking.
func (h *PaymentHandler) MyCredits(c echo.Context) error {
	studentID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	lesson, err := h.CreditRepo.Remaining(ctx, studentID, model.CreditLesson)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load credits"})
	}
	exam, err := h.CreditRepo.Remaining(ctx, studentID, model.CreditExam)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load credits"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"lesson": lesson,
		"exam":   exam,
	})
}

// webhookPayload is the body the checkout provider posts back.
type webhookPayload struct {
	MerchantReference string `json:"merchant_reference"`
	Status            string `json:"status"`
}

// Webhook handles POST /v1/payments/webhook.  The raw body is verified
// against the shared secret before it is parsed; requests with a missing
// or wrong X-Signature are rejected with 401.  Deliveries are idempotent:
// a status that changes nothing answers 200, a settling or failing one
// answers 202.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	if err := payment.VerifySignature(body, c.Request().Header.Get("X-Signature"), h.WebhookSecret); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	resID, err := strconv.ParseUint(payload.MerchantReference, 10, 64)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown merchant reference"})
	}
	return h.applyProviderStatus(c, resID, payload.Status, http.StatusAccepted)
}

// Poll handles POST /v1/admin/payments/:id/poll.  An administrator asks the
// provider for the order status directly, covering lost webhook
// deliveries.  The answer feeds through the same mapping as the webhook.
func (h *PaymentHandler) Poll(c echo.Context) error {
	if h.Provider == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "online checkout is not configured"})
	}
	resID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	reported, err := h.Provider.OrderStatus(c.Request().Context(), strconv.FormatUint(resID, 10))
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "checkout provider unavailable"})
	}
	return h.applyProviderStatus(c, resID, reported, http.StatusOK)
}

// applyProviderStatus maps a provider-reported status onto the local
// reservation, invoice included, inside one transaction.  changedCode is
// the HTTP status answered when the report actually moved state; no-ops
// always answer 200.
func (h *PaymentHandler) applyProviderStatus(c echo.Context, resID uint64, reported string, changedCode int) error {
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
		// Cancelled and completed lifecycles are terminal.  A late report
		// for a hold the reaper already cancelled must not confirm a slot
		// availability has re-offered; the money, if any, is a manual
		// reconciliation case.
		return c.JSON(http.StatusOK, echo.Map{
			"reservation_id": resID,
			"payment_status": res.PaymentStatus,
			"status":         res.Status,
			"changed":        false,
		})
	}

	next, changed := payment.ApplyProvider(res.PaymentStatus, reported)
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
		method = model.MethodOnline
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
			PaymentMethod: model.MethodOnline,
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
			Reason:        "payment failed",
			CancelledAt:   now,
		})
	}
	return c.JSON(changedCode, echo.Map{
		"reservation_id": resID,
		"payment_status": next,
		"changed":        true,
	})
}
