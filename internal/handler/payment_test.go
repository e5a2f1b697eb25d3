package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lesson-slot-booking/internal/payment"
	"github.com/iliyamo/lesson-slot-booking/internal/repository"
)

// reservationRows builds a one-row result set in the shape the
// reservation scanner expects.
func reservationRows(id, instructorID, studentID uint64, status, payStatus, method string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "instructor_id", "student_id", "lesson_date", "start_minute", "end_minute",
		"participants", "status", "payment_status", "payment_method", "notes", "completed_at",
		"deleted_at", "created_at", "updated_at",
	}).AddRow(id, instructorID, studentID, "2026-09-07", 495, 535, 1, status, payStatus, method, "", nil, nil, now, now)
}

// noReservationRows builds an empty result set with the reservation
// column shape.
func noReservationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "instructor_id", "student_id", "lesson_date", "start_minute", "end_minute",
		"participants", "status", "payment_status", "payment_method", "notes", "completed_at",
		"deleted_at", "created_at", "updated_at",
	})
}

func newMockPaymentHandler(t *testing.T) (*PaymentHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	h := NewPaymentHandler(
		repository.NewReservationRepo(db),
		repository.NewInvoiceRepo(db),
		repository.NewCreditRepo(db),
		nil, webhookTestSecret, nil, "test",
	)
	return h, mock
}

const webhookTestSecret = "test-webhook-secret"

func newWebhookHandler() *PaymentHandler {
	// Repositories are wired with a nil DB; the paths under test reject
	// the request before any query runs.
	return NewPaymentHandler(
		repository.NewReservationRepo(nil),
		repository.NewInvoiceRepo(nil),
		repository.NewCreditRepo(nil),
		nil, webhookTestSecret, nil, "test",
	)
}

func postWebhook(t *testing.T, h *PaymentHandler, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.Webhook(e.NewContext(req, rec)))
	return rec
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	rec := postWebhook(t, newWebhookHandler(), `{"merchant_reference":"1","status":"paid"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookRejectsWrongSignature(t *testing.T) {
	body := `{"merchant_reference":"1","status":"paid"}`
	wrong := payment.Sign([]byte(body), "some-other-secret")
	rec := postWebhook(t, newWebhookHandler(), body, wrong)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	signed := `{"merchant_reference":"1","status":"pending"}`
	tampered := `{"merchant_reference":"1","status":"paid"}`
	rec := postWebhook(t, newWebhookHandler(), tampered, payment.Sign([]byte(signed), webhookTestSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	body := `{"merchant_reference":`
	rec := postWebhook(t, newWebhookHandler(), body, payment.Sign([]byte(body), webhookTestSecret))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookUnknownMerchantReference(t *testing.T) {
	// A non-numeric reference can never match a reservation.
	body := `{"merchant_reference":"not-a-number","status":"paid"}`
	rec := postWebhook(t, newWebhookHandler(), body, payment.Sign([]byte(body), webhookTestSecret))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookDoesNotReviveCancelledReservation(t *testing.T) {
	// A "paid" report arriving after the reaper cancelled the hold must
	// be a no-op: the slot has been re-offered and a CONFIRMED write
	// here would double-book it.
	h, mock := newMockPaymentHandler(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations WHERE id").
		WillReturnRows(reservationRows(7, 3, 42, "CANCELLED", "UNPAID", "ONLINE"))
	mock.ExpectRollback()

	body := `{"merchant_reference":"7","status":"paid"}`
	rec := postWebhook(t, h, body, payment.Sign([]byte(body), webhookTestSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"changed":false`)
	assert.Contains(t, rec.Body.String(), `"payment_status":"UNPAID"`)
	// No UPDATE was expected; any reservation or invoice write would
	// have failed the mock.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayWithCreditsEmptyBalance(t *testing.T) {
	// Scenario: balance 0.  The debit fails inside the transaction, the
	// handler answers 402 and neither the reservation nor the invoice is
	// touched.
	h, mock := newMockPaymentHandler(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations WHERE id").
		WillReturnRows(reservationRows(7, 3, 42, "TEMP", "UNPAID", "CREDITS"))
	mock.ExpectQuery("SELECT remaining FROM credit_balances").
		WillReturnRows(sqlmock.NewRows([]string{"remaining"}))
	mock.ExpectRollback()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations/7/pay/credits", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")
	c.Set("user_id", float64(42))

	require.NoError(t, h.PayWithCredits(c))
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient credits")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMyCredits(t *testing.T) {
	h, mock := newMockPaymentHandler(t)
	mock.ExpectQuery("SELECT remaining FROM credit_balances").
		WillReturnRows(sqlmock.NewRows([]string{"remaining"}).AddRow(3))
	mock.ExpectQuery("SELECT remaining FROM credit_balances").
		WillReturnRows(sqlmock.NewRows([]string{"remaining"}))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/my-credits", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", float64(42))

	require.NoError(t, h.MyCredits(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lesson":3`)
	assert.Contains(t, rec.Body.String(), `"exam":0`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
