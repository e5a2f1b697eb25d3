package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lesson-slot-booking/internal/repository"
)

func postReap(t *testing.T, h *ReaperHandler, target, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.Run(e.NewContext(req, rec)))
	return rec
}

func TestReaperRejectsMissingToken(t *testing.T) {
	h := NewReaperHandler(repository.NewReservationRepo(nil), "s3cret", 15*time.Minute, nil, "test")
	rec := postReap(t, h, "/v1/reap", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReaperRejectsWrongToken(t *testing.T) {
	h := NewReaperHandler(repository.NewReservationRepo(nil), "s3cret", 15*time.Minute, nil, "test")
	rec := postReap(t, h, "/v1/reap", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReaperRejectsWhenNoTokenConfigured(t *testing.T) {
	// An empty configured token must not mean "open endpoint".
	h := NewReaperHandler(repository.NewReservationRepo(nil), "", 15*time.Minute, nil, "test")
	rec := postReap(t, h, "/v1/reap", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReaperSoftDeletesUnpaidTempHolds(t *testing.T) {
	// A reaped TEMP hold with no payment signal is cancelled and then
	// soft-deleted in the same sweep; ON_HOLD rows are only cancelled.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := NewReaperHandler(repository.NewReservationRepo(db), "s3cret", 15*time.Minute, nil, "test")

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations").
		WillReturnRows(reservationRows(7, 3, 42, "TEMP", "UNPAID", "CASH"))
	mock.ExpectExec("SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM reservations").
		WillReturnRows(noReservationRows())
	mock.ExpectExec("SET deleted_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := postReap(t, h, "/v1/reap", "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"temp":1`)
	assert.Contains(t, rec.Body.String(), `"on_hold":0`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReaperRejectsBadMinutes(t *testing.T) {
	h := NewReaperHandler(repository.NewReservationRepo(nil), "s3cret", 15*time.Minute, nil, "test")
	rec := postReap(t, h, "/v1/reap?minutes=zero", "s3cret")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postReap(t, h, "/v1/reap?minutes=-5", "s3cret")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
