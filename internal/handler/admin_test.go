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

func newMockAdminHandler(t *testing.T) (*AdminHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	h := NewAdminHandler(
		repository.NewInstructorRepo(db),
		repository.NewBlockedRangeRepo(db),
		repository.NewReservationRepo(db),
		repository.NewInvoiceRepo(db),
		repository.NewCreditRepo(db),
		nil, "test", 10*time.Minute,
	)
	return h, mock
}

func deleteBlock(t *testing.T, h *AdminHandler, instructorID, blockID string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/v1/admin/instructors/"+instructorID+"/blocks/"+blockID, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id", "block_id")
	c.SetParamValues(instructorID, blockID)
	require.NoError(t, h.DeleteBlock(c))
	return rec
}

func TestDeleteBlockLoadsDateBeforeDeleting(t *testing.T) {
	// The block row is read first so the handler knows which date's
	// cached availability to drop; the client does not have to pass it.
	h, mock := newMockAdminHandler(t)
	mock.ExpectQuery("FROM blocked_ranges").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "instructor_id", "block_date", "all_day", "start_minute", "end_minute", "reason", "created_at",
		}).AddRow(9, 3, "2026-09-07", true, 0, 0, "holiday", time.Now().UTC()))
	mock.ExpectExec("DELETE FROM blocked_ranges").WillReturnResult(sqlmock.NewResult(0, 1))

	rec := deleteBlock(t, h, "3", "9")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBlockNotFound(t *testing.T) {
	h, mock := newMockAdminHandler(t)
	mock.ExpectQuery("FROM blocked_ranges").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "instructor_id", "block_date", "all_day", "start_minute", "end_minute", "reason", "created_at",
		}))

	rec := deleteBlock(t, h, "3", "9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
