package handler

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
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

// ReaperHandler cancels stale unpaid holds.  It is triggered by an
// external scheduler (cron hitting the endpoint) rather than an in-process
// ticker, so running several instances behind a load balancer needs no
// extra coordination: row locks inside the sweep keep concurrent runs
// from double-cancelling.
type ReaperHandler struct {
	ReservationRepo *repository.ReservationRepo
	Token           string
	Cutoff          time.Duration
	RDB             *redis.Client
	CachePrefix     string
}

// NewReaperHandler constructs a ReaperHandler.  Token must be non-empty
// or every request is rejected.
func NewReaperHandler(res *repository.ReservationRepo, token string, cutoff time.Duration, rdb *redis.Client, cachePrefix string) *ReaperHandler {
	if res == nil {
		panic("nil repository passed to NewReaperHandler")
	}
	if cutoff <= 0 {
		cutoff = schedule.DefaultReapCutoff
	}
	return &ReaperHandler{
		ReservationRepo: res,
		Token:           token,
		Cutoff:          cutoff,
		RDB:             rdb,
		CachePrefix:     cachePrefix,
	}
}

// authorized checks the bearer token in constant time.
func (h *ReaperHandler) authorized(c echo.Context) bool {
	if h.Token == "" {
		return false
	}
	auth := c.Request().Header.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == auth {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.Token)) == 1
}

// Run handles POST /v1/reap.  Every TEMP or ON_HOLD
// reservation older than the cutoff whose payment has not settled is
// cancelled.  The cutoff defaults to the configured value and can be
// overridden per call with ?minutes=N.  Cancelled rows get an audit note,
// their availability caches are busted and a cancellation event is
// published per victim.
func (h *ReaperHandler) Run(c echo.Context) error {
	if !h.authorized(c) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	cutoffDur := h.Cutoff
	if raw := c.QueryParam("minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "minutes must be a positive integer"})
		}
		cutoffDur = time.Duration(n) * time.Minute
	}
	cutoff := time.Now().UTC().Add(-cutoffDur)

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

	note := "cancelled by stale-hold reaper"
	temp, err := h.ReservationRepo.ReapStaleTx(ctx, tx, model.StatusTemp, cutoff, note)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reap TEMP holds"})
	}
	onHold, err := h.ReservationRepo.ReapStaleTx(ctx, tx, model.StatusOnHold, cutoff, note)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reap ON_HOLD holds"})
	}
	// A TEMP hold that never produced a payment signal carries no money
	// trail; soft-delete it so it stops appearing in student listings.
	// The row and its audit note survive.
	for _, res := range temp {
		if res.PaymentStatus != model.PayUnpaid {
			continue
		}
		if err := h.ReservationRepo.SoftDeleteTx(ctx, tx, res.ID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to clean reaped holds"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	now := time.Now().UTC().Format(time.RFC3339)
	for _, res := range append(temp, onHold...) {
		middleware.BustAvailability(ctx, h.RDB, h.CachePrefix, res.InstructorID, res.LessonDate)
		_ = queue_publisher.PublishBookingCancelled(ctx, queue.BookingCancelledEvent{
			ReservationID: res.ID,
			InstructorID:  res.InstructorID,
			StudentID:     res.StudentID,
			LessonDate:    res.LessonDate,
			StartTime:     schedule.FormatMinute(res.StartMinute),
			EndTime:       schedule.FormatMinute(res.EndMinute),
			Reason:        note,
			CancelledAt:   now,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"temp":    len(temp),
		"on_hold": len(onHold),
	})
}
