package middleware

// cache.go caches availability responses in Redis.  Availability is the
// hottest read in the system and recomputing it on every poll is wasted
// work, but a stale answer must never survive a booking: every mutating
// path (create, cancel, move, pay, reap) calls BustAvailability for the
// slots it touched.  When Redis is unavailable the middleware becomes a
// pass-through.

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/lesson-slot-booking/internal/config"
)

// availabilityKey builds the cache key for one instructor and date.  The
// key is deterministic so mutating handlers can target it exactly.
func availabilityKey(prefix, instructorID, date string) string {
	return fmt.Sprintf("%s:avail:%s:%s", prefix, instructorID, date)
}

// BustAvailability drops the cached availability for one instructor and
// date.  Errors are ignored: a failed delete only means one TTL period of
// staleness, and the caller's transaction has already committed.
func BustAvailability(ctx context.Context, rdb *redis.Client, prefix string, instructorID uint64, date string) {
	if rdb == nil {
		return
	}
	_ = rdb.Del(ctx, availabilityKey(prefix, fmt.Sprint(instructorID), date)).Err()
}

// bodyCapture captures the response body while forwarding it to the client.
type bodyCapture struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (w *bodyCapture) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }
func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// AvailabilityCache serves GET availability responses from Redis.  Only
// 200 responses are stored; the entry expires after cfg.TTL as a backstop
// on top of the explicit busting done by mutating handlers.
func AvailabilityCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.EqualFold(c.Request().Method, http.MethodGet) {
				return next(c)
			}
			instructorID := c.QueryParam("instructor_id")
			date := c.QueryParam("date")
			if instructorID == "" || date == "" {
				// malformed requests answer 200 with an empty list anyway;
				// don't waste cache slots on them
				return next(c)
			}
			ctx := c.Request().Context()
			key := availabilityKey(cfg.Prefix, instructorID, date)

			if body, err := rdb.Get(ctx, key).Bytes(); err == nil && len(body) > 0 {
				c.Response().Header().Set("X-Cache", "HIT")
				return c.JSONBlob(http.StatusOK, body)
			}

			cw := &bodyCapture{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status == http.StatusOK && cw.buf.Len() > 0 {
				_ = rdb.SetEx(context.Background(), key, cw.buf.Bytes(), ttl).Err()
			}
			return nil
		}
	}
}
