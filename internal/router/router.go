// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/lesson-slot-booking/internal/config"
	"github.com/iliyamo/lesson-slot-booking/internal/handler"
	"github.com/iliyamo/lesson-slot-booking/internal/middleware"
)

// Handlers bundles every handler the router wires up.
type Handlers struct {
	Availability *handler.AvailabilityHandler
	Booking      *handler.BookingHandler
	Payment      *handler.PaymentHandler
	Admin        *handler.AdminHandler
	Reaper       *handler.ReaperHandler
}

// Register wires all routes onto the Echo instance.  Public endpoints
// (health, availability browse, the signed webhook, the token-gated
// reaper) carry no JWT; everything else goes through JWTAuth plus the
// capability gate for its operation.  The availability GET sits behind
// the Redis response cache and reservation creation behind the Redis
// token-bucket rate limiter; both fall through transparently when Redis
// is absent.
func Register(e *echo.Echo, h Handlers, jwtSecret string, cacheCfg config.CacheConfig, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Public browse surface.  No identity required to look at a calendar.
	e.GET("/v1/availability", h.Availability.Get, middleware.AvailabilityCache(cacheCfg, rdb))
	e.GET("/v1/instructors", h.Availability.ListInstructors)

	// The provider authenticates with the body signature, not a JWT.
	e.POST("/v1/payments/webhook", h.Payment.Webhook)

	// The reaper authenticates with its own shared-secret bearer token.
	e.POST("/v1/reap", h.Reaper.Run)

	// Everything below requires a valid access token.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))

	// Student-facing reservation lifecycle.
	auth.POST("/reservations", h.Booking.Create,
		middleware.Require(middleware.OpReserve),
		middleware.BookingRateLimit(rlCfg, rdb))
	auth.GET("/my-reservations", h.Booking.ListMine, middleware.Require(middleware.OpViewOwn))
	auth.GET("/my-credits", h.Payment.MyCredits, middleware.Require(middleware.OpViewOwn))
	auth.GET("/reservations/:id", h.Booking.Get, middleware.Require(middleware.OpViewOwn))
	auth.DELETE("/reservations/:id", h.Booking.Cancel, middleware.Require(middleware.OpCancelOwn))

	// Payment rails.
	auth.POST("/reservations/:id/pay/claim", h.Payment.ClaimCash, middleware.Require(middleware.OpPayClaim))
	auth.POST("/reservations/:id/pay/credits", h.Payment.PayWithCredits, middleware.Require(middleware.OpPayCredits))
	auth.POST("/reservations/:id/pay/checkout", h.Payment.Checkout, middleware.Require(middleware.OpPayCheckout))

	// Staff surface.
	admin := auth.Group("/admin")
	admin.POST("/reservations/:id/confirm-payment", h.Admin.ConfirmPayment, middleware.Require(middleware.OpConfirmPayment))
	admin.POST("/reservations/:id/decline-payment", h.Admin.DeclinePayment, middleware.Require(middleware.OpDeclinePayment))
	admin.POST("/reservations/:id/move", h.Admin.Move, middleware.Require(middleware.OpMove))
	admin.POST("/reservations/:id/complete", h.Admin.Complete, middleware.Require(middleware.OpComplete))
	admin.POST("/reservations/:id/unbook", h.Admin.Unbook, middleware.Require(middleware.OpUnbook))
	admin.POST("/payments/:id/poll", h.Payment.Poll, middleware.Require(middleware.OpPollPayment))

	admin.POST("/instructors/:id/blocks", h.Admin.CreateBlock, middleware.Require(middleware.OpManageBlocks))
	admin.GET("/instructors/:id/blocks", h.Admin.ListBlocks, middleware.Require(middleware.OpManageBlocks))
	admin.DELETE("/instructors/:id/blocks/:block_id", h.Admin.DeleteBlock, middleware.Require(middleware.OpManageBlocks))
}
