package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lesson-slot-booking/internal/config"
	"github.com/iliyamo/lesson-slot-booking/internal/database"
	"github.com/iliyamo/lesson-slot-booking/internal/handler"
	"github.com/iliyamo/lesson-slot-booking/internal/payment"
	"github.com/iliyamo/lesson-slot-booking/internal/queue"
	"github.com/iliyamo/lesson-slot-booking/internal/repository"
	"github.com/iliyamo/lesson-slot-booking/internal/router"
)

func main() {
	// .env is a convenience for local development; in production the
	// variables come from the environment and the file is absent.
	_ = godotenv.Load()

	cfg := config.Load()
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the availability cache and the booking rate limiter.
	// nil means Redis is unreachable and both features degrade to no-ops.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, cache and rate limiting disabled")
	}

	instructorRepo := repository.NewInstructorRepo(db)
	blockedRepo := repository.NewBlockedRangeRepo(db)
	reservationRepo := repository.NewReservationRepo(db)
	invoiceRepo := repository.NewInvoiceRepo(db)
	creditRepo := repository.NewCreditRepo(db)

	provider := payment.NewHTTPProvider(cfg.ProviderBaseURL, cfg.ProviderAPIKey)

	h := router.Handlers{
		Availability: handler.NewAvailabilityHandler(instructorRepo, blockedRepo, reservationRepo, cfg.HoldTimeout),
		Booking: handler.NewBookingHandler(instructorRepo, blockedRepo, reservationRepo, invoiceRepo,
			rdb, cacheCfg.Prefix, cfg.HoldTimeout, cfg.LessonPriceCents, cfg.Currency, cfg.InvoiceDueDays),
		Payment: handler.NewPaymentHandler(reservationRepo, invoiceRepo, creditRepo,
			provider, cfg.WebhookSecret, rdb, cacheCfg.Prefix),
		Admin: handler.NewAdminHandler(instructorRepo, blockedRepo, reservationRepo, invoiceRepo, creditRepo,
			rdb, cacheCfg.Prefix, cfg.HoldTimeout),
		Reaper: handler.NewReaperHandler(reservationRepo, cfg.ReapToken, cfg.ReapCutoff, rdb, cacheCfg.Prefix),
	}

	e := echo.New()
	router.Register(e, h, cfg.JWTSecret, cacheCfg, rlCfg, rdb)

	// Consume booking events in the background; the consumer reconnects
	// on its own and must not block startup.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
