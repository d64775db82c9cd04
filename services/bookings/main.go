package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/hotel-bookings/pkg/cache"
	"github.com/diagnosis/hotel-bookings/pkg/config"
	"github.com/diagnosis/hotel-bookings/pkg/database"
	"github.com/diagnosis/hotel-bookings/pkg/events"
	"github.com/diagnosis/hotel-bookings/pkg/logger"
	mw "github.com/diagnosis/hotel-bookings/pkg/middleware"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/handlers"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/repository"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", "error", err)
	}
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Error("Failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL, "bookings")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Idempotency replay is optional; the service runs without Redis.
	var idempotent func(http.Handler) http.Handler
	if rdb, err := cache.NewRedisClient(ctx, cfg.Redis); err != nil {
		logger.Warn("Redis unavailable, idempotency keys disabled", "error", err)
	} else {
		defer rdb.Close()
		idempotent = mw.IdempotencyMiddleware(cache.NewRedisIdempotencyStore(rdb), cfg.Redis.IdempotencyTTL)
	}

	// Initialize services
	store := repository.NewStore(pool)
	clock := domain.Clock(domain.SystemClock)

	h := handlers.New(handlers.Services{
		Accounts:     service.NewAccountService(store, cfg),
		Rooms:        service.NewRoomService(store, cfg),
		Availability: service.NewAvailabilityService(store, cfg, clock),
		Bookings:     service.NewBookingService(store, eventBus, cfg, clock),
		Reviews:      service.NewReviewService(store, eventBus, cfg, clock),
	}, cfg)

	// Setup router
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings"))
	r.Use(mw.Logging)
	r.Use(mw.CORS(cfg.Server.AllowedOrigins))
	r.Use(mw.Health)
	r.Mount("/", h.Routes(idempotent))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down bookings service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Bookings service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting bookings service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Bookings service error", "error", err)
		os.Exit(1)
	}
}
