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
	"github.com/diagnosis/hotel-bookings/pkg/events"
	"github.com/diagnosis/hotel-bookings/pkg/logger"
	mw "github.com/diagnosis/hotel-bookings/pkg/middleware"
	"github.com/diagnosis/hotel-bookings/services/notify/internal/mailer"
	"github.com/diagnosis/hotel-bookings/services/notify/internal/notifier"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", "error", err)
	}
	cfg := config.Load()
	ctx := context.Background()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL, "notify")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Redelivered events are skipped when Redis is reachable.
	var dedupe notifier.Deduper
	if rdb, err := cache.NewRedisClient(ctx, cfg.Redis); err != nil {
		logger.Warn("Redis unavailable, event dedupe disabled", "error", err)
	} else {
		defer rdb.Close()
		dedupe = cache.NewRedisIdempotencyStore(rdb)
	}

	n := notifier.New(mailer.New(cfg.Email), dedupe, cfg.Redis.IdempotencyTTL)
	for _, subject := range []string{events.BookingSubjects, events.ReviewSubjects} {
		if err := eventBus.QueueSubscribe(subject, cfg.NATS.Queue, n.Handle); err != nil {
			logger.Error("Failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Logging)
	r.Use(mw.Health)

	port := os.Getenv("NOTIFY_PORT")
	if port == "" {
		port = "8086"
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down notify service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Notify service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting notify service", "port", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Notify service error", "error", err)
		os.Exit(1)
	}
}
