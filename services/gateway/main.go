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
	"github.com/diagnosis/hotel-bookings/pkg/logger"
	mw "github.com/diagnosis/hotel-bookings/pkg/middleware"
	"github.com/diagnosis/hotel-bookings/services/gateway/internal/handlers"
	"github.com/diagnosis/hotel-bookings/services/gateway/internal/proxy"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", "error", err)
	}
	cfg := config.Load()
	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "8080"
	}

	bookingsProxy := proxy.NewServiceProxy("bookings", cfg.Gateway.BookingsURL, cfg.Gateway.UpstreamTimeout)
	notifyProxy := proxy.NewServiceProxy("notify", cfg.Gateway.NotifyURL, cfg.Gateway.UpstreamTimeout)
	h := handlers.New(bookingsProxy, notifyProxy)

	var counter mw.RateCounter
	rdb, err := cache.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
	} else {
		defer rdb.Close()
		counter = cache.NewRedisRateCounter(rdb, "ratelimit")
	}
	limiter := mw.NewRateLimiter(counter, mw.RateLimitConfig{
		Requests: cfg.Gateway.RateLimit,
		Window:   cfg.Gateway.RateWindow,
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gateway"))
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(mw.CORS(cfg.Server.AllowedOrigins))
	r.Use(mw.Health)

	r.Get("/status", h.Status)
	r.Route("/v1", func(r chi.Router) {
		r.Use(limiter.Middleware())
		r.HandleFunc("/*", h.Bookings("/v1"))
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Gateway.UpstreamTimeout + cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down gateway service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Gateway shutdown error", "error", err)
		}
	}()

	logger.Info("Starting gateway service", "port", port, "bookings", cfg.Gateway.BookingsURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Gateway server error", "error", err)
		os.Exit(1)
	}
}
