package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"barberbook/internal/availability"
	"barberbook/internal/booking"
	"barberbook/internal/handlers"
	"barberbook/internal/notifier"
	"barberbook/internal/outbox"
	"barberbook/internal/reminders"
	"barberbook/internal/storage"
	"barberbook/libs/config"
	"barberbook/libs/db"
	"barberbook/libs/httpx"
	"barberbook/libs/kafkax"
	otelx "barberbook/libs/otel"
	"barberbook/libs/runtime"
)

const serviceName = "barberbook"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger := runtime.NewLogger(serviceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	port, err := config.Port("PORT", "8080")
	if err != nil {
		return err
	}
	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		return err
	}
	brokers := config.String("KAFKA_BROKERS", "localhost:9092")
	topic := config.String("KAFKA_TOPIC", "booking.events")

	shutdownOtel, err := otelx.Setup(ctx, otelx.ConfigFromEnv(serviceName))
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}

	pool, err := db.Open(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool.Pool)
	appts := storage.NewAppointmentRepository(pool.Pool, outboxRepo)
	shops := storage.NewShopRepository(pool.Pool)

	slots := availability.NewService(shops, appts)
	bookings := booking.NewService(appts, shops, slots, booking.Config{
		CancelCutoff:           time.Duration(config.Int("CANCEL_CUTOFF_HOURS", 2)) * time.Hour,
		CancelCompletedAllowed: config.Bool("CANCEL_COMPLETED_ALLOWED", false),
	})
	reminderSvc := reminders.NewService(appts)

	publisher := outbox.NewPublisher(outboxRepo, brokers, topic, logger)
	go publisher.Run(ctx)

	if config.Bool("REMINDER_WORKER_ENABLED", true) {
		interval := time.Duration(config.Int("REMINDER_POLL_SECONDS", 30)) * time.Second
		worker := reminders.NewWorker(reminderSvc, logger, interval)
		go worker.Run(ctx)
	}

	if config.Bool("NOTIFIER_ENABLED", true) {
		n := notifier.NewNotifier(pool.Pool, logger)
		consumer := notifier.NewConsumer(logger, notifier.NewInbox(pool.Pool), notifier.ConsumerConfig{
			Brokers: brokers,
			GroupID: serviceName + "-notifier",
			Topic:   topic,
		}, n.Handle)
		go consumer.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "postgres", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handlers.NewAppointmentHandler(bookings, logger).Register(mux)
	handlers.NewSlotHandler(slots).Register(mux)
	handlers.NewReminderHandler(reminderSvc).Register(mux)

	limiter := rateLimiter(logger)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(corsPolicy()),
		limiter,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
		httpx.WithBearerAuth(jwtSecret, "/healthz", "/readyz"),
	)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, serviceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := shutdownOtel(shutdownCtx); err != nil {
		logger.Error("otel shutdown", "error", err)
	}
	return nil
}

// rateLimiter prefers the shared Redis limiter when REDIS_ADDR is set so
// multiple instances enforce one budget; otherwise falls back to the
// in-process limiter.
func rateLimiter(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_RPM", 120)
	window := time.Minute

	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return httpx.NewRateLimiter(limit, window).Middleware()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return httpx.NewRedisRateLimiter(rdb, limit, window, serviceName).Middleware(logger, true)
}

func corsPolicy() httpx.CORSPolicy {
	raw := config.String("CORS_ALLOWED_ORIGINS", "")
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return httpx.CORSPolicy{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
		MaxAge:         10 * time.Minute,
	}
}
