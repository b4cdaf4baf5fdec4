package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/db"
	"github.com/example/ride-dispatch/internal/driver"
	"github.com/example/ride-dispatch/internal/events"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/payments"
	"github.com/example/ride-dispatch/internal/queue"
	"github.com/example/ride-dispatch/internal/quote"
	"github.com/example/ride-dispatch/internal/ride"
)

func main() {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.PGDSN)
	if err != nil {
		logger.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, conn); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	store, err := queue.NewPostgresStore(conn, cfg.PGDSN)
	if err != nil {
		logger.Error("queue store init failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rc.Close()

	index := geo.NewRedisIndex(rc, cfg.RedisGeoKey)
	drivers := driver.NewService(driver.NewPostgresStore(conn), index, logger)
	finder := driver.NewClosestDriverFinder(index, driver.NewPostgresStore(conn))
	tracker := ride.NewRejectedDriverTracker(rc)
	publisher := events.NewRedisPublisher(rc)

	var charger ride.FareCharger
	if key := os.Getenv("STRIPE_API_KEY"); key != "" {
		charger = payments.NewStripeCharger(key, quote.DefaultFareConfig(), nil)
		logger.Info("fare charging enabled")
	}

	registry := queue.NewRegistry()
	rideHandlers := &ride.Handlers{
		Rides:     ride.NewPostgresStore(conn),
		Drivers:   drivers,
		Finder:    finder,
		Tracker:   tracker,
		Publisher: publisher,
		Queue:     store,
		Charger:   charger,
		Logger:    logger,
	}
	rideHandlers.Register(registry)
	driverHandlers := &driver.Handlers{Drivers: drivers}
	driverHandlers.Register(registry)

	worker := &queue.Worker{
		Store:       store,
		Handler:     registry,
		BatchSize:   cfg.BatchSize,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	}

	go serveMetrics(cfg.MetricsAddr, logger)

	logger.Info("worker starting",
		"batch_size", cfg.BatchSize,
		"max_attempts", cfg.MaxAttempts,
		"signal_timeout", cfg.SignalTimeout.String())

	run(ctx, cfg, worker, store, logger)
	logger.Info("worker stopped")
}

func run(ctx context.Context, cfg config.WorkerConfig, worker *queue.Worker, store queue.Store, logger *slog.Logger) {
	var processed, cycles, cycleErrors int
	report := time.NewTicker(cfg.ReportEvery)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-report.C:
			logger.Info("worker stats",
				"processed", processed, "cycles", cycles, "cycle_errors", cycleErrors)
		default:
		}

		n, err := worker.Process(ctx)
		cycles++
		processed += n
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			cycleErrors++
			// Claim/commit failures are infrastructure trouble; pause
			// briefly instead of spinning against a down database.
			logger.Error("batch failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.ErrorPause):
			}
			continue
		}
		if n > 0 {
			// More work may be immediately eligible; skip the wait.
			continue
		}

		if _, err := store.AwaitSignal(ctx, cfg.SignalTimeout); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn("await signal failed", "error", err)
		}
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
