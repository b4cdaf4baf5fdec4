package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/db"
	"github.com/example/ride-dispatch/internal/driver"
	"github.com/example/ride-dispatch/internal/gateway"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/queue"
	"github.com/example/ride-dispatch/internal/quote"
	"github.com/example/ride-dispatch/internal/user"
)

func main() {
	cfg, err := config.LoadGatewayConfig()
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
	}

	// Enqueue-only: the gateway never claims, so no LISTEN connection.
	store, err := queue.NewPostgresStore(conn, "")
	if err != nil {
		logger.Error("queue store init failed", "error", err)
		os.Exit(1)
	}

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rc.Close()

	index := geo.NewRedisIndex(rc, cfg.RedisGeoKey)
	drivers := driver.NewService(driver.NewPostgresStore(conn), index, logger)

	quotes, err := quote.NewService(quote.DefaultFareConfig(), durationEstimator())
	if err != nil {
		logger.Error("quote service init failed", "error", err)
		os.Exit(1)
	}

	var locations *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		locations = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer locations.Close()
		logger.Info("location pings routed through kafka",
			"brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	sessions := gateway.NewRegistry()
	messages := &gateway.MessageHandler{
		Queue:    store,
		Quotes:   quotes,
		Drivers:  drivers,
		Sessions: sessions,
		Logger:   logger,
	}
	if locations != nil {
		messages.Locations = locations
	}

	subscriber := gateway.NewSubscriber(rc, sessions, logger)
	go func() {
		if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event subscriber stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      gateway.NewServer(messages, store, sessions, user.NewPostgresRepository(conn), logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

func durationEstimator() quote.DurationEstimator {
	if endpoint := os.Getenv("OSRM_ENDPOINT"); endpoint != "" {
		return quote.NewOSRMEstimator(endpoint)
	}
	return quote.SpeedEstimator{}
}
