package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/db"
	"github.com/example/ride-dispatch/internal/driver"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/observability"
	"github.com/example/ride-dispatch/internal/queue"
)

// The locations consumer drains the kafka ping stream and turns each ping
// into an UpdateDriverLocation command, so position updates get the same
// durability and retry semantics as every other mutation.
func main() {
	cfg, err := config.LoadLocationsConfig()
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

	store, err := queue.NewPostgresStore(conn, "")
	if err != nil {
		logger.Error("queue store init failed", "error", err)
		os.Exit(1)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	logger.Info("locations consumer listening",
		"brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("locations consumer stopped")
				return
			}
			logger.Error("kafka read error", "error", err, "backoff", backoff.String())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		observability.LocationsConsumed.Inc()

		var ping ingest.LocationPing
		if err := json.Unmarshal(m.Value, &ping); err != nil {
			observability.LocationsInvalid.Inc()
			logger.Warn("invalid ping", "error", err)
			continue
		}
		if ping.DriverID == "" || ping.Location.Validate() != nil {
			observability.LocationsInvalid.Inc()
			continue
		}

		cmd := driver.UpdateDriverLocation{DriverID: ping.DriverID, Location: ping.Location}
		if _, err := store.Enqueue(ctx, cmd); err != nil {
			// A dropped ping is superseded by the next one; log and move on.
			logger.Error("enqueue ping failed", "driver_id", ping.DriverID, "error", err)
		}
	}
}
