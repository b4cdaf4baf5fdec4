package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// WorkerConfig captures all tunable parameters for a command queue worker
// process. Values are loaded from environment variables with defaults so the
// binary can run locally without excessive setup.
type WorkerConfig struct {
	PGDSN         string
	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	BatchSize     int
	MaxAttempts   int
	SignalTimeout time.Duration
	ErrorPause    time.Duration
	ReportEvery   time.Duration

	MetricsAddr   string
	LogLevel      string
	RunMigrations bool
}

func defaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		RedisGeoKey:   "drivers_geo",
		BatchSize:     5,
		MaxAttempts:   5,
		SignalTimeout: 10 * time.Second,
		ErrorPause:    time.Second,
		ReportEvery:   time.Minute,
		MetricsAddr:   ":2112",
		LogLevel:      "info",
	}
}

func LoadWorkerConfig() (WorkerConfig, error) {
	cfg := defaultWorkerConfig()
	var errs []error

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	setIntFromEnv(&cfg.BatchSize, "WORKER_BATCH_SIZE", &errs)
	setIntFromEnv(&cfg.MaxAttempts, "WORKER_MAX_ATTEMPTS", &errs)
	setDurationFromEnv(&cfg.SignalTimeout, "WORKER_SIGNAL_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ErrorPause, "WORKER_ERROR_PAUSE", &errs)
	setDurationFromEnv(&cfg.ReportEvery, "WORKER_REPORT_EVERY", &errs)

	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.PGDSN == "" {
		errs = append(errs, fmt.Errorf("PG_DSN is required"))
	}
	if cfg.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("REDIS_ADDR is required"))
	}
	if cfg.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_BATCH_SIZE must be > 0"))
	}
	if cfg.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_MAX_ATTEMPTS must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

// GatewayConfig is the HTTP/WebSocket gateway process configuration.
type GatewayConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	PGDSN         string
	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel      string
	RunMigrations bool
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisGeoKey:     "drivers_geo",
		KafkaTopic:      "driver-locations",
		LogLevel:        "info",
	}
}

func LoadGatewayConfig() (GatewayConfig, error) {
	cfg := defaultGatewayConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.PGDSN == "" {
		errs = append(errs, fmt.Errorf("PG_DSN is required"))
	}
	if cfg.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("REDIS_ADDR is required"))
	}

	return cfg, errors.Join(errs...)
}

// LocationsConfig configures the Kafka driver-location consumer.
type LocationsConfig struct {
	PGDSN string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	MetricsAddr string
	LogLevel    string
}

func LoadLocationsConfig() (LocationsConfig, error) {
	cfg := LocationsConfig{
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "driver-locations",
		KafkaGroup:   "ride-dispatch-locations",
		MetricsAddr:  ":2113",
		LogLevel:     "info",
	}
	var errs []error

	cfg.PGDSN = os.Getenv("PG_DSN")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.PGDSN == "" {
		errs = append(errs, fmt.Errorf("PG_DSN is required"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
