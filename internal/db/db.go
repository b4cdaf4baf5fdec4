package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open connects to postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return conn, nil
}

// schema is idempotent; every statement guards with IF NOT EXISTS so the
// worker and the gateway can both run it at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS command_queue (
		id         uuid PRIMARY KEY,
		status     text NOT NULL,
		type       text NOT NULL,
		payload    jsonb NOT NULL,
		attempts   integer NOT NULL DEFAULT 0,
		last_error text,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	// Covers the claim query's status filter and its (created_at, id) order.
	`CREATE INDEX IF NOT EXISTS command_queue_claim_idx
		ON command_queue (status, created_at, id)`,
	`CREATE TABLE IF NOT EXISTS rides (
		id              uuid PRIMARY KEY,
		user_id         uuid NOT NULL,
		departure_lat   double precision NOT NULL,
		departure_lon   double precision NOT NULL,
		destination_lat double precision NOT NULL,
		destination_lon double precision NOT NULL,
		driver_id       uuid,
		state           text NOT NULL,
		created_at      timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS drivers (
		id          uuid PRIMARY KEY,
		name        text NOT NULL,
		email       text NOT NULL,
		current_lat double precision NOT NULL,
		current_lon double precision NOT NULL,
		status      text NOT NULL,
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS drivers_status_idx ON drivers (status)`,
	`CREATE TABLE IF NOT EXISTS users (
		id         uuid PRIMARY KEY,
		name       text NOT NULL,
		email      text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, conn *sql.DB) error {
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
