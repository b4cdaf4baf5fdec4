package driver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/ride-dispatch/internal/geo"
)

// Store is the driver persistence surface. Mutations row-lock the driver
// so a status flip and a location ping for the same driver serialize.
type Store interface {
	Create(ctx context.Context, d Driver) (Driver, error)
	Get(ctx context.Context, id string) (Driver, error)
	UpdateStatus(ctx context.Context, id string, status Status) (Driver, error)
	UpdateLocation(ctx context.Context, id string, loc geo.Location) (Driver, error)
}

// PostgresStore implements Store on a drivers table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const driverColumns = `id, name, email, current_lat, current_lon, status, updated_at`

func scanDriver(row interface{ Scan(...any) error }) (Driver, error) {
	var d Driver
	err := row.Scan(&d.ID, &d.Name, &d.Email,
		&d.CurrentLocation.Lat, &d.CurrentLocation.Lon,
		&d.Status, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return Driver{}, ErrNotFound
	}
	if err != nil {
		return Driver{}, fmt.Errorf("scan driver: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) Create(ctx context.Context, d Driver) (Driver, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drivers (`+driverColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.Name, d.Email,
		d.CurrentLocation.Lat, d.CurrentLocation.Lon,
		d.Status, d.UpdatedAt)
	if err != nil {
		return Driver{}, fmt.Errorf("create driver %s: %w", d.ID, err)
	}
	return d, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Driver, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
	return scanDriver(row)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) (Driver, error) {
	return s.mutate(ctx, id, func(d Driver) Driver { return d.WithStatus(status) })
}

func (s *PostgresStore) UpdateLocation(ctx context.Context, id string, loc geo.Location) (Driver, error) {
	return s.mutate(ctx, id, func(d Driver) Driver { return d.WithLocation(loc) })
}

func (s *PostgresStore) mutate(ctx context.Context, id string, apply func(Driver) Driver) (Driver, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return Driver{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1 FOR UPDATE`, id)
	d, err := scanDriver(row)
	if err != nil {
		return Driver{}, err
	}

	updated := apply(d)
	_, err = tx.ExecContext(ctx, `
		UPDATE drivers
		SET current_lat = $1, current_lon = $2, status = $3, updated_at = $4
		WHERE id = $5`,
		updated.CurrentLocation.Lat, updated.CurrentLocation.Lon,
		updated.Status, updated.UpdatedAt, id)
	if err != nil {
		return Driver{}, fmt.Errorf("update driver %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return Driver{}, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}
