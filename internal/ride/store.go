package ride

import (
	"context"
	"database/sql"
	"fmt"
)

// Service is the ride persistence surface the dispatch handlers depend on.
// Every mutation runs in its own transaction that row-locks the ride,
// re-reads it and applies the transition, so concurrent commands for the
// same ride serialize at the row instead of relying on queue ordering.
type Service interface {
	Create(ctx context.Context, r Ride) (Ride, error)
	Get(ctx context.Context, id string) (Ride, error)
	MarkDispatching(ctx context.Context, id string) (Ride, error)
	ResetToRequested(ctx context.Context, id string) (Ride, error)
	// AssignDriver sets the driver exactly once; a second assignment
	// returns *AlreadyAssignedError and leaves the ride untouched.
	AssignDriver(ctx context.Context, id, driverID string) (Ride, error)
	Start(ctx context.Context, id string) (Ride, error)
	Cancel(ctx context.Context, id string) (Ride, error)
	Complete(ctx context.Context, id string) (Ride, error)
}

// PostgresStore implements Service on a rides table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const rideColumns = `id, user_id, departure_lat, departure_lon, destination_lat, destination_lon, driver_id, state, created_at`

func scanRide(row interface{ Scan(...any) error }) (Ride, error) {
	var r Ride
	var driverID sql.NullString
	err := row.Scan(&r.ID, &r.UserID,
		&r.DepartureLocation.Lat, &r.DepartureLocation.Lon,
		&r.DestinationLocation.Lat, &r.DestinationLocation.Lon,
		&driverID, &r.State, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return Ride{}, ErrNotFound
	}
	if err != nil {
		return Ride{}, fmt.Errorf("scan ride: %w", err)
	}
	r.DriverID = driverID.String
	return r, nil
}

func (s *PostgresStore) Create(ctx context.Context, r Ride) (Ride, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rides (`+rideColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		r.ID, r.UserID,
		r.DepartureLocation.Lat, r.DepartureLocation.Lon,
		r.DestinationLocation.Lat, r.DestinationLocation.Lon,
		r.DriverID, r.State, r.CreatedAt)
	if err != nil {
		return Ride{}, fmt.Errorf("create ride %s: %w", r.ID, err)
	}
	return r, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Ride, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	return scanRide(row)
}

func (s *PostgresStore) MarkDispatching(ctx context.Context, id string) (Ride, error) {
	return s.updateState(ctx, id, StateDispatching)
}

func (s *PostgresStore) ResetToRequested(ctx context.Context, id string) (Ride, error) {
	return s.updateState(ctx, id, StateRequested)
}

func (s *PostgresStore) Start(ctx context.Context, id string) (Ride, error) {
	return s.updateState(ctx, id, StateInProgress)
}

func (s *PostgresStore) Cancel(ctx context.Context, id string) (Ride, error) {
	return s.updateState(ctx, id, StateCancelled)
}

func (s *PostgresStore) Complete(ctx context.Context, id string) (Ride, error) {
	return s.updateState(ctx, id, StateCompleted)
}

func (s *PostgresStore) updateState(ctx context.Context, id string, state State) (Ride, error) {
	var updated Ride
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := findForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = r.WithState(state)
		_, err = tx.ExecContext(ctx,
			`UPDATE rides SET state = $1 WHERE id = $2`, updated.State, id)
		if err != nil {
			return fmt.Errorf("update ride %s state: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return Ride{}, err
	}
	return updated, nil
}

func (s *PostgresStore) AssignDriver(ctx context.Context, id, driverID string) (Ride, error) {
	var updated Ride
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := findForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if r.DriverID != "" {
			return &AlreadyAssignedError{RideID: id, AssignedDriverID: r.DriverID, AttemptedDriverID: driverID}
		}
		updated = r.WithDriver(driverID, StateDriverAccepted)
		res, err := tx.ExecContext(ctx,
			`UPDATE rides SET driver_id = $1, state = $2 WHERE id = $3 AND driver_id IS NULL`,
			driverID, updated.State, id)
		if err != nil {
			return fmt.Errorf("assign driver to ride %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &AlreadyAssignedError{RideID: id, AttemptedDriverID: driverID}
		}
		return nil
	})
	if err != nil {
		return Ride{}, err
	}
	return updated, nil
}

func findForUpdate(ctx context.Context, tx *sql.Tx, id string) (Ride, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE`, id)
	return scanRide(row)
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
