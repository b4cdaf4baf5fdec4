package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/ids"
)

// Enqueuer is the write-side queue surface consumed by the gateway, the CLI
// and the dispatch handlers that chain follow-up commands.
type Enqueuer interface {
	Enqueue(ctx context.Context, cmd Command) (string, error)
	// EnqueueDelayed makes the command claimable only after roughly delay
	// (rounded up to the next power-of-two seconds, see delayAttempts).
	EnqueueDelayed(ctx context.Context, cmd Command, delay time.Duration) (string, error)
}

// Store is the durable queue surface a worker runs against.
type Store interface {
	Enqueuer
	// BeginBatch opens the transaction that scopes one claim-and-process
	// cycle. Nothing a batch does is visible until Commit.
	BeginBatch(ctx context.Context) (Batch, error)
	// AwaitSignal blocks up to timeout for a wake-up signal that new work
	// may be available. It shortens the poll interval; the claim query's
	// eligibility filter stays authoritative.
	AwaitSignal(ctx context.Context, timeout time.Duration) (bool, error)
}

// Batch is one claim-and-process transaction.
type Batch interface {
	// Claim locks up to limit eligible pending entries, oldest first,
	// skipping entries already locked by a concurrent claimer.
	Claim(ctx context.Context, typeFilter string, limit int) ([]Entry, error)
	// UpdateStatus is the only mutation path after insert. A non-empty
	// lastError increments attempts; updated_at is always refreshed.
	UpdateStatus(ctx context.Context, id string, status Status, lastError string) error
	Commit() error
	Rollback() error
}

const notifyChannel = "command_queue"

// PostgresStore is the production queue backed by a single command_queue
// table. Claims use FOR UPDATE SKIP LOCKED so concurrent workers never queue
// behind each other; enqueue signals waiting workers over LISTEN/NOTIFY.
type PostgresStore struct {
	db       *sql.DB
	listener *pq.Listener
}

// NewPostgresStore wraps db. listenDSN is only needed by worker processes;
// enqueue-only callers (gateway, CLI) may pass the empty string, in which
// case AwaitSignal degrades to a plain sleep.
func NewPostgresStore(db *sql.DB, listenDSN string) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if listenDSN != "" {
		s.listener = pq.NewListener(listenDSN, 10*time.Second, time.Minute, nil)
		if err := s.listener.Listen(notifyChannel); err != nil {
			return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
		}
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *PostgresStore) Enqueue(ctx context.Context, cmd Command) (string, error) {
	return s.insert(ctx, cmd, 0)
}

func (s *PostgresStore) EnqueueDelayed(ctx context.Context, cmd Command, delay time.Duration) (string, error) {
	return s.insert(ctx, cmd, delayAttempts(delay))
}

func (s *PostgresStore) insert(ctx context.Context, cmd Command, attempts int) (string, error) {
	payload, err := EncodePayload(cmd)
	if err != nil {
		return "", err
	}
	id := ids.New()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO command_queue (id, status, type, payload, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULL, now(), now())`,
		id, StatusPending, cmd.CommandType(), payload, attempts)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", cmd.CommandType(), err)
	}
	// Best effort: a missed notification only delays pickup until the next
	// poll timeout.
	_, _ = s.db.ExecContext(ctx, `NOTIFY `+notifyChannel)
	return id, nil
}

func (s *PostgresStore) BeginBatch(ctx context.Context) (Batch, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &pgBatch{tx: tx}, nil
}

func (s *PostgresStore) AwaitSignal(ctx context.Context, timeout time.Duration) (bool, error) {
	if s.listener == nil {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(timeout):
			return false, nil
		}
	}
	select {
	case <-s.listener.Notify:
		// A nil notification marks a reconnect; treat it as a wake-up too
		// since work may have arrived while the connection was down.
		return true, nil
	case <-time.After(timeout):
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

type pgBatch struct {
	tx *sql.Tx
}

func (b *pgBatch) Claim(ctx context.Context, typeFilter string, limit int) ([]Entry, error) {
	query := `
		SELECT id, status, type, payload, attempts, COALESCE(last_error, ''), created_at, updated_at
		FROM command_queue
		WHERE status = $1
		  AND (attempts = 0 OR updated_at + (power(2, attempts) || ' seconds')::interval <= now())`
	args := []any{StatusPending}
	if typeFilter != TypeAny && typeFilter != "" {
		query += ` AND type = $2`
		args = append(args, typeFilter)
	}
	query += fmt.Sprintf(`
		ORDER BY created_at, id
		LIMIT $%d
		FOR UPDATE SKIP LOCKED`, len(args)+1)
	args = append(args, limit)

	rows, err := b.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Status, &e.Type, &e.Payload, &e.Attempts, &e.LastError, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (b *pgBatch) UpdateStatus(ctx context.Context, id string, status Status, lastError string) error {
	var err error
	if lastError != "" {
		_, err = b.tx.ExecContext(ctx, `
			UPDATE command_queue
			SET status = $1, last_error = $2, attempts = attempts + 1, updated_at = now()
			WHERE id = $3`,
			status, lastError, id)
	} else {
		_, err = b.tx.ExecContext(ctx, `
			UPDATE command_queue
			SET status = $1, last_error = NULL, updated_at = now()
			WHERE id = $2`,
			status, id)
	}
	if err != nil {
		return fmt.Errorf("update status %s: %w", id, err)
	}
	return nil
}

func (b *pgBatch) Commit() error   { return b.tx.Commit() }
func (b *pgBatch) Rollback() error { return b.tx.Rollback() }
