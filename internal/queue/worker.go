package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ride-dispatch/internal/observability"
)

// PayloadHandler consumes one stored command payload. The Registry is the
// production implementation.
type PayloadHandler interface {
	HandlePayload(ctx context.Context, payload []byte) error
}

// Worker drains the command queue: one transaction per poll cycle, claiming
// a batch and dispatching each entry in claim order. A handler failure sends
// that entry back to pending (or failed once attempts run out) and never
// aborts the rest of the batch; claim or commit failures roll the whole
// batch back so every entry stays claimable.
type Worker struct {
	Store   Store
	Handler PayloadHandler

	// BatchSize defaults to 5, MaxAttempts to 5, TypeFilter to TypeAny.
	BatchSize   int
	MaxAttempts int
	TypeFilter  string
	Logger      *slog.Logger
}

// Process runs a single claim-and-dispatch cycle and returns how many
// commands reached completed status.
func (w *Worker) Process(ctx context.Context) (int, error) {
	batchSize := w.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	typeFilter := w.TypeFilter
	if typeFilter == "" {
		typeFilter = TypeAny
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	batch, err := w.Store.BeginBatch(ctx)
	if err != nil {
		observability.WorkerBatchErrors.Inc()
		return 0, err
	}

	entries, err := batch.Claim(ctx, typeFilter, batchSize)
	if err != nil {
		_ = batch.Rollback()
		observability.WorkerBatchErrors.Inc()
		return 0, err
	}

	processed := 0
	for _, e := range entries {
		if err := batch.UpdateStatus(ctx, e.ID, StatusProcessing, ""); err != nil {
			_ = batch.Rollback()
			return 0, err
		}

		if handleErr := w.Handler.HandlePayload(ctx, e.Payload); handleErr != nil {
			status := StatusPending
			if e.Attempts+1 >= maxAttempts {
				status = StatusFailed
			}
			msg := handleErr.Error()
			if msg == "" {
				msg = "handler failure"
			}
			if err := batch.UpdateStatus(ctx, e.ID, status, msg); err != nil {
				_ = batch.Rollback()
				return 0, err
			}
			if status == StatusFailed {
				observability.CommandsFailed.WithLabelValues(e.Type).Inc()
				logger.Error("command failed permanently", "id", e.ID, "type", e.Type, "attempts", e.Attempts+1, "error", handleErr)
			} else {
				observability.CommandsRetried.WithLabelValues(e.Type).Inc()
				logger.Warn("command failed, will retry", "id", e.ID, "type", e.Type, "attempts", e.Attempts+1, "error", handleErr)
			}
			continue
		}

		if err := batch.UpdateStatus(ctx, e.ID, StatusCompleted, ""); err != nil {
			_ = batch.Rollback()
			return 0, err
		}
		observability.CommandsCompleted.WithLabelValues(e.Type).Inc()
		processed++
	}

	if err := batch.Commit(); err != nil {
		_ = batch.Rollback()
		observability.WorkerBatchErrors.Inc()
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	observability.WorkerCycles.Inc()
	observability.BatchDuration.Observe(time.Since(start).Seconds())
	return processed, nil
}
