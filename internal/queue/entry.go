package queue

import (
	"math"
	"time"
)

// Status is the lifecycle state of a queue entry. A row moves
// pending -> processing -> {completed | pending | failed}; processing is only
// ever observed inside the claiming worker's transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// TypeAny matches every command type when claiming a batch.
const TypeAny = "any"

// Entry is one durable command queue row.
type Entry struct {
	ID        string
	Status    Status
	Type      string
	Payload   []byte
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// backoffDelay is the single source of retry spacing: a row that has failed
// N times becomes claimable 2^N seconds after its last update. A row with no
// attempts has never failed (and is not a delayed enqueue, which seeds
// attempts >= 1), so it is claimable immediately.
func backoffDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	if attempts > 30 {
		attempts = 30
	}
	return time.Duration(1<<uint(attempts)) * time.Second
}

// EligibleAt returns the instant from which the entry may be claimed again.
func (e *Entry) EligibleAt() time.Time {
	return e.UpdatedAt.Add(backoffDelay(e.Attempts))
}

// delayAttempts computes the attempts value that makes a fresh row claimable
// only after roughly the requested delay. The delay rounds up to the next
// power of two: 30s becomes 2^5 = 32s. Any positive delay seeds at least one
// attempt, since attempts=0 means claimable now. Delayed rows therefore start
// with a non-zero attempts count and get correspondingly fewer retries.
func delayAttempts(delay time.Duration) int {
	secs := delay.Seconds()
	if secs <= 0 {
		return 0
	}
	n := int(math.Ceil(math.Log2(secs)))
	if n < 1 {
		return 1
	}
	return n
}
