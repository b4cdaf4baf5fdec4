package ride

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// rejectionTTL bounds how long a rejection keeps a driver out of the
// candidate set for a ride. Dispatch for a single ride resolves well
// within this window.
const rejectionTTL = 5 * time.Minute

// rejectionSets is the subset of redis commands the tracker needs.
type rejectionSets interface {
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RejectedDriverTracker remembers which drivers declined or timed out on a
// ride, so retries widen the search instead of re-offering to the same
// driver. State lives in a redis set per ride and expires on its own.
type RejectedDriverTracker struct {
	client rejectionSets
}

func NewRejectedDriverTracker(client rejectionSets) *RejectedDriverTracker {
	return &RejectedDriverTracker{client: client}
}

func rejectionKey(rideID string) string {
	return fmt.Sprintf("ride:%s:rejected_drivers", rideID)
}

func (t *RejectedDriverTracker) Add(ctx context.Context, rideID, driverID string) error {
	key := rejectionKey(rideID)
	if err := t.client.SAdd(ctx, key, driverID).Err(); err != nil {
		return fmt.Errorf("track rejection for ride %s: %w", rideID, err)
	}
	if err := t.client.Expire(ctx, key, rejectionTTL).Err(); err != nil {
		return fmt.Errorf("expire rejections for ride %s: %w", rideID, err)
	}
	return nil
}

func (t *RejectedDriverTracker) RejectedDriverIDs(ctx context.Context, rideID string) ([]string, error) {
	ids, err := t.client.SMembers(ctx, rejectionKey(rideID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load rejections for ride %s: %w", rideID, err)
	}
	return ids, nil
}

// Clear drops the rejection set early instead of waiting for the TTL.
func (t *RejectedDriverTracker) Clear(ctx context.Context, rideID string) error {
	if err := t.client.Del(ctx, rejectionKey(rideID)).Err(); err != nil {
		return fmt.Errorf("clear rejections for ride %s: %w", rideID, err)
	}
	return nil
}
