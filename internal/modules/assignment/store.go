// README: Redis-backed assignment attempt log and driver availability index.
package assignment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"swiftcab/internal/types"
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeConflict  Outcome = "conflict"
	OutcomeTransient Outcome = "transient_error"
)

// Attempt is the ephemeral record of one try at binding a driver to a
// booking. It drives observability of the retry loop and is never exposed
// externally.
type Attempt struct {
	BookingID types.ID  `json:"booking_id"`
	DriverID  types.ID  `json:"driver_id"`
	Outcome   Outcome   `json:"outcome"`
	At        time.Time `json:"at"`
}

const (
	attemptKeyPrefix = "assignment:booking:%s:attempts"
	availableSetKey  = "drivers:available"
	// Attempt records expire well after any retry budget is exhausted.
	attemptTTL = 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// RecordAttempt appends an attempt record with TTL. Failures here must never
// fail the assignment itself; callers ignore the error.
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(attemptKeyPrefix, string(a.BookingID))
	pipe := s.redis.Pipeline()
	pipe.RPush(ctx, key, body)
	pipe.Expire(ctx, key, attemptTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// MarkAvailable adds the driver to the availability set.
func (s *Store) MarkAvailable(ctx context.Context, id types.ID) error {
	if s == nil || s.redis == nil {
		return nil
	}
	return s.redis.SAdd(ctx, availableSetKey, string(id)).Err()
}

// MarkBusy removes the driver from the availability set.
func (s *Store) MarkBusy(ctx context.Context, id types.ID) error {
	if s == nil || s.redis == nil {
		return nil
	}
	return s.redis.SRem(ctx, availableSetKey, string(id)).Err()
}

// AvailableIDs returns the cached availability set. An empty or failed read
// means the caller should fall back to the authoritative store scan.
func (s *Store) AvailableIDs(ctx context.Context) []types.ID {
	if s == nil || s.redis == nil {
		return nil
	}
	members, err := s.redis.SMembers(ctx, availableSetKey).Result()
	if err != nil || len(members) == 0 {
		return nil
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids
}
