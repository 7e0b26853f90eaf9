// README: Redis-backed dispatch audit trail: when a ride was dispatched, who
// was offered it, and how it settled. Best-effort; failures never stall a
// cascade.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pirideshare/internal/types"
)

const (
	dispatchedAtKeyPrefix = "dispatch:ride:%s:dispatched_at"
	offeredKeyPrefix      = "dispatch:ride:%s:offered"
	responsesKeyPrefix    = "dispatch:ride:%s:responses"
	outcomeKeyPrefix      = "dispatch:ride:%s:outcome"
	// Rides settle within minutes; keep the trail around long enough for
	// support lookups.
	auditTTL = 7 * 24 * time.Hour
)

type AuditStore struct {
	redis *redis.Client
}

func NewAuditStore(client *redis.Client) *AuditStore {
	return &AuditStore{redis: client}
}

// RecordDispatch stores the dispatch timestamp and the ranked candidate set.
func (s *AuditStore) RecordDispatch(ctx context.Context, rideID types.ID, driverIDs []types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.Set(ctx, dispatchedAtKey(rideID), time.Now().UTC().Format(time.RFC3339), auditTTL)
	if len(driverIDs) > 0 {
		members := make([]interface{}, len(driverIDs))
		for i, d := range driverIDs {
			members[i] = string(d)
		}
		key := fmt.Sprintf("dispatch:ride:%s:candidates", string(rideID))
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, auditTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// RecordOffer appends one offer to the ride's attempt list.
func (s *AuditStore) RecordOffer(ctx context.Context, rideID, driverID types.ID, attempt int) error {
	key := fmt.Sprintf(offeredKeyPrefix, string(rideID))
	pipe := s.redis.Pipeline()
	pipe.RPush(ctx, key, fmt.Sprintf("%d:%s", attempt, string(driverID)))
	pipe.Expire(ctx, key, auditTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RecordResponse appends a decline or timeout.
func (s *AuditStore) RecordResponse(ctx context.Context, rideID, driverID types.ID, outcome, reason string) error {
	key := fmt.Sprintf(responsesKeyPrefix, string(rideID))
	entry := fmt.Sprintf("%s:%s", string(driverID), outcome)
	if reason != "" {
		entry += ":" + reason
	}
	pipe := s.redis.Pipeline()
	pipe.RPush(ctx, key, entry)
	pipe.Expire(ctx, key, auditTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RecordOutcome stores the terminal status.
func (s *AuditStore) RecordOutcome(ctx context.Context, rideID types.ID, status string) error {
	return s.redis.Set(ctx, fmt.Sprintf(outcomeKeyPrefix, string(rideID)), status, auditTTL).Err()
}

// GetDispatchedAt returns when the ride was dispatched, if it was.
func (s *AuditStore) GetDispatchedAt(ctx context.Context, rideID types.ID) (time.Time, bool, error) {
	val, err := s.redis.Get(ctx, dispatchedAtKey(rideID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// Offers returns the offer sequence, in order.
func (s *AuditStore) Offers(ctx context.Context, rideID types.ID) ([]string, error) {
	return s.redis.LRange(ctx, fmt.Sprintf(offeredKeyPrefix, string(rideID)), 0, -1).Result()
}

func dispatchedAtKey(rideID types.ID) string {
	return fmt.Sprintf(dispatchedAtKeyPrefix, string(rideID))
}
