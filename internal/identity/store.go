// Package identity resolves the authoritative account tier for a stable
// user id. The external identity provider writes `tier:<user_id>` keys to
// Redis when an account is issued or its plan changes; this core only reads
// them. A join_queue payload's claimed tier is never trusted on its own —
// filter privileges follow the tier on record here.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TierPrefix is the Redis key prefix for tier records.
const TierPrefix = "tier:"

// Store reads tier records from Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a Store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Resolve returns the tier on record for a user id, or an empty string if
// the identity provider has none (the caller treats that as anonymous).
func (s *Store) Resolve(ctx context.Context, userID string) (string, error) {
	tier, err := s.client.Get(ctx, TierPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("identity: resolve %s: %w", userID, err)
	}
	return tier, nil
}

// SetTier writes a tier record. In production the identity provider owns
// these keys; this setter exists for tests and operational tooling.
func (s *Store) SetTier(ctx context.Context, userID, tier string, ttl time.Duration) error {
	return s.client.Set(ctx, TierPrefix+userID, tier, ttl).Err()
}
