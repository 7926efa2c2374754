// Package ban provides user and IP ban management backed by Redis.
// Ban records are stored as simple key-value pairs with TTL-based expiry:
//
//	Key:   ban:user:<user_id>  or  ban:ip:<ip>
//	Value: <reason>
//	TTL:   ban duration
package ban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// UserPrefix is the Redis key prefix for user ban records.
	UserPrefix = "ban:user:"

	// IPPrefix is the Redis key prefix for IP ban records.
	IPPrefix = "ban:ip:"

	// ReportsPrefix is the Redis key prefix for report counters used by the
	// escalating auto-ban system.
	ReportsPrefix = "reports:"

	// Escalating ban durations.
	Ban15Min  = 15 * time.Minute // 1st offense
	Ban1Hour  = 1 * time.Hour    // 2nd offense
	Ban24Hour = 24 * time.Hour   // 3rd+ offense

	// ReportsTTL is how long the offense counter lives in Redis. After 24h
	// without new offenses the counter resets to zero.
	ReportsTTL = 24 * time.Hour

	// AutoBanThreshold is the number of reports within ReportsTTL that
	// triggers an automatic ban.
	AutoBanThreshold = 3
)

// Store manages ban records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a new ban store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// IsBanned checks whether the user id or the IP is currently banned and
// returns the reason of whichever ban was found. Redis errors are returned
// so callers can decide how to handle them (the recommended policy is
// fail-open).
func (s *Store) IsBanned(ctx context.Context, userID, ip string) (bool, string, error) {
	if userID != "" {
		banned, reason, err := s.lookup(ctx, UserPrefix+userID)
		if err != nil || banned {
			return banned, reason, err
		}
	}
	if ip != "" {
		return s.lookup(ctx, IPPrefix+ip)
	}
	return false, "", nil
}

// lookup fetches one ban record.
func (s *Store) lookup(ctx context.Context, key string) (bool, string, error) {
	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, reason, nil
}

// Remaining returns the seconds left on a user's ban, or zero if the user
// is not banned.
func (s *Store) Remaining(ctx context.Context, userID string) (int, error) {
	ttl, err := s.client.TTL(ctx, UserPrefix+userID).Result()
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, nil
	}
	return int(ttl.Seconds()), nil
}

// BanUser sets a ban on a user id with the given duration and reason. The
// ban automatically expires after the specified duration.
func (s *Store) BanUser(ctx context.Context, userID string, duration time.Duration, reason string) error {
	return s.client.Set(ctx, UserPrefix+userID, reason, duration).Err()
}

// BanIP sets a ban on an IP address with the given duration and reason.
func (s *Store) BanIP(ctx context.Context, ip string, duration time.Duration, reason string) error {
	return s.client.Set(ctx, IPPrefix+ip, reason, duration).Err()
}

// Unban removes a user ban immediately.
func (s *Store) Unban(ctx context.Context, userID string) error {
	return s.client.Del(ctx, UserPrefix+userID).Err()
}

// ---------------------------------------------------------------------------
// Escalating auto-ban system
// ---------------------------------------------------------------------------

// escalationDuration returns the ban duration for a given offense count.
func escalationDuration(offenseCount int) time.Duration {
	switch {
	case offenseCount <= 1:
		return Ban15Min
	case offenseCount == 2:
		return Ban1Hour
	default:
		return Ban24Hour
	}
}

// OffenseCount returns the current offense/report counter for a user.
// Returns 0 if the key does not exist (no offenses recorded or counter
// expired).
func (s *Store) OffenseCount(ctx context.Context, userID string) (int, error) {
	val, err := s.client.Get(ctx, ReportsPrefix+userID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// ReportAndCheck increments the report counter for a user and checks whether
// the auto-ban threshold (3 reports in 24h) has been reached.
//
// If the threshold is met or exceeded, a ban with escalating duration is
// applied:
//
//	1st offense  -> 15 minutes
//	2nd offense  -> 1 hour
//	3rd+ offense -> 24 hours
//
// The counter's 24h TTL is set only on the first increment, so the window
// does not slide. Returns (banned, duration, error).
func (s *Store) ReportAndCheck(ctx context.Context, userID, reason string) (bool, time.Duration, error) {
	key := ReportsPrefix + userID

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ban: report incr: %w", err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, ReportsTTL).Err(); err != nil {
			return false, 0, fmt.Errorf("ban: report expire: %w", err)
		}
	}

	if count >= AutoBanThreshold {
		duration := escalationDuration(int(count))
		if err := s.BanUser(ctx, userID, duration, "multiple_reports"); err != nil {
			return false, 0, fmt.Errorf("ban: report ban: %w", err)
		}
		return true, duration, nil
	}

	return false, 0, nil
}
