// Package cache keeps a fast-path Redis projection of authenticated-user
// state so the bearer-token middleware doesn't hit MariaDB on every request.
//
// The cache is advisory. Every read path that consults it falls back to the
// user repository on a miss, and every Redis failure -- including a slow
// call running past its per-operation timeout -- is absorbed as a miss. A
// cache outage makes Warden slower, never wrong.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// userKeyPrefix is the Redis key prefix for cached user projections.
const userKeyPrefix = "user:"

// defaultOpTimeout bounds each Redis call so a stalled cache can't hold up
// the request path. Exceeding it is treated as a miss.
const defaultOpTimeout = 250 * time.Millisecond

// UserProjection is the compact, re-derivable view of a user stored in the
// cache. It is keyed by username and must never be treated as the source of
// truth beyond its TTL -- role changes and password resets invalidate it.
type UserProjection struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	IsVerified bool    `json:"is_verified"`
	Role       string  `json:"role"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
}

// UserCache is a TTL'd key-value cache of user projections backed by the
// shared Redis client. Concurrent Set/Get on the same key is expected;
// last-write-wins is fine because the value is a projection, not a ledger.
type UserCache struct {
	rdb       *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
}

// New creates a user cache with the given entry TTL.
func New(rdb *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{
		rdb:       rdb,
		ttl:       ttl,
		opTimeout: defaultOpTimeout,
	}
}

// Set stores a projection under the user's username, overwriting any
// previous entry. Failures are returned so callers can log them, but no
// caller treats a failed Set as fatal.
func (c *UserCache) Set(ctx context.Context, p UserProjection) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling user projection: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, userKeyPrefix+p.Username, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("storing user projection: %w", err)
	}
	return nil
}

// Get returns the cached projection for a username. The second return is
// false on a miss -- whether from an absent key, an expired entry, a Redis
// error, or a timeout. Errors are logged at warn and swallowed; the caller's
// contract is simply hit-or-miss.
func (c *UserCache) Get(ctx context.Context, username string) (UserProjection, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.rdb.Get(ctx, userKeyPrefix+username).Bytes()
	if errors.Is(err, redis.Nil) {
		return UserProjection{}, false
	}
	if err != nil {
		slog.Warn("user cache read failed, treating as miss",
			slog.String("username", username),
			slog.Any("error", err),
		)
		return UserProjection{}, false
	}

	var p UserProjection
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("user cache entry corrupt, treating as miss",
			slog.String("username", username),
			slog.Any("error", err),
		)
		return UserProjection{}, false
	}
	return p, true
}

// Delete removes a user's cached projection. Called when the durable record
// changes in a way the projection must not outlive (password reset, role or
// avatar change).
func (c *UserCache) Delete(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.rdb.Del(ctx, userKeyPrefix+username).Err(); err != nil {
		return fmt.Errorf("deleting user projection: %w", err)
	}
	return nil
}
