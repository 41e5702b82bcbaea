package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// revocationKeyPrefix is the Redis key prefix for per-subject revocation epochs.
const revocationKeyPrefix = "revoked:"

// RedisRevocations implements RevocationStore on Redis. The epoch is stored
// as a unix timestamp with a TTL equal to the longest token lifetime: once
// every token issued before the epoch has expired on its own, the key is
// useless and Redis drops it.
type RedisRevocations struct {
	rdb       *redis.Client
	retention time.Duration
}

// NewRedisRevocations creates a Redis-backed revocation store. retention
// should be the longest configured token TTL (see TTLs.Longest).
func NewRedisRevocations(rdb *redis.Client, retention time.Duration) *RedisRevocations {
	return &RedisRevocations{rdb: rdb, retention: retention}
}

func (r *RedisRevocations) RevokedSince(ctx context.Context, subject string) (time.Time, error) {
	val, err := r.rdb.Get(ctx, revocationKeyPrefix+subject).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading revocation epoch: %w", err)
	}

	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing revocation epoch %q: %w", val, err)
	}
	return time.Unix(unix, 0), nil
}

func (r *RedisRevocations) Revoke(ctx context.Context, subject string) error {
	epoch := strconv.FormatInt(time.Now().Unix(), 10)
	if err := r.rdb.Set(ctx, revocationKeyPrefix+subject, epoch, r.retention).Err(); err != nil {
		return fmt.Errorf("storing revocation epoch: %w", err)
	}
	return nil
}
