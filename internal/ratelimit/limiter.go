// Package ratelimit provides per-identity, per-route-class admission control
// backed by Redis. Counters use a fixed window with an atomic
// check-and-increment (a Lua script), so two concurrent requests can never
// both take the last budget slot. Sharing counters through Redis keeps
// limits correct across multiple Warden replicas.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix is the Redis key prefix for rate-limit counters.
const keyPrefix = "ratelimit:"

// Policy is the budget for one route class: at most Max requests per Window
// per identity.
type Policy struct {
	Max    int
	Window time.Duration
}

// Result reports the outcome of one admission check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// incrScript atomically increments the window counter and stamps the window
// expiry on first hit. Returning count and TTL together keeps the
// check-and-increment race-free: there is no separate check-then-increment
// step for concurrent requests to interleave.
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Limiter admits or denies requests against per-route-class budgets.
type Limiter struct {
	rdb      *redis.Client
	policies map[string]Policy
	fallback Policy
}

// New creates a limiter. policies maps route classes (e.g., "login",
// "register") to budgets; fallback applies to any class without an entry.
func New(rdb *redis.Client, policies map[string]Policy, fallback Policy) *Limiter {
	return &Limiter{
		rdb:      rdb,
		policies: policies,
		fallback: fallback,
	}
}

// PolicyFor returns the budget configured for a route class, or the
// fallback policy when none is.
func (l *Limiter) PolicyFor(routeClass string) Policy {
	if p, ok := l.policies[routeClass]; ok {
		return p
	}
	return l.fallback
}

// Allow performs one admission check for the given identity (client IP or
// authenticated subject) against the route class budget. On a returned
// error the counter state is unknown; callers decide whether to fail open.
func (l *Limiter) Allow(ctx context.Context, routeClass, identity string) (Result, error) {
	policy := l.PolicyFor(routeClass)
	key := keyPrefix + routeClass + ":" + identity

	vals, err := incrScript.Run(ctx, l.rdb, []string{key}, policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply length %d", len(vals))
	}

	count := int(vals[0])
	ttl := time.Duration(vals[1]) * time.Millisecond

	if count > policy.Max {
		return Result{Allowed: false, Remaining: 0, RetryAfter: ttl}, nil
	}
	return Result{Allowed: true, Remaining: policy.Max - count, RetryAfter: 0}, nil
}

// Reset clears the counter for one identity in one route class. Used by tests
// and operational tooling, not by the request path.
func (l *Limiter) Reset(ctx context.Context, routeClass, identity string) error {
	return l.rdb.Del(ctx, keyPrefix+routeClass+":"+identity).Err()
}
