package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*UserCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, time.Hour), mr
}

var alice = UserProjection{
	ID:         "11111111-2222-4333-8444-555555555555",
	Username:   "alice",
	Email:      "alice@example.com",
	IsVerified: true,
	Role:       "user",
}

func TestSetThenGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, alice); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(ctx, "alice")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != alice {
		t.Errorf("expected %+v, got %+v", alice, got)
	}
}

func TestGet_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	if _, ok := c.Get(context.Background(), "nobody"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestGet_AfterTTLElapses(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, alice); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, ok := c.Get(ctx, "alice"); ok {
		t.Error("expected miss after TTL elapsed")
	}
}

func TestSet_Overwrites(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, alice); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	updated := alice
	updated.Role = "admin"
	if err := c.Set(ctx, updated); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(ctx, "alice")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Role != "admin" {
		t.Errorf("expected last write to win, got role %s", got.Role)
	}
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, alice); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Get(ctx, "alice"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDelete_AbsentKeyIsNoop(t *testing.T) {
	c, _ := newTestCache(t)
	if err := c.Delete(context.Background(), "nobody"); err != nil {
		t.Errorf("expected deleting absent key to succeed, got %v", err)
	}
}

func TestGet_RedisDownDegradesToMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, alice); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.Close()

	// Reads must degrade to a miss, never return an error to the caller.
	if _, ok := c.Get(ctx, "alice"); ok {
		t.Error("expected miss while redis is down")
	}
}

func TestGet_CorruptEntryDegradesToMiss(t *testing.T) {
	c, mr := newTestCache(t)

	mr.Set("user:alice", "{not json")

	if _, ok := c.Get(context.Background(), "alice"); ok {
		t.Error("expected corrupt entry to be treated as a miss")
	}
}
