package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr())
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "test", 30*time.Minute), mr, client
}

func TestRedisGetSet(t *testing.T) {
	ctx := context.Background()
	r, mr, _ := newTestRedis(t)

	if _, ok, err := r.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := r.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := r.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get = %q ok=%v err=%v", got, ok, err)
	}
	if ttl := mr.TTL("test:k"); ttl != 30*time.Minute {
		t.Fatalf("ttl=%v", ttl)
	}

	mr.FastForward(31 * time.Minute)
	if _, ok, _ := r.Get(ctx, "k"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestRedisClearOnlyNamespace(t *testing.T) {
	ctx := context.Background()
	r, _, client := newTestRedis(t)

	for i := 0; i < scanBatch+5; i++ {
		if err := r.Set(ctx, strconv.Itoa(i), []byte("x")); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := client.Set(ctx, "other:key", "keep", 0).Err(); err != nil {
		t.Fatalf("seed other: %v", err)
	}

	if err := r.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	keys, err := client.Keys(ctx, "*").Result()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "other:key" {
		t.Fatalf("unexpected keys after clear: %v", keys)
	}
	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
