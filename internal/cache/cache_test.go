package cache

import (
	"context"
	"testing"
	"time"
)

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](0)
	defer c.Close()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set(ctx, "nonce", 7, time.Second)
	if v, ok := c.Get(ctx, "nonce"); !ok || v != 7 {
		t.Fatalf("Get = %d, %v; want 7, true", v, ok)
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get(ctx, "nonce"); ok {
		t.Fatal("expected entry to be expired")
	}

	c.evictExpired()
	if c.Len() != 0 {
		t.Errorf("Len = %d after eviction, want 0", c.Len())
	}
}

func TestCacheSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	c := New[string, struct{}](0)
	defer c.Close()

	if !c.SetIfAbsent(ctx, "0xabc", struct{}{}, time.Minute) {
		t.Fatal("first insert should store")
	}
	if c.SetIfAbsent(ctx, "0xabc", struct{}{}, time.Minute) {
		t.Fatal("second insert should report existing entry")
	}

	c.Delete(ctx, "0xabc")
	if !c.SetIfAbsent(ctx, "0xabc", struct{}{}, time.Minute) {
		t.Fatal("insert after delete should store")
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c := New[int, string](0)
	defer c.Close()

	c.Set(ctx, 1, "one", 0)
	c.now = func() time.Time { return time.Now().Add(24 * time.Hour) }

	if v, ok := c.Get(ctx, 1); !ok || v != "one" {
		t.Fatalf("Get = %q, %v; want one, true", v, ok)
	}
}
