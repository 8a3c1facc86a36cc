package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](0)
	defer c.Close()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set(ctx, "block", 42, 5*time.Second)

	if v, ok := c.Get(ctx, "block"); !ok || v != 42 {
		t.Fatalf("Get = %d,%v, want 42,true", v, ok)
	}

	now = now.Add(6 * time.Second)
	if _, ok := c.Get(ctx, "block"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := New[int, string](0)
	defer c.Close()

	c.Set(ctx, 1, "a", time.Minute)
	c.Delete(ctx, 1)

	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}
