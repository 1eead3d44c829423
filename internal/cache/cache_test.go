package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
		ID   int    `json:"id"`
	}

	if err := c.Set(ctx, "k1", payload{Name: "ring", ID: 7}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got payload
	if err := c.Get(ctx, "k1", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "ring" || got.ID != 7 {
		t.Errorf("Get returned %+v", got)
	}
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	var dest string
	if err := c.Get(context.Background(), "absent", &dest); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "ephemeral", "v", -time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var dest string
	if err := c.Get(ctx, "ephemeral", &dest); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss for expired key, got %v", err)
	}

	exists, err := c.Exists(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expired key should not exist")
	}
}

func TestMemoryCache_SetNX(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "once", 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = c.SetNX(ctx, "once", 2, time.Minute)
	if err != nil {
		t.Fatalf("second SetNX failed: %v", err)
	}
	if ok {
		t.Error("second SetNX should not succeed")
	}
}

func TestNullCache(t *testing.T) {
	c := NewNullCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var dest string
	if err := c.Get(ctx, "k", &dest); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}
