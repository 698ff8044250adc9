package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "midway/internal/adapters/redis"
	"midway/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	var got domain.Coordinate
	ok, err := c.Get(ctx, "geo:x", &got)
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	want := domain.Coordinate{Lat: 41.0, Lng: 29.0}
	if err := c.Set(ctx, "geo:x", want, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	ok, err = c.Get(ctx, "geo:x", &got)
	if err != nil || !ok || got != want {
		t.Fatalf("expected hit %v, got %v ok=%v err=%v", want, got, ok, err)
	}

	if err := c.Del(ctx, "geo:x"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if ok, _ := c.Get(ctx, "geo:x", &got); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestCache_TTLExpires(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "plan:1", domain.Plan{ID: "1"}, 10); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(11 * time.Second)

	var p domain.Plan
	if ok, _ := c.Get(ctx, "plan:1", &p); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestCache_CorruptEntryIsEvicted(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	if err := mr.Set("plan:bad", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var p domain.Plan
	ok, err := c.Get(ctx, "plan:bad", &p)
	if ok || err == nil {
		t.Fatalf("expected decode error, got ok=%v err=%v", ok, err)
	}
	if mr.Exists("plan:bad") {
		t.Fatalf("corrupt entry should be deleted")
	}
}
