package memcache

import (
    "context"
    "testing"
    "time"

    "github.com/jonboulle/clockwork"
)

func TestSetGetAndTTL(t *testing.T) {
    clock := clockwork.NewFakeClock()
    c := New(clock)
    ctx := context.Background()

    if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
        t.Fatal(err)
    }
    if v, ok, _ := c.Get(ctx, "k"); !ok || v != "v" {
        t.Fatalf("got %q/%v", v, ok)
    }

    clock.Advance(time.Minute)
    if _, ok, _ := c.Get(ctx, "k"); ok {
        t.Fatal("expected key to expire")
    }
}

func TestZeroTTLNeverExpires(t *testing.T) {
    clock := clockwork.NewFakeClock()
    c := New(clock)
    ctx := context.Background()

    c.Set(ctx, "k", "v", 0)
    clock.Advance(24 * time.Hour)
    if _, ok, _ := c.Get(ctx, "k"); !ok {
        t.Fatal("zero-ttl key must not expire")
    }
}

func TestSetNXMutualExclusion(t *testing.T) {
    clock := clockwork.NewFakeClock()
    c := New(clock)
    ctx := context.Background()

    ok, err := c.SetNX(ctx, "lock", "1", time.Minute)
    if err != nil || !ok {
        t.Fatalf("first SetNX: ok=%v err=%v", ok, err)
    }
    ok, err = c.SetNX(ctx, "lock", "1", time.Minute)
    if err != nil || ok {
        t.Fatalf("second SetNX must lose: ok=%v err=%v", ok, err)
    }

    // Expiry is the backstop against a crashed holder.
    clock.Advance(2 * time.Minute)
    ok, err = c.SetNX(ctx, "lock", "1", time.Minute)
    if err != nil || !ok {
        t.Fatalf("SetNX after expiry: ok=%v err=%v", ok, err)
    }
}

func TestDel(t *testing.T) {
    c := New(nil)
    ctx := context.Background()

    c.Set(ctx, "k", "v", 0)
    if err := c.Del(ctx, "k"); err != nil {
        t.Fatal(err)
    }
    if _, ok, _ := c.Get(ctx, "k"); ok {
        t.Fatal("key survived Del")
    }
}
