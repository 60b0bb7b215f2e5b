package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, New(rdb, cfg)
}

func TestAllowWithinBudget(t *testing.T) {
	_, l := newTestLimiter(t, Config{Enabled: true, MaxRequests: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, "203.0.113.9"); err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, "203.0.113.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Allow(ctx, "203.0.113.10"); err != nil {
		t.Fatalf("other ip must have its own budget, got %v", err)
	}
}

func TestAllowWindowExpires(t *testing.T) {
	mr, l := newTestLimiter(t, Config{Enabled: true, MaxRequests: 1, Window: time.Minute})
	ctx := context.Background()

	_ = l.Allow(ctx, "ip")
	if err := l.Allow(ctx, "ip"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(61 * time.Second)
	if err := l.Allow(ctx, "ip"); err != nil {
		t.Fatalf("expected new window, got %v", err)
	}
}

func TestAllowDisabled(t *testing.T) {
	_, l := newTestLimiter(t, Config{Enabled: false, MaxRequests: 1})
	for i := 0; i < 5; i++ {
		if err := l.Allow(context.Background(), "ip"); err != nil {
			t.Fatalf("disabled limiter must allow, got %v", err)
		}
	}
}

func TestRemaining(t *testing.T) {
	_, l := newTestLimiter(t, Config{Enabled: true, MaxRequests: 2, Window: time.Minute})
	ctx := context.Background()

	if n, err := l.Remaining(ctx, "ip"); err != nil || n != 2 {
		t.Fatalf("expected 2 remaining, got %d (%v)", n, err)
	}
	_ = l.Allow(ctx, "ip")
	_ = l.Allow(ctx, "ip")
	_ = l.Allow(ctx, "ip")
	if n, err := l.Remaining(ctx, "ip"); err != nil || n != 0 {
		t.Fatalf("expected 0 remaining, got %d (%v)", n, err)
	}
}

func TestAllowRedisDown(t *testing.T) {
	mr, l := newTestLimiter(t, Config{Enabled: true, MaxRequests: 2})
	mr.Close()

	if err := l.Allow(context.Background(), "ip"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
