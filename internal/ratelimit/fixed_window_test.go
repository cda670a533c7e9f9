package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewRedisFixedWindowLimiter(client, "test:ratelimit", limit, time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	return limiter, mr
}

func TestFixedWindowLimiterRedis(t *testing.T) {
	limiter, _ := newRedisLimiter(t, 2)
	ctx := context.Background()
	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow(ctx, "ip-1") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow(ctx, "ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow(ctx, "ip-2") {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 1)
	mr.Close()
	if limiter.Allow(context.Background(), "ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresClient(t *testing.T) {
	limiter, err := NewRedisFixedWindowLimiter(nil, "test:ratelimit", 1, time.Second)
	if err == nil || limiter != nil {
		t.Fatalf("expected constructor error for missing redis client")
	}
}

func TestLocalLimiterBurstThenBlock(t *testing.T) {
	limiter := NewLocalLimiter(3, time.Minute)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if !limiter.Allow(ctx, "ip-1") {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if limiter.Allow(ctx, "ip-1") {
		t.Fatalf("fourth request should be blocked")
	}
	if !limiter.Allow(ctx, "") {
		t.Fatalf("empty key maps to its own bucket")
	}
}
