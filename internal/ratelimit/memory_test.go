package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	for i := 0; i < 3; i++ {
		res, errAllow := limiter.Allow(ctx, "rep:1", 3, now)
		if errAllow != nil {
			t.Fatalf("allow %d: %v", i, errAllow)
		}
		if !res.Allowed {
			t.Fatalf("send %d should be allowed", i)
		}
		if res.Remaining != 3-i-1 {
			t.Fatalf("send %d: remaining = %d", i, res.Remaining)
		}
	}

	res, errAllow := limiter.Allow(ctx, "rep:1", 3, now)
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if res.Allowed {
		t.Fatal("fourth send in the same second should be denied")
	}

	res, errAllow = limiter.Allow(ctx, "rep:1", 3, now.Add(time.Second))
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if !res.Allowed {
		t.Fatal("window should reset on the next second")
	}
}

func TestMemoryLimiterZeroLimitAllows(t *testing.T) {
	limiter := NewMemoryLimiter()
	res, errAllow := limiter.Allow(context.Background(), "rep:1", 0, time.Now())
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if !res.Allowed {
		t.Fatal("zero limit means unlimited")
	}
}

func TestMemoryLimiterKeysIsolated(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	if res, _ := limiter.Allow(ctx, "rep:1", 1, now); !res.Allowed {
		t.Fatal("first send should pass")
	}
	if res, _ := limiter.Allow(ctx, "rep:1", 1, now); res.Allowed {
		t.Fatal("second send should be denied")
	}
	if res, _ := limiter.Allow(ctx, "rep:2", 1, now); !res.Allowed {
		t.Fatal("another rep's key must be unaffected")
	}
}

func TestKeyForDecision(t *testing.T) {
	if got := KeyForDecision(42, Decision{Limit: 5, Scope: ScopeRep}); got != "rep:42" {
		t.Fatalf("unexpected key: %q", got)
	}
	if got := KeyForDecision(42, Decision{Limit: 0, Scope: ScopeRep}); got != "" {
		t.Fatalf("zero limit must yield no key, got %q", got)
	}
	if got := KeyForDecision(0, Decision{Limit: 5, Scope: ScopeRep}); got != "" {
		t.Fatalf("zero rep must yield no key, got %q", got)
	}
}
