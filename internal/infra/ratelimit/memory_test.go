package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterEnforcesWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }})

	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow(context.Background(), "claims:0xa1", 3, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if decision.Remaining != 3-i-1 {
			t.Fatalf("request %d: remaining %d, expected %d", i, decision.Remaining, 3-i-1)
		}
	}

	decision, err := limiter.Allow(context.Background(), "claims:0xa1", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if decision.Allowed {
		t.Fatal("request over the limit must be denied")
	}

	now = now.Add(2 * time.Minute)
	decision, err = limiter.Allow(context.Background(), "claims:0xa1", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("request after the window must be allowed again")
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	if decision, _ := limiter.Allow(context.Background(), "claims:0xa1", 1, time.Minute); !decision.Allowed {
		t.Fatal("first key should be allowed")
	}
	if decision, _ := limiter.Allow(context.Background(), "claims:0xa1", 1, time.Minute); decision.Allowed {
		t.Fatal("first key should now be limited")
	}
	if decision, _ := limiter.Allow(context.Background(), "claims:0xb2", 1, time.Minute); !decision.Allowed {
		t.Fatal("second key must not share the first key's window")
	}
}

func TestMemoryLimiterZeroLimitDisables(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	for i := 0; i < 10; i++ {
		decision, err := limiter.Allow(context.Background(), "claims:0xa1", 0, time.Minute)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !decision.Allowed {
			t.Fatal("zero limit disables rate limiting")
		}
	}
}

func TestMemoryLimiterCapacity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: func() time.Time { return now }, MaxKeys: 2})

	if _, err := limiter.Allow(context.Background(), "a", 1, time.Minute); err != nil {
		t.Fatalf("key a: %v", err)
	}
	if _, err := limiter.Allow(context.Background(), "b", 1, time.Minute); err != nil {
		t.Fatalf("key b: %v", err)
	}
	if _, err := limiter.Allow(context.Background(), "c", 1, time.Minute); err == nil {
		t.Fatal("expected capacity error with live windows")
	}

	now = now.Add(2 * time.Minute)
	if _, err := limiter.Allow(context.Background(), "c", 1, time.Minute); err != nil {
		t.Fatalf("key c after gc: %v", err)
	}
}
