package infra

import (
	"context"
	"testing"
	"time"

	"aspirasi-gateway/middleware/ratelimit/domain"
)

func TestTokenBucket_SameKeyReusesLimiter(t *testing.T) {
	s := NewTokenBucketStore(10, 1)
	now := time.Now()

	l1 := s.limiter(domain.Key("k"), now)
	l2 := s.limiter(domain.Key("k"), now)
	if l1 != l2 {
		t.Fatalf("expected same limiter pointer for same key")
	}
}

func TestTokenBucket_LowBurstRejectsSecondImmediateTake(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewTokenBucketStore(0.5, 1, WithTokenClock(clk.Now))
	ctx := context.Background()

	dec, err := s.Take(ctx, "k")
	if err != nil || !dec.Allowed {
		t.Fatalf("expected first Take to be allowed, got %+v err=%v", dec, err)
	}
	dec, _ = s.Take(ctx, "k")
	if dec.Allowed {
		t.Fatalf("expected second immediate Take to be rejected (burst=1)")
	}
	if dec.RetryAfter != 2*time.Second {
		t.Fatalf("expected RetryAfter=2s at 0.5 rps, got %s", dec.RetryAfter)
	}

	clk.Advance(2 * time.Second)
	if dec, _ = s.Take(ctx, "k"); !dec.Allowed {
		t.Fatalf("expected Take to be allowed after refill")
	}
}

func TestTokenBucket_ForWindowBudget(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewTokenBucketForWindow(3, time.Hour, WithTokenClock(clk.Now))
	ctx := context.Background()

	if s.Burst() != 3 {
		t.Fatalf("expected burst 3, got %d", s.Burst())
	}
	for i := 0; i < 3; i++ {
		if dec, _ := s.Take(ctx, "k"); !dec.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	dec, _ := s.Take(ctx, "k")
	if dec.Allowed {
		t.Fatalf("4th request should be rejected")
	}
	if dec.RetryAfter <= 0 || dec.RetryAfter > time.Hour {
		t.Fatalf("unexpected RetryAfter %s", dec.RetryAfter)
	}
}

func TestTokenBucket_CleanupRemovesIdleEntries(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	s := NewTokenBucketStore(10, 1, WithIdleTTL(time.Minute), WithCleanupEvery(0), WithTokenClock(clk.Now))

	before := s.limiter(domain.Key("k"), clk.Now())
	clk.Advance(2 * time.Minute)

	s.Cleanup()

	after := s.limiter(domain.Key("k"), clk.Now())
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}
