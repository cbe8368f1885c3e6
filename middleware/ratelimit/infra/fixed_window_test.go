package infra

import (
	"context"
	"testing"
	"time"

	"aspirasi-gateway/middleware/ratelimit/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestFixedWindow_RejectsAfterPointsAndResets(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewFixedWindowStore(3, 10*time.Second, WithWindowClock(clk.Now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		dec, err := s.Take(ctx, "k")
		if err != nil || !dec.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v err=%v", i+1, dec, err)
		}
		if dec.Remaining != 2-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, 2-i, dec.Remaining)
		}
	}

	clk.Advance(4 * time.Second)
	dec, _ := s.Take(ctx, "k")
	if dec.Allowed {
		t.Fatalf("expected 4th request to be rejected")
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", dec.Remaining)
	}
	if dec.RetryAfter != 6*time.Second {
		t.Fatalf("expected RetryAfter=6s, got %s", dec.RetryAfter)
	}

	clk.Advance(6 * time.Second)
	dec, _ = s.Take(ctx, "k")
	if !dec.Allowed {
		t.Fatalf("expected allowed after window elapsed")
	}
	if dec.Remaining != 2 {
		t.Fatalf("expected fresh window with remaining 2, got %d", dec.Remaining)
	}
}

func TestFixedWindow_ScenarioGeneralAPI(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewFixedWindowStore(60, 60*time.Second, WithWindowClock(clk.Now))
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if dec, _ := s.Take(ctx, "x"); !dec.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if i%6 == 5 {
			clk.Advance(time.Second)
		}
	}
	dec, _ := s.Take(ctx, "x")
	if dec.Allowed {
		t.Fatalf("61st request should be rejected")
	}
	if dec.RetryAfter > 50*time.Second {
		t.Fatalf("expected RetryAfter <= 50s, got %s", dec.RetryAfter)
	}
}

func TestFixedWindow_KeysAreIndependent(t *testing.T) {
	s := NewFixedWindowStore(1, time.Hour)
	ctx := context.Background()

	if dec, _ := s.Take(ctx, "a"); !dec.Allowed {
		t.Fatalf("expected a allowed")
	}
	if dec, _ := s.Take(ctx, "b"); !dec.Allowed {
		t.Fatalf("expected b allowed (separate bucket)")
	}
	if dec, _ := s.Take(ctx, "a"); dec.Allowed {
		t.Fatalf("expected a rejected")
	}
}

func TestFixedWindow_CanceledContextReturnsError(t *testing.T) {
	s := NewFixedWindowStore(1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Take(ctx, domain.Key("k")); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}

func TestFixedWindow_CleanupRemovesExpiredBuckets(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	s := NewFixedWindowStore(5, time.Minute, WithWindowClock(clk.Now), WithWindowCleanupEvery(0))
	_, _ = s.Take(context.Background(), "k")

	s.Cleanup()
	if s.Len() != 1 {
		t.Fatalf("expected bucket to survive cleanup inside its window")
	}

	clk.Advance(time.Minute)
	s.Cleanup()
	if s.Len() != 0 {
		t.Fatalf("expected expired bucket to be removed, got %d", s.Len())
	}
}
