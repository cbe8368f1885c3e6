package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"aspirasi-gateway/middleware/ratelimit/domain"
)

type fakeLimiter struct {
	dec domain.Decision
	err error
}

func (f fakeLimiter) Take(context.Context, domain.Key) (domain.Decision, error) { return f.dec, f.err }

func TestService_Decide_AllowsWhenNoLimiter(t *testing.T) {
	svc := Service{}
	dec, err := svc.Decide(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_PassesLimiterDecision(t *testing.T) {
	reset := time.Now().Add(30 * time.Second)
	svc := Service{Limiter: fakeLimiter{dec: domain.Decision{Allowed: true, Limit: 60, Remaining: 59, ResetAt: reset}}}

	dec, err := svc.Decide(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed || dec.Limit != 60 || dec.Remaining != 59 || !dec.ResetAt.Equal(reset) {
		t.Fatalf("unexpected decision: %+v", dec)
	}
}

func TestService_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	svc := Service{Limiter: fakeLimiter{dec: domain.Decision{Allowed: false, Remaining: -3}}}
	dec, _ := svc.Decide(context.Background(), "k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected Remaining clamped to 0, got %d", dec.Remaining)
	}
}

func TestService_Decide_KeepsLimiterRetryAfter(t *testing.T) {
	svc := Service{Limiter: fakeLimiter{dec: domain.Decision{Allowed: false, RetryAfter: 42 * time.Second}}}
	dec, _ := svc.Decide(context.Background(), "k")
	if dec.RetryAfter != 42*time.Second {
		t.Fatalf("expected RetryAfter=42s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_FailClosedOnError(t *testing.T) {
	boom := errors.New("boom")
	svc := Service{Limiter: fakeLimiter{err: boom}, OnError: domain.FailClosed, RetryAfter: 2500 * time.Millisecond}

	dec, err := svc.Decide(context.Background(), "k")
	if !errors.Is(err, boom) {
		t.Fatalf("expected limiter error to be returned, got %v", err)
	}
	if dec.Allowed {
		t.Fatalf("expected blocked under FailClosed")
	}
	if dec.RetryAfter != 2500*time.Millisecond {
		t.Fatalf("expected RetryAfter=2.5s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_FailOpenOnError(t *testing.T) {
	svc := Service{Limiter: fakeLimiter{err: errors.New("boom")}, OnError: domain.FailOpen}

	dec, err := svc.Decide(context.Background(), "k")
	if err == nil {
		t.Fatalf("expected error to be reported")
	}
	if !dec.Allowed {
		t.Fatalf("expected allowed under FailOpen")
	}
}
