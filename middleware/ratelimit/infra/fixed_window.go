package infra

import (
	"context"
	"sync"
	"time"

	"aspirasi-gateway/middleware/ratelimit/domain"
)

// FixedWindowStore é um bucket de pontos com janela fixa por chave.
//
// A janela começa na primeira requisição da chave com Points pontos; cada Take
// consome um. Esgotados os pontos, nega até ResetAt. Quando a janela vence o
// bucket volta a ter Points pontos e uma nova janela.
type FixedWindowStore struct {
	mu           sync.Mutex
	buckets      map[domain.Key]*windowBucket
	points       int
	window       time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type windowBucket struct {
	remaining int
	resetAt   time.Time
}

type FixedWindowOption func(*FixedWindowStore)

func WithWindowClock(now func() time.Time) FixedWindowOption {
	return func(s *FixedWindowStore) { s.now = now }
}

func WithWindowCleanupEvery(d time.Duration) FixedWindowOption {
	return func(s *FixedWindowStore) { s.cleanupEvery = d }
}

func NewFixedWindowStore(points int, window time.Duration, opts ...FixedWindowOption) *FixedWindowStore {
	if points < 1 {
		points = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	s := &FixedWindowStore{
		buckets:      make(map[domain.Key]*windowBucket),
		points:       points,
		window:       window,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FixedWindowStore) Points() int           { return s.points }
func (s *FixedWindowStore) Window() time.Duration { return s.window }

// Take implementa domain.Limiter.
func (s *FixedWindowStore) Take(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if err := ctx.Err(); err != nil {
		return domain.Decision{}, err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &windowBucket{remaining: s.points, resetAt: now.Add(s.window)}
		s.buckets[key] = b
	}

	if b.remaining <= 0 {
		return domain.Decision{
			Allowed:    false,
			Limit:      s.points,
			Remaining:  0,
			ResetAt:    b.resetAt,
			RetryAfter: b.resetAt.Sub(now),
		}, nil
	}

	b.remaining--
	return domain.Decision{
		Allowed:   true,
		Limit:     s.points,
		Remaining: b.remaining,
		ResetAt:   b.resetAt,
	}, nil
}

// Cleanup remove buckets cuja janela já venceu.
func (s *FixedWindowStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, b := range s.buckets {
		if !now.Before(b.resetAt) {
			delete(s.buckets, k)
		}
	}
}

// Len devolve quantos buckets estão em memória.
func (s *FixedWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// StartJanitor inicia uma goroutine que limpa buckets vencidos periodicamente.
// Pare cancelando o contexto.
func (s *FixedWindowStore) StartJanitor(ctx context.Context) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}
