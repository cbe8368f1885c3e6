package infra

import (
	"context"
	"math"
	"sync"
	"time"

	"aspirasi-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// TokenBucketStore é uma implementação baseada em token-bucket (x/time/rate)
// com cache por chave e limpeza periódica.
//
// Diferente da janela fixa, os pontos voltam aos poucos (rps) em vez de todos
// de uma vez no fim da janela.
type TokenBucketStore struct {
	mu           sync.Mutex
	entries      map[domain.Key]*tokenEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type tokenEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type TokenBucketOption func(*TokenBucketStore)

func WithIdleTTL(d time.Duration) TokenBucketOption {
	return func(s *TokenBucketStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) TokenBucketOption {
	return func(s *TokenBucketStore) { s.cleanupEvery = d }
}

func WithTokenClock(now func() time.Time) TokenBucketOption {
	return func(s *TokenBucketStore) { s.now = now }
}

func NewTokenBucketStore(rps float64, burst int, opts ...TokenBucketOption) *TokenBucketStore {
	s := &TokenBucketStore{
		entries:      make(map[domain.Key]*tokenEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTokenBucketForWindow converte um orçamento "points por window" em
// rps/burst equivalentes.
func NewTokenBucketForWindow(points int, window time.Duration, opts ...TokenBucketOption) *TokenBucketStore {
	rps := float64(points) / window.Seconds()
	return NewTokenBucketStore(rps, points, opts...)
}

func (s *TokenBucketStore) RPS() float64 { return float64(s.rps) }
func (s *TokenBucketStore) Burst() int   { return s.burst }

// Take implementa domain.Limiter. Usa uma reserva: se o token não está
// disponível agora a reserva é cancelada e o atraso vira RetryAfter.
func (s *TokenBucketStore) Take(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if err := ctx.Err(); err != nil {
		return domain.Decision{}, err
	}
	now := s.now()
	lim := s.limiter(key, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return domain.Decision{Allowed: false, Limit: s.burst, ResetAt: now.Add(time.Second), RetryAfter: time.Second}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return domain.Decision{
			Allowed:    false,
			Limit:      s.burst,
			Remaining:  0,
			ResetAt:    now.Add(delay),
			RetryAfter: delay,
		}, nil
	}

	tokens := lim.TokensAt(now)
	return domain.Decision{
		Allowed:   true,
		Limit:     s.burst,
		Remaining: int(math.Floor(tokens)),
		ResetAt:   now.Add(s.refillTime(tokens)),
	}, nil
}

// refillTime estima quanto falta para o bucket voltar a ficar cheio.
func (s *TokenBucketStore) refillTime(tokens float64) time.Duration {
	if s.rps <= 0 {
		return 0
	}
	missing := float64(s.burst) - tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(s.rps) * float64(time.Second))
}

func (s *TokenBucketStore) limiter(key domain.Key, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &tokenEntry{lim: lim, lastSeen: now}
	return lim
}

// Cleanup remove chaves sem uso há mais de idleTTL.
func (s *TokenBucketStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *TokenBucketStore) StartJanitor(ctx context.Context) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}
