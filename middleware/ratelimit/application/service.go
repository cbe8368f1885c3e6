package application

import (
	"context"
	"time"

	"aspirasi-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit de uma RouteClass.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Class   domain.RouteClass
	Limiter domain.Limiter
	OnError domain.FailurePolicy
	// RetryAfter é usado quando o limiter falha e a política é FailClosed.
	RetryAfter time.Duration
}

// Decide consulta o limiter. Em caso de erro a decisão segue OnError e o erro
// é devolvido junto para o chamador registrar.
func (s Service) Decide(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if s.Limiter == nil {
		return domain.Decision{Allowed: true}, nil
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	dec, err := s.Limiter.Take(ctx, key)
	if err != nil {
		if s.OnError == domain.FailOpen {
			return domain.Decision{Allowed: true}, err
		}
		return domain.Decision{Allowed: false, RetryAfter: s.RetryAfter}, err
	}
	if !dec.Allowed && dec.RetryAfter <= 0 {
		dec.RetryAfter = s.RetryAfter
	}
	if dec.Remaining < 0 {
		dec.Remaining = 0
	}
	return dec, nil
}
