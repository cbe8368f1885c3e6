package application

import (
	"context"
	"time"

	"aspirasi-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService aplica o teto de requisições simultâneas do gateway,
// com espera limitada por AcquireTimeout. Não conhece HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Sem pool configurado, sempre libera.
//   - AcquireTimeout <= 0 espera até o ctx da requisição encerrar.
//   - AcquireTimeout > 0 desiste após o timeout.
//
// Com ok=false nenhuma vaga foi adquirida e release é nil.
func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), ok bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}
	return s.Pool.Acquire(ctx)
}

// InFlight devolve quantas vagas estão ocupadas (0 sem pool).
func (s ConcurrencyService) InFlight() int {
	if s.Pool == nil {
		return 0
	}
	return s.Pool.InFlight()
}
