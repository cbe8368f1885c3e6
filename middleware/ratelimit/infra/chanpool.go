package infra

import (
	"context"
	"sync"

	"aspirasi-gateway/middleware/ratelimit/domain"
)

// chanPool é um semáforo de capacidade fixa; len(sem) são as vagas em uso.
type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria o pool do teto de concorrência do gateway.
func NewChanPool(size int) domain.SlotPool {
	return &chanPool{sem: make(chan struct{}, size)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(func() { <-p.sem }) }, true
}

func (p *chanPool) InFlight() int { return len(p.sem) }
