package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"errors"
	"time"
)

// Key identifica o dono de um bucket. No gateway é sempre o hash da identidade,
// nunca o IP bruto.
type Key string

// RouteClass agrupa rotas que compartilham o mesmo orçamento de pontos.
type RouteClass string

const (
	ClassGeneral    RouteClass = "api"
	ClassSubmission RouteClass = "submission"
	ClassEmail      RouteClass = "email"
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Limiter decide se uma chave pode consumir um ponto agora.
//
// Cada instância atende uma única RouteClass, então buckets de classes
// diferentes nunca interferem entre si. A implementação pode ser janela fixa,
// token bucket (golang.org/x/time/rate), etc.
type Limiter interface {
	Take(ctx context.Context, key Key) (Decision, error)
}

type Decision struct {
	Allowed bool
	// Limit é o total de pontos da janela (ou o burst no token bucket).
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// Err devolve ErrRateLimitExceeded quando a decisão bloqueia.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return ErrRateLimitExceeded
}

// FailurePolicy define o que fazer quando o limiter não consegue decidir.
type FailurePolicy int

const (
	// FailClosed nega a requisição.
	FailClosed FailurePolicy = iota
	// FailOpen deixa passar (o erro ainda é reportado para log).
	FailOpen
)

func (p FailurePolicy) String() string {
	if p == FailOpen {
		return "open"
	}
	return "closed"
}

// ParseFailurePolicy aceita "open" ou "closed" (padrão).
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "closed":
		return FailClosed, nil
	case "open":
		return FailOpen, nil
	default:
		return FailClosed, errors.New("failure policy must be \"open\" or \"closed\"")
	}
}
