package domain

import "context"

// PolicyStore lê e grava a política de um namespace (appId).
// GetPolicy devolve found=false quando não há registro.
type PolicyStore interface {
	GetPolicy(ctx context.Context, namespace string) (p Policy, found bool, err error)
	PutPolicy(ctx context.Context, namespace string, p Policy) error
}

// TrackerStore guarda PeriodState por identidade.
//
// GetState devolve nil, nil quando a identidade não tem registro.
// SaveState é uma escrita condicional: grava next somente se a versão
// armazenada ainda for next.Version (0 = registro inexistente) e devolve o
// estado gravado com a versão nova. Caso contrário devolve ErrConflict.
type TrackerStore interface {
	GetState(ctx context.Context, namespace, ipHash string) (*PeriodState, error)
	SaveState(ctx context.Context, namespace string, next PeriodState) (PeriodState, error)
	SetWhitelisted(ctx context.Context, namespace, ipHash string, whitelisted bool) error
	ResetState(ctx context.Context, namespace, ipHash string) error
}
