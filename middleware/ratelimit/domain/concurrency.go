package domain

import "context"

// SlotPool limita quantas requisições o gateway processa ao mesmo tempo.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar; a função de
// release devolvida deve ser chamada exatamente uma vez.
// InFlight expõe a ocupação atual para o endpoint de health.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	InFlight() int
}
