// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - FixedWindowStore: bucket de pontos com janela fixa por chave (padrão)
//   - TokenBucketStore: token bucket por chave usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
//   - Memory/Redis/Prometheus stats: contadores de decisões
//
// Todos os buckets vivem apenas em memória do processo; perder o estado num
// restart é aceitável.
package infra
