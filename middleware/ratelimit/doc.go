// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela fixa, token bucket, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + classes de rota + extração de chave
//     + tradução para status/headers
//
// Fluxo no gateway:
//
//   1) Descobre a classe da rota (email, submission ou api genérica)
//   2) Extrai a chave do cliente (hash do IP, nunca o IP bruto)
//   3) Chama a camada application para obter a decisão da classe
//   4) Se bloqueado, responde 429 com Retry-After e X-RateLimit-*
//   5) Se permitido, chama o próximo handler
//
// Cada classe tem seu próprio limiter, então o orçamento de email não consome o
// orçamento da API geral. Rotas fora de todas as classes não são limitadas.
package ratelimit
