// Package infra implementa as stores de política e de estado por identidade:
// memória (testes e execução local), gorm (sqlite/postgres) e redis.
//
// Todas implementam SaveState como escrita condicional pela versão do
// registro e devolvem domain.ErrConflict quando perdem a corrida.
package infra
