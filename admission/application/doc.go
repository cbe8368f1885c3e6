// Package application contém a decisão de admissão e o ciclo
// reserva/liberação sobre as stores de admission/domain.
//
// Decide, Advance e Retract são funções puras (política, estado, categoria,
// instante). Service acrescenta timeout, política de falha e CAS por
// identidade.
package application
