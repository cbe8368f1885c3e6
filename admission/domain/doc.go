// Package domain define os tipos do controle de admissão de aspirações:
// política do administrador, estado por identidade, veredito e os contratos
// das stores.
//
// Nada aqui conhece HTTP, banco ou relógio; as regras ficam em
// admission/application e as stores em admission/infra.
package domain
