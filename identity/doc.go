// Package identity deriva a chave de identidade anônima de um cliente.
//
// O endereço bruto do cliente nunca é usado como chave de estado: todo
// componente que precisa identificar um submissor recebe apenas o hash
// produzido por Hasher.
package identity
