// Package domain define os tipos do limitador por classe de rota: chave
// (hash da identidade), classe, decisão com cabeçalhos derivados, política
// de falha e eventos de estatística. Não importa net/http.
package domain
