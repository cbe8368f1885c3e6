package aspiration

import (
	"crypto/rand"
	"strings"
)

const (
	CodePrefix   = "MPA-"
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// NewTrackingCode gera MPA-XXXXXX. O alfabeto tem 32 símbolos, então o
// módulo sobre um byte não introduz viés.
func NewTrackingCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(CodePrefix) + codeLength)
	b.WriteString(CodePrefix)
	for _, c := range buf {
		b.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
	}
	return b.String(), nil
}

// NormalizeCode aceita o código digitado em qualquer caixa e com espaços.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidCode confere formato e alfabeto, sem consultar a base.
func ValidCode(code string) bool {
	if len(code) != len(CodePrefix)+codeLength || !strings.HasPrefix(code, CodePrefix) {
		return false
	}
	for _, c := range code[len(CodePrefix):] {
		if !strings.ContainsRune(codeAlphabet, c) {
			return false
		}
	}
	return true
}
