package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"net/netip"
	"strings"
)

// ErrInvalidIdentity indica endereço ausente ou que não é um IP válido.
var ErrInvalidIdentity = errors.New("invalid identity")

// Hasher transforma um endereço de rede em um token estável e não reversível.
//
// Com secret vazio usa SHA-256 puro; com secret usa HMAC-SHA256, o que impede
// reconstruir o endereço por força bruta sobre o espaço de IPv4.
type Hasher struct {
	secret []byte
}

func NewHasher(secret string) *Hasher {
	h := &Hasher{}
	if secret != "" {
		h.secret = []byte(secret)
	}
	return h
}

// Keyed informa se o hasher usa segredo (HMAC).
func (h *Hasher) Keyed() bool { return h != nil && len(h.secret) > 0 }

// Hash normaliza o endereço e devolve o hash em hex.
func (h *Hasher) Hash(raw string) (string, error) {
	addr, err := Normalize(raw)
	if err != nil {
		return "", err
	}

	var mac hash.Hash
	if h.Keyed() {
		mac = hmac.New(sha256.New, h.secret)
	} else {
		mac = sha256.New()
	}
	_, _ = mac.Write([]byte(addr))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Normalize valida o endereço e devolve sua forma canônica, para que
// "::ffff:10.0.0.1" e "10.0.0.1" gerem a mesma identidade.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "unknown") {
		return "", ErrInvalidIdentity
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap().String(), nil
	}
	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return "", ErrInvalidIdentity
	}
	return addr.Unmap().WithZone("").String(), nil
}
