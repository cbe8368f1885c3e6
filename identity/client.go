package identity

import (
	"net"
	"net/http"
	"strings"
)

// ClientAddress resolve o endereço do cliente.
//
// Com trustProxy, a prioridade é CF-Connecting-IP > X-Real-IP > primeiro item
// de X-Forwarded-For. Sem proxy confiável (ou sem headers) usa RemoteAddr.
// Retorna "unknown" quando nada pode ser determinado.
func ClientAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if v := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); v != "" {
			return v
		}
		if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
			return v
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// FromRequest combina ClientAddress e Hash.
func (h *Hasher) FromRequest(r *http.Request, trustProxy bool) (string, error) {
	return h.Hash(ClientAddress(r, trustProxy))
}
