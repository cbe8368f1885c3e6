// Package csrf rejeita POST cross-origin na API.
package csrf

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

type Options struct {
	// PathPrefix limita a checagem; vazio vale /api/.
	PathPrefix string
	// AllowedOrigins são hosts aceitos além do próprio Host da requisição.
	AllowedOrigins []string
}

// Middleware compara o host do Origin com o Host da requisição em POST.
// Sem Origin (clientes não-browser) a requisição passa.
func Middleware(opts Options) func(http.Handler) http.Handler {
	prefix := opts.PathPrefix
	if prefix == "" {
		prefix = "/api/"
	}
	allowed := make(map[string]bool, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[strings.ToLower(hostOf(o))] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			host := strings.ToLower(hostOf(origin))
			if host == strings.ToLower(r.Host) || allowed[host] {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "CSRF validation failed"})
		})
	}
}

// hostOf devolve host[:port] de uma origem; "null" e lixo viram "".
func hostOf(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}
