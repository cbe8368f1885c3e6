// utilitários pequenos para headers e respostas de rejeição.

package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

const rejectMessage = "Terlalu banyak permintaan. Silakan coba lagi nanti."

func formatInt(v int) string { return strconv.Itoa(v) }

// retryAfterSeconds arredonda para cima: nunca anuncia uma espera menor que a
// real. Mínimo de 1s.
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func formatReset(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type rejectBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func writeReject(w http.ResponseWriter, status int, body rejectBody) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
