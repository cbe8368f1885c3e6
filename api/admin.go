package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"aspirasi-gateway/admission/domain"
	"aspirasi-gateway/aspiration"
)

var ipHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// bearerAuth compara o token em tempo constante.
func bearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	p, err := h.Admission.Policy(r.Context(), h.Namespace)
	if err != nil {
		h.Logger.Warn("policy read failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Policy store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, domain.NewPolicyRecord(p))
}

func (h *handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var rec domain.PolicyRecord
	if err := decode(w, r, &rec); err != nil {
		writeDecodeError(w, err)
		return
	}

	p := rec.Policy()
	err := h.Admission.UpdatePolicy(r.Context(), h.Namespace, p)
	switch {
	case errors.Is(err, domain.ErrInvalidPolicy):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.Logger.Warn("policy write failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Policy store unavailable")
		return
	}

	h.Logger.Info("admission policy updated",
		zap.String("namespace", h.Namespace),
		zap.Bool("cooldown_enabled", p.CooldownEnabled),
		zap.Int("cooldown_days", p.CooldownDays()),
		zap.Int("max_per_period", p.MaxSubmissionsPerWindow),
	)
	writeJSON(w, http.StatusOK, domain.NewPolicyRecord(p))
}

func ipHashParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	v := strings.ToLower(chi.URLParam(r, "ipHash"))
	if !ipHashPattern.MatchString(v) {
		writeError(w, http.StatusBadRequest, "Invalid ipHash")
		return "", false
	}
	return v, true
}

func (h *handler) getTracking(w http.ResponseWriter, r *http.Request) {
	ipHash, ok := ipHashParam(w, r)
	if !ok {
		return
	}
	st, err := h.Admission.State(r.Context(), h.Namespace, ipHash)
	if err != nil {
		h.Logger.Warn("tracker read failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Tracker store unavailable")
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "No tracking record")
		return
	}
	writeJSON(w, http.StatusOK, domain.NewTrackerRecord(*st))
}

func (h *handler) resetTracking(w http.ResponseWriter, r *http.Request) {
	ipHash, ok := ipHashParam(w, r)
	if !ok {
		return
	}
	err := h.Admission.ResetState(r.Context(), h.Namespace, ipHash)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "No tracking record")
	case err != nil:
		h.Logger.Warn("tracker reset failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Tracker store unavailable")
	default:
		h.Logger.Info("tracker reset", zap.String("ip_hash", ipHash))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *handler) whitelist(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ipHash, ok := ipHashParam(w, r)
		if !ok {
			return
		}
		if err := h.Admission.SetWhitelisted(r.Context(), h.Namespace, ipHash, on); err != nil {
			h.Logger.Warn("whitelist update failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Tracker store unavailable")
			return
		}
		h.Logger.Info("whitelist updated", zap.String("ip_hash", ipHash), zap.Bool("whitelisted", on))
		writeJSON(w, http.StatusOK, map[string]any{"ipHash": ipHash, "isWhitelisted": on})
	}
}

type updateAspirationRequest struct {
	Status     string  `json:"status"`
	AdminReply *string `json:"adminReply"`
}

func (h *handler) updateAspiration(w http.ResponseWriter, r *http.Request) {
	code := aspiration.NormalizeCode(chi.URLParam(r, "code"))
	if !aspiration.ValidCode(code) {
		writeError(w, http.StatusBadRequest, "Kode tracking tidak valid")
		return
	}
	var req updateAspirationRequest
	if err := decode(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	a, err := h.Aspirations.UpdateStatus(r.Context(), h.Namespace, code, aspiration.Status(req.Status), req.AdminReply)
	switch {
	case errors.Is(err, aspiration.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, aspiration.ErrNotFound):
		writeError(w, http.StatusNotFound, "Aspirasi tidak ditemukan")
	case err != nil:
		h.Logger.Error("aspiration update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update aspiration")
	default:
		writeJSON(w, http.StatusOK, newTrackResponse(a))
	}
}
