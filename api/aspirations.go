package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"aspirasi-gateway/admission/domain"
	"aspirasi-gateway/aspiration"
)

type submitResponse struct {
	TrackingCode   string `json:"trackingCode"`
	Message        string `json:"message"`
	Warning        string `json:"warning,omitempty"`
	WarningMessage string `json:"warningMessage,omitempty"`
}

// submit valida a aspiração, reserva a admissão, grava e devolve o código.
// A identidade vem sempre da conexão, nunca do corpo.
func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	var in aspiration.Input
	if err := decode(w, r, &in); err != nil {
		writeDecodeError(w, err)
		return
	}
	clean, err := in.Validate()
	if err != nil {
		var verr *aspiration.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Validation failed", Details: verr.Fields})
			return
		}
		writeError(w, http.StatusBadRequest, "Validation failed")
		return
	}

	ipHash, err := h.Hasher.FromRequest(r, h.TrustProxyHeaders)
	if err != nil {
		writeError(w, http.StatusBadRequest, "IP address is required")
		return
	}

	code, err := aspiration.NewTrackingCode()
	if err != nil {
		h.Logger.Error("tracking code generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to submit aspiration")
		return
	}

	ctx := r.Context()
	res, err := h.Admission.Reserve(ctx, h.Namespace, ipHash, domain.Category(clean.Category), code)
	switch {
	case errors.Is(err, domain.ErrCategoryNotAllowed):
		body := verdictResponse(res.Verdict)
		writeJSON(w, http.StatusForbidden, body)
		return
	case errors.Is(err, domain.ErrQuotaExceeded):
		secs := int64(math.Ceil(res.Verdict.TimeRemaining.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		writeJSON(w, http.StatusTooManyRequests, verdictResponse(res.Verdict))
		return
	case err != nil:
		h.admissionError(w, err, ipHash)
		return
	}

	a := &aspiration.Aspiration{
		Namespace:    h.Namespace,
		TrackingCode: code,
		Category:     clean.Category,
		Title:        clean.Title,
		Message:      clean.Message,
		Image:        clean.Image,
		Status:       aspiration.StatusReceived,
		IPHash:       ipHash,
	}
	if err := h.Aspirations.Create(ctx, a); err != nil {
		h.Logger.Error("aspiration write failed, releasing reservation",
			zap.String("ip_hash", ipHash),
			zap.Error(err),
		)
		if rerr := h.Admission.Release(ctx, h.Namespace, res); rerr != nil {
			h.Logger.Error("reservation release failed", zap.String("ip_hash", ipHash), zap.Error(rerr))
		}
		writeError(w, http.StatusInternalServerError, "Failed to submit aspiration")
		return
	}

	out := submitResponse{TrackingCode: code, Message: "Aspirasi berhasil dikirim"}
	if res.Degraded() {
		out.Warning = WarningPolicyStoreUnavailable
		out.WarningMessage = warningMessage
	}
	writeJSON(w, http.StatusCreated, out)
}

type trackResponse struct {
	TrackingCode string  `json:"trackingCode"`
	Category     string  `json:"category"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	AdminReply   *string `json:"adminReply"`
	CreatedAt    string  `json:"createdAt"`
}

func newTrackResponse(a *aspiration.Aspiration) trackResponse {
	return trackResponse{
		TrackingCode: a.TrackingCode,
		Category:     a.Category,
		Title:        a.Title,
		Status:       string(a.Status),
		AdminReply:   a.AdminReply,
		CreatedAt:    a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *handler) track(w http.ResponseWriter, r *http.Request) {
	code := aspiration.NormalizeCode(chi.URLParam(r, "code"))
	if !aspiration.ValidCode(code) {
		writeError(w, http.StatusBadRequest, "Kode tracking tidak valid")
		return
	}

	a, err := h.Aspirations.FindByTrackingCode(r.Context(), h.Namespace, code)
	if errors.Is(err, aspiration.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Aspirasi tidak ditemukan")
		return
	}
	if err != nil {
		h.Logger.Error("tracking lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to look up aspiration")
		return
	}
	writeJSON(w, http.StatusOK, newTrackResponse(a))
}
