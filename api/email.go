package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"aspirasi-gateway/aspiration"
	"aspirasi-gateway/mailer"
)

var validate = validator.New()

type sendEmailRequest struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	TrackingCode string `json:"trackingCode" validate:"required"`
}

// sendEmail reenvia o código de rastreio. O código precisa existir, o que
// impede usar a rota para mandar e-mail arbitrário.
func (h *handler) sendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendEmailRequest
	if err := decode(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Email and tracking code are required")
		return
	}
	code := aspiration.NormalizeCode(req.TrackingCode)
	if !aspiration.ValidCode(code) {
		writeError(w, http.StatusBadRequest, "Kode tracking tidak valid")
		return
	}

	if h.Notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "Email service not configured. Please contact administrator.")
		return
	}

	ctx := r.Context()
	if _, err := h.Aspirations.FindByTrackingCode(ctx, h.Namespace, code); err != nil {
		if errors.Is(err, aspiration.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Aspirasi tidak ditemukan")
			return
		}
		h.Logger.Error("tracking lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to send email")
		return
	}

	err := h.Notifier.SendTrackingCode(ctx, req.Email, code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Email sent successfully"})
	case errors.Is(err, mailer.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "Email service not configured. Please contact administrator.")
	case errors.Is(err, mailer.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "Email tidak valid")
	default:
		h.Logger.Error("email send failed", zap.String("tracking_code", code), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to send email")
	}
}
