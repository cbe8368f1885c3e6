package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"

	"aspirasi-gateway/admission/domain"
	"aspirasi-gateway/identity"
)

const (
	WarningPolicyStoreUnavailable = "POLICY_STORE_UNAVAILABLE"
	warningMessage                = "Pemeriksaan cooldown tidak tersedia sementara. Aspirasi tetap dapat dikirim."
)

var namespacePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

type checkRequest struct {
	IdentitySeed string `json:"identitySeed"`
	AppNamespace string `json:"appNamespace"`
	Category     string `json:"category"`
}

// checkResponse cobre as quatro formas de resposta; campos vazios são
// omitidos.
type checkResponse struct {
	Allowed          bool   `json:"allowed"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
	TimeRemaining    *int64 `json:"timeRemaining,omitempty"`
	DaysRemaining    *int   `json:"daysRemaining,omitempty"`
	HoursRemaining   *int   `json:"hoursRemaining,omitempty"`
	SubmissionCount  *int   `json:"submissionCount,omitempty"`
	MaxSubmissions   *int   `json:"maxSubmissions,omitempty"`
	LastTrackingCode string `json:"lastTrackingCode,omitempty"`
	LastSubmissionAt string `json:"lastSubmissionAt,omitempty"`
	NextAllowedAt    string `json:"nextAllowedAt,omitempty"`
	Warning          string `json:"warning,omitempty"`
	WarningMessage   string `json:"warningMessage,omitempty"`
}

// verdictResponse traduz o veredito para o formato do portal.
func verdictResponse(v domain.Verdict) checkResponse {
	switch v.Reason {
	case domain.ReasonCooldownDisabled:
		return checkResponse{Allowed: true, Message: "Cooldown disabled"}
	case domain.ReasonWhitelisted:
		return checkResponse{Allowed: true, Message: "IP whitelisted"}
	case domain.ReasonPolicyUnavailable:
		return checkResponse{
			Allowed:        true,
			Message:        "Cooldown check skipped",
			Warning:        WarningPolicyStoreUnavailable,
			WarningMessage: warningMessage,
		}
	case domain.ReasonCategoryNotAllowed:
		return checkResponse{
			Allowed: false,
			Message: "Category not allowed",
			Error:   fmt.Sprintf("Kategori %q tidak diizinkan saat ini", string(v.Category)),
		}
	case domain.ReasonQuotaExceeded:
		ms := v.TimeRemaining.Milliseconds()
		days, hours := v.DaysRemaining(), v.HoursRemaining()
		count, limit := v.SubmissionCount, v.MaxSubmissions
		return checkResponse{
			Allowed:          false,
			Message:          "Max submissions reached",
			TimeRemaining:    &ms,
			DaysRemaining:    &days,
			HoursRemaining:   &hours,
			SubmissionCount:  &count,
			MaxSubmissions:   &limit,
			LastTrackingCode: v.LastTrackingCode,
			LastSubmissionAt: isoTime(v.LastSubmissionAt),
			NextAllowedAt:    isoTime(v.NextAllowedAt),
		}
	}
	return checkResponse{Allowed: true, Message: "Submission allowed"}
}

func isoTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// checkCooldown responde se a identidade pode submeter agora. identitySeed,
// quando enviado, é o endereço obtido em /api/get-ip; sem ele vale o
// endereço da própria requisição. Se o seed não corresponde à conexão, a
// resposta não traz código nem datas da submissão anterior.
func (h *handler) checkCooldown(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decode(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	// o envio só grava em h.Namespace
	if req.AppNamespace != "" && req.AppNamespace != h.Namespace {
		if !namespacePattern.MatchString(req.AppNamespace) {
			writeError(w, http.StatusBadRequest, "Invalid appNamespace")
			return
		}
		writeError(w, http.StatusBadRequest, "Unknown appNamespace")
		return
	}
	ns := h.Namespace
	cat := domain.Category(req.Category)
	if cat != "" && !cat.Valid() {
		writeError(w, http.StatusBadRequest, "Kategori tidak valid")
		return
	}

	connHash, err := h.Hasher.FromRequest(r, h.TrustProxyHeaders)
	if err != nil && req.IdentitySeed == "" {
		writeError(w, http.StatusBadRequest, "IP address is required")
		return
	}
	ipHash := connHash
	if req.IdentitySeed != "" {
		ipHash, err = h.Hasher.Hash(req.IdentitySeed)
		if err != nil {
			writeError(w, http.StatusBadRequest, "IP address is required")
			return
		}
	}

	v, err := h.Admission.Check(r.Context(), ns, ipHash, cat)
	if err != nil {
		h.admissionError(w, err, ipHash)
		return
	}
	body := verdictResponse(v)
	if ipHash != connHash {
		body = body.redacted()
	}
	writeJSON(w, http.StatusOK, body)
}

// redacted remove o que identifica a submissão anterior. Usado quando a
// identidade consultada não é a da própria conexão.
func (c checkResponse) redacted() checkResponse {
	c.LastTrackingCode = ""
	c.LastSubmissionAt = ""
	c.NextAllowedAt = ""
	return c
}

type quotaResponse struct {
	Unlimited      bool    `json:"unlimited"`
	MaxQuota       int     `json:"maxQuota"`
	UsedQuota      int     `json:"usedQuota"`
	RemainingQuota *int    `json:"remainingQuota"`
	NextResetAt    *string `json:"nextResetAt"`
}

// quota mostra a cota da própria conexão. Não aceita identitySeed.
func (h *handler) quota(w http.ResponseWriter, r *http.Request) {
	ipHash, err := h.Hasher.FromRequest(r, h.TrustProxyHeaders)
	if err != nil {
		writeError(w, http.StatusBadRequest, "IP address is required")
		return
	}

	q, err := h.Admission.Quota(r.Context(), h.Namespace, ipHash)
	if err != nil {
		h.admissionError(w, err, ipHash)
		return
	}

	body := quotaResponse{Unlimited: q.Unlimited, MaxQuota: q.Max, UsedQuota: q.Used}
	if !q.Unlimited {
		remaining := q.Remaining
		body.RemainingQuota = &remaining
	}
	if !q.NextResetAt.IsZero() {
		at := isoTime(q.NextResetAt)
		body.NextResetAt = &at
	}
	writeJSON(w, http.StatusOK, body)
}

// admissionError mapeia erros de admissão que não são negações.
func (h *handler) admissionError(w http.ResponseWriter, err error, ipHash string) {
	switch {
	case errors.Is(err, identity.ErrInvalidIdentity):
		writeError(w, http.StatusBadRequest, "IP address is required")
	case errors.Is(err, domain.ErrPolicyUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Layanan sedang tidak tersedia. Silakan coba lagi nanti.")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "Terlalu banyak pengiriman bersamaan. Silakan coba lagi.")
	default:
		h.Logger.Error("admission failure", zap.String("ip_hash", ipHash), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to check cooldown")
	}
}
