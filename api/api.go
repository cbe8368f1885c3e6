// Package api expõe a superfície HTTP do portal: verificação de cooldown,
// envio e rastreio de aspirações, e-mail de rastreio e rotas de
// administração.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"aspirasi-gateway/admission/application"
	"aspirasi-gateway/aspiration"
	"aspirasi-gateway/identity"
)

// maxBodyBytes cobre a imagem em data URL (3.000.000 caracteres) com folga.
const maxBodyBytes = 4 << 20

// AspirationStore é o que a API usa do repositório de aspirações.
type AspirationStore interface {
	Create(ctx context.Context, a *aspiration.Aspiration) error
	FindByTrackingCode(ctx context.Context, namespace, code string) (*aspiration.Aspiration, error)
	UpdateStatus(ctx context.Context, namespace, code string, status aspiration.Status, reply *string) (*aspiration.Aspiration, error)
}

// Notifier envia o código de rastreio por e-mail.
type Notifier interface {
	SendTrackingCode(ctx context.Context, to, code string) error
}

type Deps struct {
	Namespace         string
	Admission         *application.Service
	Aspirations       AspirationStore
	Notifier          Notifier
	Hasher            *identity.Hasher
	TrustProxyHeaders bool
	// AdminToken vazio desliga /api/admin.
	AdminToken string
	// Health é consultado por /healthz; nil responde sempre ok.
	Health      func(ctx context.Context) error
	Metrics     http.Handler
	MetricsPath string
	Middlewares []func(http.Handler) http.Handler
	Logger      *zap.Logger
	Now         func() time.Time
}

type handler struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Hasher == nil {
		d.Hasher = identity.NewHasher("")
	}
	if d.MetricsPath == "" {
		d.MetricsPath = "/metrics"
	}
	h := &handler{Deps: d}

	r := chi.NewRouter()
	for _, mw := range d.Middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", h.health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, d.MetricsPath, d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/get-ip", h.getIP)
		r.Post("/check-cooldown", h.checkCooldown)
		r.Get("/quota", h.quota)
		r.Post("/aspirations", h.submit)
		r.Get("/track/{code}", h.track)
		r.Post("/send-email", h.sendEmail)

		if d.AdminToken != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(bearerAuth(d.AdminToken))
				r.Get("/settings", h.getSettings)
				r.Put("/settings", h.putSettings)
				r.Get("/ip-tracking/{ipHash}", h.getTracking)
				r.Delete("/ip-tracking/{ipHash}", h.resetTracking)
				r.Put("/ip-tracking/{ipHash}/whitelist", h.whitelist(true))
				r.Delete("/ip-tracking/{ipHash}/whitelist", h.whitelist(false))
				r.Patch("/aspirations/{code}", h.updateAspiration)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Health(ctx); err != nil {
			h.Logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type getIPResponse struct {
	IP        string `json:"ip"`
	Timestamp string `json:"timestamp"`
}

func (h *handler) getIP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, getIPResponse{
		IP:        identity.ClientAddress(r, h.TrustProxyHeaders),
		Timestamp: h.Now().UTC().Format(time.RFC3339Nano),
	})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

var errBodyTooLarge = errors.New("request body too large")

// decode lê um JSON limitado a maxBodyBytes e rejeita lixo depois do objeto.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return errBodyTooLarge
		}
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid JSON body")
}
