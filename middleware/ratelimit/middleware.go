package ratelimit

import (
	"net/http"
	"time"

	"aspirasi-gateway/identity"
	"aspirasi-gateway/middleware/ratelimit/application"
	"aspirasi-gateway/middleware/ratelimit/domain"

	"go.uber.org/zap"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Router              *ClassRouter
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	Hasher              *identity.Hasher
	TrustProxyHeaders   bool
	OnError             domain.FailurePolicy
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	Logger              *zap.Logger
	Now                 func() time.Time
}

// DefaultKeyFunc usa o hash do endereço do cliente como chave. Endereços
// inválidos caem todos no bucket "unknown".
func DefaultKeyFunc(h *identity.Hasher, trustProxy bool) KeyFunc {
	if h == nil {
		h = identity.NewHasher("")
	}
	return func(r *http.Request) string {
		key, err := h.FromRequest(r, trustProxy)
		if err != nil {
			return "unknown"
		}
		return key
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.Hasher, opts.TrustProxyHeaders)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	services := make(map[domain.RouteClass]application.Service)
	for _, rule := range opts.Router.Rules() {
		services[rule.Class] = application.Service{
			Class:      rule.Class,
			Limiter:    rule.Limiter,
			OnError:    opts.OnError,
			RetryAfter: opts.RetryAfter,
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := opts.Router.Match(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			key := opts.KeyFn(r)

			dec, err := services[rule.Class].Decide(r.Context(), domain.Key(key))
			if err != nil {
				opts.Logger.Warn("rate limiter failure",
					zap.String("class", string(rule.Class)),
					zap.Stringer("failure_policy", opts.OnError),
					zap.Bool("allowed", dec.Allowed),
					zap.Error(err),
				)
			}

			if opts.Stats != nil {
				if serr := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     domain.Key(key),
					Class:   rule.Class,
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      opts.Now(),
				}); serr != nil {
					opts.Logger.Debug("rate limit stats failure", zap.Error(serr))
				}
			}

			if dec.ResetAt.IsZero() {
				dec.ResetAt = opts.Now().Add(dec.RetryAfter)
			}

			if rerr := dec.Err(); rerr != nil {
				opts.Logger.Debug("request rejected",
					zap.String("class", string(rule.Class)),
					zap.Duration("retry_after", dec.RetryAfter),
					zap.Error(rerr),
				)
				retry := retryAfterSeconds(dec.RetryAfter)
				h := w.Header()
				h.Set("Retry-After", formatInt(retry))
				h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
				h.Set("X-RateLimit-Remaining", "0")
				h.Set("X-RateLimit-Reset", formatReset(dec.ResetAt))
				writeReject(w, opts.RejectStatus, rejectBody{Error: rejectMessage, RetryAfter: retry})
				return
			}

			if opts.AddRateLimitHeaders {
				h := w.Header()
				h.Set("X-RateLimit-Class", string(rule.Class))
				h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
				h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
				h.Set("X-RateLimit-Reset", formatReset(dec.ResetAt))
			}

			next.ServeHTTP(w, r)
		})
	}
}
