package ratelimit

import (
	"net/http"
	"time"

	"aspirasi-gateway/middleware/ratelimit/application"
	"aspirasi-gateway/middleware/ratelimit/domain"
	"aspirasi-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	Pool           domain.SlotPool
	RejectStatus   int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita requisições simultâneas. Com Max <= 0 e sem
// Pool é um no-op.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		if opts.Max <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		opts.Pool = infra.NewChanPool(opts.Max)
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				w.Header().Set("Retry-After", "1")
				writeReject(w, opts.RejectStatus, rejectBody{Error: http.StatusText(opts.RejectStatus)})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
