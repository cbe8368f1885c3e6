package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"aspirasi-gateway/admission/application"
	admissioninfra "aspirasi-gateway/admission/infra"
	"aspirasi-gateway/api"
	"aspirasi-gateway/bootstrap"
	"aspirasi-gateway/config"
	"aspirasi-gateway/identity"
	"aspirasi-gateway/logging"
	"aspirasi-gateway/mailer"
	"aspirasi-gateway/middleware/csrf"
	"aspirasi-gateway/middleware/ratelimit"
	"aspirasi-gateway/middleware/requestlog"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (default: CONFIG_FILE or ./config.yml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := bootstrap.OpenStores(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("store close failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var observer application.VerdictObserver
	if cfg.Metrics.Enabled {
		observer = admissioninfra.NewVerdictMetrics(reg)
	}
	admission, err := bootstrap.NewAdmission(cfg, stores, logger, observer)
	if err != nil {
		return err
	}

	hasher := identity.NewHasher(cfg.Identity.Secret)
	if !hasher.Keyed() {
		logger.Warn("identity.secret not set, identities hashed with plain SHA-256")
	}

	middlewares := []func(http.Handler) http.Handler{
		requestlog.Middleware(logger.Named("http")),
		csrf.Middleware(csrf.Options{AllowedOrigins: cfg.Server.AllowedOrigins}),
	}
	if cfg.RateLimit.Enabled {
		mw, err := rateLimitMiddleware(ctx, cfg, stores, reg, hasher, logger)
		if err != nil {
			return err
		}
		middlewares = append(middlewares, mw)
	}
	middlewares = append(middlewares, ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.Concurrency.Max,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.Concurrency.AcquireTimeout,
	}))

	deps := api.Deps{
		Namespace:         cfg.Namespace,
		Admission:         admission,
		Aspirations:       stores.Aspirations,
		Notifier:          newNotifier(cfg.SMTP, logger),
		Hasher:            hasher,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		AdminToken:        cfg.Admin.Token,
		Health:            stores.Health,
		Middlewares:       middlewares,
		Logger:            logger.Named("api"),
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		deps.MetricsPath = cfg.Metrics.Path
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.Server.ListenAddr),
		zap.String("namespace", cfg.Namespace),
		zap.String("store", cfg.Store.Driver),
		zap.String("admission_failure_mode", cfg.Admission.FailureMode),
	)
	logger.Info("rate limit",
		zap.Bool("enabled", cfg.RateLimit.Enabled),
		zap.String("algorithm", cfg.RateLimit.Algorithm),
		zap.String("failure_mode", cfg.RateLimit.FailureMode),
		zap.String("stats", cfg.RateLimit.Stats.Backend),
	)
	logger.Info("concurrency",
		zap.Int("max", cfg.Concurrency.Max),
		zap.Duration("acquire_timeout", cfg.Concurrency.AcquireTimeout),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("gateway stopped")
	return nil
}

// newNotifier devolve nil quando não há SMTP nem log_only; a API responde 503.
func newNotifier(c config.SMTPConfig, logger *zap.Logger) api.Notifier {
	smtpCfg := mailer.SMTPConfig{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
		FromName: c.FromName,
	}

	var sender mailer.Sender
	switch s, err := mailer.NewSMTPSender(smtpCfg); {
	case err == nil:
		sender = s
	case c.LogOnly:
		sender = mailer.LogSender{Logger: logger.Named("mailer")}
	default:
		logger.Warn("smtp not configured, /api/send-email disabled")
		return nil
	}
	return mailer.TrackingNotifier{Sender: sender}
}
