package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"aspirasi-gateway/bootstrap"
	"aspirasi-gateway/config"
	"aspirasi-gateway/identity"
	"aspirasi-gateway/middleware/ratelimit"
	"aspirasi-gateway/middleware/ratelimit/domain"
	"aspirasi-gateway/middleware/ratelimit/infra"
)

type limiterStore interface {
	domain.Limiter
	StartJanitor(ctx context.Context)
}

func newLimiter(algorithm string, l config.ClassLimit) limiterStore {
	if algorithm == "token_bucket" {
		return infra.NewTokenBucketForWindow(l.Points, l.Window)
	}
	return infra.NewFixedWindowStore(l.Points, l.Window)
}

// rateLimitMiddleware cria um limiter por classe de rota. Email vem antes de
// submission e general porque o roteador usa o primeiro prefixo que casa.
func rateLimitMiddleware(
	ctx context.Context,
	cfg config.Config,
	stores *bootstrap.Stores,
	reg prometheus.Registerer,
	hasher *identity.Hasher,
	logger *zap.Logger,
) (func(http.Handler) http.Handler, error) {
	rl := cfg.RateLimit
	onError, err := domain.ParseFailurePolicy(rl.FailureMode)
	if err != nil {
		return nil, err
	}

	classes := []struct {
		class domain.RouteClass
		limit config.ClassLimit
	}{
		{domain.ClassEmail, rl.Email},
		{domain.ClassSubmission, rl.Submission},
		{domain.ClassGeneral, rl.General},
	}
	rules := make([]ratelimit.ClassRule, 0, len(classes))
	for _, c := range classes {
		store := newLimiter(rl.Algorithm, c.limit)
		store.StartJanitor(ctx)
		rules = append(rules, ratelimit.ClassRule{
			Class:    c.class,
			Prefixes: ratelimit.DefaultPrefixes(c.class),
			Limiter:  store,
		})
	}

	stats, err := newStats(cfg, stores, reg)
	if err != nil {
		return nil, err
	}

	return ratelimit.Middleware(ratelimit.Options{
		Router:              ratelimit.NewClassRouter(rules...),
		Stats:               stats,
		Hasher:              hasher,
		TrustProxyHeaders:   cfg.Server.TrustProxyHeaders,
		OnError:             onError,
		RejectStatus:        http.StatusTooManyRequests,
		AddRateLimitHeaders: rl.AddHeaders,
		Logger:              logger.Named("ratelimit"),
	}), nil
}

// newStats monta o backend de estatísticas. Com métricas ligadas, as decisões
// também vão para o prometheus, qualquer que seja o backend escolhido.
func newStats(cfg config.Config, stores *bootstrap.Stores, reg prometheus.Registerer) (domain.StatsStore, error) {
	sc := cfg.RateLimit.Stats

	var primary domain.StatsStore
	switch sc.Backend {
	case "memory":
		primary = infra.NewMemoryStatsStore(infra.WithTrackKeys(sc.TrackKeys))
	case "prometheus":
		return infra.NewPrometheusStatsStore(reg), nil
	case "redis":
		rdb := stores.Redis
		if rdb == nil {
			c, err := bootstrap.OpenRedis(cfg.Redis)
			if err != nil {
				return nil, err
			}
			stores.AddCloser(c.Close)
			rdb = c
		}
		primary = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(sc.Prefix),
			infra.WithStatsTTL(sc.TTL),
			infra.WithStatsBucket(sc.Bucket),
			infra.WithStatsTrackKeys(sc.TrackKeys),
		)
	}

	switch {
	case !cfg.Metrics.Enabled && primary == nil:
		return nil, nil
	case !cfg.Metrics.Enabled:
		return primary, nil
	case primary == nil:
		return infra.NewPrometheusStatsStore(reg), nil
	}
	return domain.MultiStats{primary, infra.NewPrometheusStatsStore(reg)}, nil
}
