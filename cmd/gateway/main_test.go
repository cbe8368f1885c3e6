package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aspirasi-gateway/bootstrap"
	"aspirasi-gateway/config"
	"aspirasi-gateway/identity"
	"aspirasi-gateway/mailer"
	"aspirasi-gateway/middleware/ratelimit/domain"
	"aspirasi-gateway/middleware/ratelimit/infra"
)

func TestRateLimitMiddleware_EmailClass(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Email = config.ClassLimit{Points: 2, Window: time.Hour}
	cfg.RateLimit.Submission = config.ClassLimit{Points: 5, Window: time.Hour}
	cfg.RateLimit.General = config.ClassLimit{Points: 10, Window: time.Minute}
	cfg.RateLimit.Stats.Backend = "memory"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mw, err := rateLimitMiddleware(ctx, cfg, &bootstrap.Stores{}, prometheus.NewRegistry(), identity.NewHasher("k"), zap.NewNop())
	require.NoError(t, err)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/send-email", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// a classe general tem bucket próprio
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/get-ip", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "api", rec.Header().Get("X-RateLimit-Class"))
}

func TestNewStats_Backends(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false

	s, err := newStats(cfg, &bootstrap.Stores{}, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.Nil(t, s)

	cfg.RateLimit.Stats.Backend = "memory"
	s, err = newStats(cfg, &bootstrap.Stores{}, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.IsType(t, &infra.MemoryStatsStore{}, s)

	cfg.Metrics.Enabled = true
	cfg.RateLimit.Stats.Backend = "none"
	s, err = newStats(cfg, &bootstrap.Stores{}, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.IsType(t, &infra.PrometheusStatsStore{}, s)

	cfg.RateLimit.Stats.Backend = "prometheus"
	s, err = newStats(cfg, &bootstrap.Stores{}, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.IsType(t, &infra.PrometheusStatsStore{}, s)

	cfg.RateLimit.Algorithm = "token_bucket"
	assert.IsType(t, &infra.TokenBucketStore{}, newLimiter(cfg.RateLimit.Algorithm, config.ClassLimit{Points: 3, Window: time.Hour}))
}

func TestNewStats_RedisAndPrometheusBothRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Metrics.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	cfg.RateLimit.Stats.Backend = "redis"
	cfg.RateLimit.Stats.TTL = time.Hour

	stores := &bootstrap.Stores{}
	t.Cleanup(func() { _ = stores.Close() })
	reg := prometheus.NewRegistry()

	s, err := newStats(cfg, stores, reg)
	require.NoError(t, err)
	require.IsType(t, domain.MultiStats{}, s)

	ev := domain.StatsEvent{Key: "k", Class: domain.ClassEmail, Allowed: false, Method: http.MethodPost, Path: "/api/send-email", At: time.Now()}
	require.NoError(t, s.Record(context.Background(), ev))

	multi := s.(domain.MultiStats)
	byClass, err := multi[0].(*infra.RedisStatsStore).ByClass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), byClass[domain.ClassEmail].Denied)

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewNotifier(t *testing.T) {
	assert.Nil(t, newNotifier(config.SMTPConfig{}, zap.NewNop()))

	n := newNotifier(config.SMTPConfig{LogOnly: true}, zap.NewNop())
	require.NotNil(t, n)
	assert.IsType(t, mailer.LogSender{}, n.(mailer.TrackingNotifier).Sender)

	n = newNotifier(config.SMTPConfig{Host: "smtp.example.org", Port: 587, Username: "u", Password: "p", From: "noreply@example.org"}, zap.NewNop())
	require.NotNil(t, n)
	assert.IsType(t, &mailer.SMTPSender{}, n.(mailer.TrackingNotifier).Sender)
}
