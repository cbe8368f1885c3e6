package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"aspirasi-gateway/admission/domain"
)

type store interface {
	domain.PolicyStore
	domain.TrackerStore
}

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Models()...))
	return NewGormStore(db)
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb)
}

func eachStore(t *testing.T, fn func(t *testing.T, s store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("gorm", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
	t.Run("redis", func(t *testing.T) { fn(t, newRedisStore(t)) })
}

func TestStore_PolicyRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()

		_, found, err := s.GetPolicy(ctx, domain.DefaultNamespace)
		require.NoError(t, err)
		assert.False(t, found)

		want := domain.Policy{
			CooldownEnabled:         false,
			CooldownWindow:          3 * domain.Day,
			MaxSubmissionsPerWindow: 2,
			AllowedCategories:       []domain.Category{domain.CategoryAcademic, domain.CategoryPolicy},
		}
		require.NoError(t, s.PutPolicy(ctx, domain.DefaultNamespace, want))

		got, found, err := s.GetPolicy(ctx, domain.DefaultNamespace)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, want, got)

		want.MaxSubmissionsPerWindow = 4
		require.NoError(t, s.PutPolicy(ctx, domain.DefaultNamespace, want))
		got, _, err = s.GetPolicy(ctx, domain.DefaultNamespace)
		require.NoError(t, err)
		assert.Equal(t, 4, got.MaxSubmissionsPerWindow)
	})
}

func TestStore_SaveStateCAS(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		ns := domain.DefaultNamespace
		t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		st, err := s.GetState(ctx, ns, "abc")
		require.NoError(t, err)
		assert.Nil(t, st)

		first := domain.PeriodState{
			IPHash:                  "abc",
			LastSubmissionAt:        t0,
			PeriodStartedAt:         t0,
			SubmissionCountInPeriod: 1,
			TotalSubmissionCount:    1,
			LastTrackingCode:        "MPA-AAAAAA",
		}
		saved, err := s.SaveState(ctx, ns, first)
		require.NoError(t, err)
		assert.Equal(t, int64(1), saved.Version)

		// segundo create com versão 0 perde
		_, err = s.SaveState(ctx, ns, first)
		assert.ErrorIs(t, err, domain.ErrConflict)

		// versão velha perde
		stale := saved
		stale.Version = 7
		_, err = s.SaveState(ctx, ns, stale)
		assert.ErrorIs(t, err, domain.ErrConflict)

		next := saved
		next.SubmissionCountInPeriod = 2
		next.TotalSubmissionCount = 2
		saved, err = s.SaveState(ctx, ns, next)
		require.NoError(t, err)
		assert.Equal(t, int64(2), saved.Version)

		got, err := s.GetState(ctx, ns, "abc")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 2, got.SubmissionCountInPeriod)
		assert.True(t, got.LastSubmissionAt.Equal(t0))
		assert.Equal(t, "MPA-AAAAAA", got.LastTrackingCode)
		assert.Equal(t, int64(2), got.Version)
	})
}

func TestStore_WhitelistAndReset(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		ns := domain.DefaultNamespace

		require.NoError(t, s.SetWhitelisted(ctx, ns, "fresh", true))
		st, err := s.GetState(ctx, ns, "fresh")
		require.NoError(t, err)
		require.NotNil(t, st)
		assert.True(t, st.IsWhitelisted)
		assert.False(t, st.HasSubmission())

		v := st.Version
		require.NoError(t, s.SetWhitelisted(ctx, ns, "fresh", false))
		st, err = s.GetState(ctx, ns, "fresh")
		require.NoError(t, err)
		assert.False(t, st.IsWhitelisted)
		assert.Greater(t, st.Version, v)

		require.NoError(t, s.ResetState(ctx, ns, "fresh"))
		st, err = s.GetState(ctx, ns, "fresh")
		require.NoError(t, err)
		assert.Nil(t, st)

		assert.ErrorIs(t, s.ResetState(ctx, ns, "fresh"), domain.ErrNotFound)
	})
}

func TestStore_NamespacesAreIsolated(t *testing.T) {
	eachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		_, err := s.SaveState(ctx, "ns-a", domain.PeriodState{IPHash: "abc", TotalSubmissionCount: 1})
		require.NoError(t, err)

		st, err := s.GetState(ctx, "ns-b", "abc")
		require.NoError(t, err)
		assert.Nil(t, st)
	})
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewMemoryStore().GetPolicy(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerdictMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewVerdictMetrics(reg)

	m.ObserveVerdict(domain.Verdict{Allowed: true, Reason: domain.ReasonAllowed})
	m.ObserveVerdict(domain.Verdict{Allowed: false, Reason: domain.ReasonQuotaExceeded})
	m.ObserveVerdict(domain.Verdict{Allowed: false, Reason: domain.ReasonQuotaExceeded})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.verdicts.WithLabelValues("quota_exceeded", "denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verdicts.WithLabelValues("allowed", "allowed")))
}
