package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"aspirasi-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore acumula contadores de decisão em hashes do Redis:
// total, série temporal (minuto ou hora), por classe de rota, por rota e,
// opcionalmente, por chave (hash de identidade).
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total e classe são cumulativos e não expiram.
	ttl time.Duration

	bucket string // "minute" (padrão), "hour" ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "aspirasi:ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *RedisStatsStore) bucketKey(at time.Time) string {
	switch s.bucket {
	case "minute":
		return s.key("minute", at.UTC().Format("200601021504"))
	case "hour":
		return s.key("hour", at.UTC().Format("2006010215"))
	default:
		return ""
	}
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.key("total"), field, 1)

	if bk := s.bucketKey(at); bk != "" {
		pipe.HIncrBy(ctx, bk, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bk, s.ttl)
		}
	}

	if ev.Class != "" {
		pipe.HIncrBy(ctx, s.key("class"), string(ev.Class)+":"+field, 1)
	}

	if routeField := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); routeField != "" {
		pipe.HIncrBy(ctx, s.key("route"), routeField+":"+field, 1)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(string(ev.Key)); k != "" {
			kk := s.key("key", k)
			pipe.HIncrBy(ctx, kk, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, kk, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Total lê o contador cumulativo.
func (s *RedisStatsStore) Total(ctx context.Context) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key("total")).Result()
	if err != nil {
		return Counters{}, err
	}
	return Counters{Allowed: parseCount(vals["allowed"]), Denied: parseCount(vals["denied"])}, nil
}

// ByClass lê os contadores por classe de rota.
func (s *RedisStatsStore) ByClass(ctx context.Context) (map[domain.RouteClass]Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key("class")).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[domain.RouteClass]Counters)
	for f, v := range vals {
		i := strings.LastIndexByte(f, ':')
		if i <= 0 {
			continue
		}
		class := domain.RouteClass(f[:i])
		c := out[class]
		switch f[i+1:] {
		case "allowed":
			c.Allowed = parseCount(v)
		case "denied":
			c.Denied = parseCount(v)
		}
		out[class] = c
	}
	return out, nil
}

func parseCount(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
