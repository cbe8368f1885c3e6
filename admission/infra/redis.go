package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"aspirasi-gateway/admission/domain"
)

const redisKeyPrefix = "aspirasi:admission"

// RedisStore guarda política e estado como documentos JSON (PolicyRecord e
// TrackerRecord). A escrita condicional usa WATCH/MULTI na chave da
// identidade.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: redisKeyPrefix}
}

func (s *RedisStore) policyKey(namespace string) string {
	return s.prefix + ":" + namespace + ":policy"
}

func (s *RedisStore) trackerKey(namespace, ipHash string) string {
	return s.prefix + ":" + namespace + ":tracker:" + ipHash
}

func (s *RedisStore) GetPolicy(ctx context.Context, namespace string) (domain.Policy, bool, error) {
	raw, err := s.rdb.Get(ctx, s.policyKey(namespace)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Policy{}, false, nil
	}
	if err != nil {
		return domain.Policy{}, false, fmt.Errorf("get policy: %w", err)
	}

	var rec domain.PolicyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// documento corrompido conta como ausente; a política padrão assume
		return domain.Policy{}, false, nil
	}
	return rec.Policy(), true, nil
}

func (s *RedisStore) PutPolicy(ctx context.Context, namespace string, p domain.Policy) error {
	raw, err := json.Marshal(domain.NewPolicyRecord(p))
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.policyKey(namespace), raw, 0).Err(); err != nil {
		return fmt.Errorf("put policy: %w", err)
	}
	return nil
}

func (s *RedisStore) GetState(ctx context.Context, namespace, ipHash string) (*domain.PeriodState, error) {
	return readState(ctx, s.rdb, s.trackerKey(namespace, ipHash))
}

func (s *RedisStore) SaveState(ctx context.Context, namespace string, next domain.PeriodState) (domain.PeriodState, error) {
	key := s.trackerKey(namespace, next.IPHash)
	var saved domain.PeriodState

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readState(ctx, tx, key)
		if err != nil {
			return err
		}
		var version int64
		if cur != nil {
			version = cur.Version
		}
		if version != next.Version {
			return domain.ErrConflict
		}

		saved = next
		saved.Version = next.Version + 1
		raw, err := json.Marshal(domain.NewTrackerRecord(saved))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return domain.PeriodState{}, domain.ErrConflict
	}
	if err != nil {
		return domain.PeriodState{}, err
	}
	return saved, nil
}

func (s *RedisStore) SetWhitelisted(ctx context.Context, namespace, ipHash string, whitelisted bool) error {
	key := s.trackerKey(namespace, ipHash)
	for {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := readState(ctx, tx, key)
			if err != nil {
				return err
			}
			st := domain.PeriodState{IPHash: ipHash}
			if cur != nil {
				st = *cur
			}
			st.IsWhitelisted = whitelisted
			st.Version++

			raw, err := json.Marshal(domain.NewTrackerRecord(st))
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, raw, 0)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		return err
	}
}

func (s *RedisStore) ResetState(ctx context.Context, namespace, ipHash string) error {
	n, err := s.rdb.Del(ctx, s.trackerKey(namespace, ipHash)).Result()
	if err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readState(ctx context.Context, c stringGetter, key string) (*domain.PeriodState, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}

	var rec domain.TrackerRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", key, err)
	}
	st := rec.State()
	return &st, nil
}
