// Package bootstrap monta as dependências compartilhadas pelos binários a
// partir da configuração carregada.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aspirasi-gateway/admission/application"
	"aspirasi-gateway/admission/domain"
	"aspirasi-gateway/admission/infra"
	"aspirasi-gateway/aspiration"
	"aspirasi-gateway/config"
	"aspirasi-gateway/storage"
)

// memoryDSN mantém as aspirações só enquanto o processo vive.
const memoryDSN = "file::memory:?cache=shared"

// Stores agrupa as stores abertas e como fechá-las.
type Stores struct {
	Policies    domain.PolicyStore
	Tracker     domain.TrackerStore
	Aspirations *aspiration.Repository
	DB          *gorm.DB
	Redis       redis.UniversalClient

	closers []func() error
}

// OpenRedis cria o cliente e confere a conexão com um ping curto.
func OpenRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// OpenStores abre política, estado e aspirações conforme store.driver e
// roda as migrações do gorm.
func OpenStores(cfg config.Config, logger *zap.Logger) (*Stores, error) {
	s := &Stores{}

	dbOpts := storage.Options{Driver: storage.DriverSQLite, DSN: cfg.Store.DSN, MaxOpenConns: cfg.Store.MaxOpenConns}
	switch cfg.Store.Driver {
	case "memory":
		dbOpts.DSN = memoryDSN
	case "postgres":
		dbOpts.Driver = storage.DriverPostgres
	case "redis":
		if dbOpts.DSN == "" {
			dbOpts.DSN = "aspirasi.db"
		}
	}

	db, err := storage.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	s.DB = db
	s.closers = append(s.closers, func() error { return storage.Close(db) })

	models := aspiration.Models()
	if cfg.Store.Driver == "sqlite" || cfg.Store.Driver == "postgres" {
		models = append(models, infra.Models()...)
	}
	if err := storage.Migrate(db, models...); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Aspirations = aspiration.NewRepository(db)

	switch cfg.Store.Driver {
	case "memory":
		mem := infra.NewMemoryStore()
		s.Policies, s.Tracker = mem, mem
	case "sqlite", "postgres":
		gs := infra.NewGormStore(db)
		s.Policies, s.Tracker = gs, gs
	case "redis":
		rdb, err := OpenRedis(cfg.Redis)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Redis = rdb
		s.closers = append(s.closers, rdb.Close)
		rs := infra.NewRedisStore(rdb)
		s.Policies, s.Tracker = rs, rs
	default:
		_ = s.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	logger.Info("stores ready",
		zap.String("driver", cfg.Store.Driver),
		zap.String("aspirations", dbOpts.Driver),
	)
	return s, nil
}

// Health confere banco e redis (quando houver).
func (s *Stores) Health(ctx context.Context) error {
	if err := storage.Ping(ctx, s.DB); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close fecha na ordem inversa da abertura.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// NewAdmission monta o serviço de admissão sobre as stores abertas.
func NewAdmission(cfg config.Config, s *Stores, logger *zap.Logger, obs application.VerdictObserver) (*application.Service, error) {
	mode, err := domain.ParseFailureMode(cfg.Admission.FailureMode)
	if err != nil {
		return nil, err
	}
	return &application.Service{
		Policies:      s.Policies,
		Tracker:       s.Tracker,
		Timeout:       cfg.Admission.Timeout,
		OnUnavailable: mode,
		MaxRetries:    cfg.Admission.MaxRetries,
		Logger:        logger.Named("admission"),
		Observer:      obs,
	}, nil
}

// AddCloser registra um recurso extra para ser fechado junto das stores.
func (s *Stores) AddCloser(fn func() error) {
	s.closers = append(s.closers, fn)
}
