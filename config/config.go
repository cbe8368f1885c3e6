// Package config carrega a configuração do gateway: arquivo YAML opcional,
// .env e variáveis de ambiente, nessa ordem de precedência crescente.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	Namespace   string            `yaml:"namespace"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Identity    IdentityConfig    `yaml:"identity"`
	Store       StoreConfig       `yaml:"store"`
	Redis       RedisConfig       `yaml:"redis"`
	Admission   AdmissionConfig   `yaml:"admission"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	SMTP        SMTPConfig        `yaml:"smtp"`
	Admin       AdminConfig       `yaml:"admin"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type ServerConfig struct {
	ListenAddr         string   `yaml:"listen_addr"`
	TrustProxyHeaders  bool     `yaml:"trust_proxy_headers"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	ShutdownTimeoutRaw string   `yaml:"shutdown_timeout"`

	ShutdownTimeout time.Duration `yaml:"-"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type IdentityConfig struct {
	// Secret liga o HMAC; vazio usa SHA-256 puro.
	Secret string `yaml:"secret"`
}

// StoreConfig escolhe onde ficam política, estado e aspirações.
// memory: tudo volátil; sqlite/postgres: gorm; redis: política e estado no
// redis, aspirações em sqlite (DSN).
type StoreConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AdmissionConfig struct {
	FailureMode string `yaml:"failure_mode"`
	TimeoutRaw  string `yaml:"timeout"`
	MaxRetries  int    `yaml:"max_retries"`

	Timeout time.Duration `yaml:"-"`
}

type ClassLimit struct {
	Points    int    `yaml:"points"`
	WindowRaw string `yaml:"window"`

	Window time.Duration `yaml:"-"`
}

type RateLimitConfig struct {
	Enabled     bool        `yaml:"enabled"`
	Algorithm   string      `yaml:"algorithm"`
	FailureMode string      `yaml:"failure_mode"`
	AddHeaders  bool        `yaml:"add_headers"`
	General     ClassLimit  `yaml:"general"`
	Submission  ClassLimit  `yaml:"submission"`
	Email       ClassLimit  `yaml:"email"`
	Stats       StatsConfig `yaml:"stats"`
}

type StatsConfig struct {
	Backend   string `yaml:"backend"`
	Prefix    string `yaml:"prefix"`
	Bucket    string `yaml:"bucket"`
	TTLRaw    string `yaml:"ttl"`
	TrackKeys bool   `yaml:"track_keys"`

	TTL time.Duration `yaml:"-"`
}

type ConcurrencyConfig struct {
	Max               int    `yaml:"max"`
	AcquireTimeoutRaw string `yaml:"acquire_timeout"`

	AcquireTimeout time.Duration `yaml:"-"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
	// LogOnly registra o e-mail em vez de responder 503 quando não há SMTP.
	LogOnly bool `yaml:"log_only"`
}

type AdminConfig struct {
	// Token protege /api/admin; vazio desliga as rotas.
	Token string `yaml:"token"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default devolve a configuração usada quando nada é informado.
func Default() Config {
	return Config{
		Namespace: "mpa-himakom",
		Server: ServerConfig{
			ListenAddr:         ":8080",
			ShutdownTimeoutRaw: "10s",
		},
		Log:   LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{Driver: "sqlite", DSN: "aspirasi.db"},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Admission: AdmissionConfig{
			FailureMode: "open",
			TimeoutRaw:  "3s",
			MaxRetries:  5,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Algorithm:   "fixed_window",
			FailureMode: "closed",
			AddHeaders:  true,
			General:     ClassLimit{Points: 60, WindowRaw: "60s"},
			Submission:  ClassLimit{Points: 10, WindowRaw: "1h"},
			Email:       ClassLimit{Points: 3, WindowRaw: "1h"},
			Stats: StatsConfig{
				Backend: "none",
				Prefix:  "aspirasi:ratelimit:stats",
				Bucket:  "minute",
				TTLRaw:  "24h",
			},
		},
		Concurrency: ConcurrencyConfig{Max: 100, AcquireTimeoutRaw: "0s"},
		SMTP:        SMTPConfig{Port: 587, FromName: "MPA Aspirasi"},
		Metrics:     MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load monta a configuração final. path vazio procura CONFIG_FILE e os
// caminhos padrão; arquivo ausente não é erro.
func Load(path string) (Config, error) {
	// .env é opcional
	_ = godotenv.Load()

	cfg := Default()

	file, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", file, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var candidates = []string{
	"./config.yml",
	"/etc/aspirasi/config.yml",
}

func resolvePath(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv("CONFIG_FILE")
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", nil
}

// resolve converte as durações textuais.
func (c *Config) resolve() error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", c.Server.ShutdownTimeoutRaw, &c.Server.ShutdownTimeout},
		{"admission.timeout", c.Admission.TimeoutRaw, &c.Admission.Timeout},
		{"rate_limit.general.window", c.RateLimit.General.WindowRaw, &c.RateLimit.General.Window},
		{"rate_limit.submission.window", c.RateLimit.Submission.WindowRaw, &c.RateLimit.Submission.Window},
		{"rate_limit.email.window", c.RateLimit.Email.WindowRaw, &c.RateLimit.Email.Window},
		{"rate_limit.stats.ttl", c.RateLimit.Stats.TTLRaw, &c.RateLimit.Stats.TTL},
		{"concurrency.acquire_timeout", c.Concurrency.AcquireTimeoutRaw, &c.Concurrency.AcquireTimeout},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			*f.dst = 0
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate devolve todos os problemas encontrados de uma vez.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Namespace != "", "namespace must be set")
	check(c.Server.ListenAddr != "", "server.listen_addr must be set")

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		check(c.Store.DSN != "", "store.dsn is required for driver %s", c.Store.Driver)
	case "redis":
		check(c.Redis.Addr != "", "redis.addr is required for store driver redis")
	default:
		errs = append(errs, fmt.Errorf("store.driver must be memory|sqlite|postgres|redis, got %q", c.Store.Driver))
	}

	check(oneOf(c.Admission.FailureMode, "open", "closed"), "admission.failure_mode must be open|closed")
	check(c.Admission.Timeout > 0, "admission.timeout must be > 0")
	check(c.Admission.MaxRetries > 0, "admission.max_retries must be > 0")

	check(oneOf(c.RateLimit.Algorithm, "fixed_window", "token_bucket"), "rate_limit.algorithm must be fixed_window|token_bucket")
	check(oneOf(c.RateLimit.FailureMode, "open", "closed"), "rate_limit.failure_mode must be open|closed")
	for name, cl := range map[string]ClassLimit{
		"general":    c.RateLimit.General,
		"submission": c.RateLimit.Submission,
		"email":      c.RateLimit.Email,
	} {
		check(cl.Points > 0, "rate_limit.%s.points must be > 0", name)
		check(cl.Window > 0, "rate_limit.%s.window must be > 0", name)
	}

	check(oneOf(c.RateLimit.Stats.Backend, "none", "memory", "redis", "prometheus"), "rate_limit.stats.backend must be none|memory|redis|prometheus")
	if c.RateLimit.Stats.Backend == "redis" {
		check(c.Redis.Addr != "", "redis.addr is required when rate_limit.stats.backend=redis")
	}
	check(oneOf(c.RateLimit.Stats.Bucket, "minute", "hour", "none"), "rate_limit.stats.bucket must be minute|hour|none")

	check(c.Concurrency.Max >= 0, "concurrency.max must be >= 0")
	check(c.Concurrency.AcquireTimeout >= 0, "concurrency.acquire_timeout must be >= 0")

	check(c.SMTP.Port >= 0 && c.SMTP.Port <= 65535, "smtp.port out of range")
	if c.Metrics.Enabled {
		check(strings.HasPrefix(c.Metrics.Path, "/"), "metrics.path must start with /")
	}

	return errors.Join(errs...)
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
