package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnv sobrescreve o que veio do arquivo. Valores inválidos são
// ignorados e o valor anterior permanece.
func applyEnv(c *Config) {
	c.Namespace = getenvDefault("APP_NAMESPACE", c.Namespace)

	c.Server.ListenAddr = getenvDefault("LISTEN_ADDR", c.Server.ListenAddr)
	c.Server.TrustProxyHeaders = getenvBoolDefault("TRUST_PROXY_HEADERS", c.Server.TrustProxyHeaders)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	c.Server.ShutdownTimeoutRaw = getenvDefault("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeoutRaw)

	c.Log.Level = getenvDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getenvDefault("LOG_FORMAT", c.Log.Format)

	c.Identity.Secret = getenvDefault("IDENTITY_SECRET", c.Identity.Secret)

	c.Store.Driver = getenvDefault("STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getenvDefault("STORE_DSN", c.Store.DSN)
	c.Store.MaxOpenConns = getenvIntDefault("STORE_MAX_OPEN_CONNS", c.Store.MaxOpenConns)

	c.Redis.Addr = getenvDefault("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getenvDefault("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getenvIntDefault("REDIS_DB", c.Redis.DB)

	c.Admission.FailureMode = getenvDefault("ADMISSION_FAILURE_MODE", c.Admission.FailureMode)
	c.Admission.TimeoutRaw = getenvDefault("ADMISSION_TIMEOUT", c.Admission.TimeoutRaw)
	c.Admission.MaxRetries = getenvIntDefault("ADMISSION_MAX_RETRIES", c.Admission.MaxRetries)

	rl := &c.RateLimit
	rl.Enabled = getenvBoolDefault("RATE_ENABLED", rl.Enabled)
	rl.Algorithm = getenvDefault("RATE_ALGORITHM", rl.Algorithm)
	rl.FailureMode = getenvDefault("RATE_FAILURE_MODE", rl.FailureMode)
	rl.AddHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", rl.AddHeaders)
	classEnv("GENERAL", &rl.General)
	classEnv("SUBMISSION", &rl.Submission)
	classEnv("EMAIL", &rl.Email)
	rl.Stats.Backend = getenvDefault("RATE_STATS_BACKEND", rl.Stats.Backend)
	rl.Stats.Prefix = getenvDefault("RATE_STATS_PREFIX", rl.Stats.Prefix)
	rl.Stats.Bucket = getenvDefault("RATE_STATS_BUCKET", rl.Stats.Bucket)
	rl.Stats.TTLRaw = getenvDefault("RATE_STATS_TTL", rl.Stats.TTLRaw)
	rl.Stats.TrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", rl.Stats.TrackKeys)

	c.Concurrency.Max = getenvIntDefault("CONCURRENCY_MAX", c.Concurrency.Max)
	c.Concurrency.AcquireTimeoutRaw = getenvDefault("CONCURRENCY_TIMEOUT", c.Concurrency.AcquireTimeoutRaw)

	c.SMTP.Host = getenvDefault("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = getenvIntDefault("SMTP_PORT", c.SMTP.Port)
	c.SMTP.Username = getenvDefault("SMTP_USERNAME", c.SMTP.Username)
	c.SMTP.Password = getenvDefault("SMTP_PASSWORD", c.SMTP.Password)
	c.SMTP.From = getenvDefault("SMTP_FROM", c.SMTP.From)
	c.SMTP.FromName = getenvDefault("SMTP_FROM_NAME", c.SMTP.FromName)
	c.SMTP.LogOnly = getenvBoolDefault("SMTP_LOG_ONLY", c.SMTP.LogOnly)

	c.Admin.Token = getenvDefault("ADMIN_TOKEN", c.Admin.Token)

	c.Metrics.Enabled = getenvBoolDefault("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getenvDefault("METRICS_PATH", c.Metrics.Path)
}

// classEnv lê RATE_<CLASS>_POINTS e RATE_<CLASS>_WINDOW.
func classEnv(class string, cl *ClassLimit) {
	cl.Points = getenvIntDefault("RATE_"+class+"_POINTS", cl.Points)
	cl.WindowRaw = getenvDefault("RATE_"+class+"_WINDOW", cl.WindowRaw)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
