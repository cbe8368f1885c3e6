package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mpa-himakom", cfg.Namespace)
	assert.Equal(t, "open", cfg.Admission.FailureMode)
	assert.Equal(t, "closed", cfg.RateLimit.FailureMode)
	assert.Equal(t, 60, cfg.RateLimit.General.Points)
	assert.Equal(t, time.Minute, cfg.RateLimit.General.Window)
	assert.Equal(t, time.Hour, cfg.RateLimit.Submission.Window)
	assert.Equal(t, 3, cfg.RateLimit.Email.Points)
	assert.Equal(t, 3*time.Second, cfg.Admission.Timeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "portal.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
namespace: bem-kampus
store:
  driver: memory
rate_limit:
  algorithm: token_bucket
  submission:
    points: 5
    window: 30m
admission:
  failure_mode: closed
`), 0o600))

	t.Setenv("RATE_EMAIL_POINTS", "1")
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("RATE_GENERAL_POINTS", "lots")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bem-kampus", cfg.Namespace)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "token_bucket", cfg.RateLimit.Algorithm)
	assert.Equal(t, 5, cfg.RateLimit.Submission.Points)
	assert.Equal(t, 30*time.Minute, cfg.RateLimit.Submission.Window)
	assert.Equal(t, "closed", cfg.Admission.FailureMode)
	assert.Equal(t, 1, cfg.RateLimit.Email.Points)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	// valor inválido no ambiente mantém o anterior
	assert.Equal(t, 60, cfg.RateLimit.General.Points)
}

func TestLoad_ConfigFileFromEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "c.yml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: dari-env\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dari-env", cfg.Namespace)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("nope.yml")
	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ADMISSION_TIMEOUT", "soon")

	_, err := Load("")
	assert.ErrorContains(t, err, "admission.timeout")
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.resolve())
	cfg.Store.Driver = "mongo"
	cfg.RateLimit.Algorithm = "leaky"
	cfg.RateLimit.Email.Points = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "store.driver")
	assert.ErrorContains(t, err, "rate_limit.algorithm")
	assert.ErrorContains(t, err, "rate_limit.email.points")
}
