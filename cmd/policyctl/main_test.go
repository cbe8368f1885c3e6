package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aspirasi-gateway/admission/domain"
	"aspirasi-gateway/identity"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("STORE_DSN", filepath.Join(dir, "aspirasi.db"))
	t.Setenv("IDENTITY_SECRET", "pepper")
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, &out, &errOut)
	return out.String(), err
}

func TestHash(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "hash", "192.0.2.1")
	require.NoError(t, err)

	want, err := identity.NewHasher("pepper").Hash("192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, want, strings.TrimSpace(out))

	_, err = runCLI(t, "hash")
	assert.ErrorIs(t, err, errUsage)
}

func TestPolicyGetSet(t *testing.T) {
	dir := setupEnv(t)

	out, err := runCLI(t, "get")
	require.NoError(t, err)
	var rec domain.PolicyRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, domain.DefaultCooldownDays, rec.CooldownDays)

	file := filepath.Join(dir, "policy.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"cooldownEnabled":true,"cooldownDays":3,"maxAspirationsPerPeriod":2,"allowedCategories":["Akademik"]}`), 0o600))
	_, err = runCLI(t, "set", file)
	require.NoError(t, err)

	out, err = runCLI(t, "get")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, 3, rec.CooldownDays)
	assert.Equal(t, 2, rec.MaxAspirationsPerPeriod)
	assert.Equal(t, []string{"Akademik"}, rec.AllowedCategories)

	require.NoError(t, os.WriteFile(file, []byte(`{"cooldownDays":0,"maxAspirationsPerPeriod":1,"allowedCategories":["Akademik"]}`), 0o600))
	_, err = runCLI(t, "set", file)
	assert.ErrorIs(t, err, domain.ErrInvalidPolicy)
}

func TestWhitelistStateReset(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "whitelist", "192.0.2.1")
	require.NoError(t, err)
	var rec domain.TrackerRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.True(t, rec.IsWhitelisted)

	out, err = runCLI(t, "state", rec.IPHash)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.True(t, rec.IsWhitelisted)

	out, err = runCLI(t, "unwhitelist", strings.ToUpper(rec.IPHash))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.False(t, rec.IsWhitelisted)

	_, err = runCLI(t, "reset", "192.0.2.1")
	require.NoError(t, err)
	_, err = runCLI(t, "reset", "192.0.2.1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = runCLI(t, "state", "192.0.2.1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUsageErrors(t *testing.T) {
	setupEnv(t)

	_, err := runCLI(t)
	assert.ErrorIs(t, err, errUsage)
	_, err = runCLI(t, "explode")
	assert.ErrorIs(t, err, errUsage)
	_, err = runCLI(t, "state", "not-an-ip")
	assert.ErrorIs(t, err, identity.ErrInvalidIdentity)
}
