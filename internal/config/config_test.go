package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ADDR", "")
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("APP_ADDR")
	os.Unsetenv("JWT_SECRET")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8084", cfg.AppAddr)
	assert.Equal(t, int64(32), cfg.MaxUploadMB)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes())
	assert.Equal(t, 8, cfg.ReadConcurrency)
	assert.False(t, cfg.AuthEnabled())
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("JWT_SECRET=from-file\nREAD_CONCURRENCY=3\nAPP_ADDR=:9000\n"), 0o600))

	t.Setenv("APP_ADDR", ":7000")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("READ_CONCURRENCY", "")
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("READ_CONCURRENCY")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.AppAddr)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, 3, cfg.ReadConcurrency)
	assert.True(t, cfg.AuthEnabled())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "0")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	t.Setenv("MAX_UPLOAD_MB", "abc")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
