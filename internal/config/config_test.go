package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, int64(512*1024*1024), cfg.Storage.QuotaBytes)
	assert.Equal(t, int64(100*1024*1024), cfg.Storage.MaxFileSize)
	assert.Equal(t, DeleteModeSoft, cfg.Storage.DeleteMode)
	assert.Equal(t, "tiered", cfg.Storage.PermissionScheme)
	assert.Equal(t, time.Hour, cfg.Maintenance.SweepInterval)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VAULT_QUOTA_BYTES", "100")
	t.Setenv("VAULT_DELETE_MODE", "HARD")
	t.Setenv("VAULT_PERMISSION_SCHEME", "readwrite")
	t.Setenv("VAULT_SWEEP_INTERVAL", "0s")
	t.Setenv("VAULT_SWEEP_DRY_RUN", "yes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(100), cfg.Storage.QuotaBytes)
	assert.Equal(t, DeleteModeHard, cfg.Storage.DeleteMode)
	assert.Equal(t, "readwrite", cfg.Storage.PermissionScheme)
	assert.Zero(t, cfg.Maintenance.SweepInterval)
	assert.True(t, cfg.Maintenance.DryRun)
}

func TestLoadRejectsUnknownDeleteMode(t *testing.T) {
	t.Setenv("VAULT_DELETE_MODE", "shred")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete mode")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("VAULT_STORAGE_BACKEND", "ftp")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNonPositiveQuota(t *testing.T) {
	t.Setenv("VAULT_QUOTA_BYTES", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "vault", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/vault?sslmode=disable", p.DSN())
}

func TestLoadRejectsUnknownPermissionScheme(t *testing.T) {
	t.Setenv("VAULT_PERMISSION_SCHEME", "admin")

	_, err := Load()
	require.Error(t, err)
}
