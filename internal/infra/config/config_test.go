package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarimed/auditchain/internal/infra/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

// TestLoadAppliesDefaults verifies a minimal config file picks up the
// documented defaults.
func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost:5432/auditchain
audit:
  hmac_key: "c2FtcGxlLWRldi1vbmx5LWtleS1kby1ub3QtdXNlLWluLXByb2Q="
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8084, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Mode)
	assert.EqualValues(t, 8, cfg.Database.MaxConns)
	assert.EqualValues(t, 2, cfg.Database.MinConns)
	assert.Equal(t, time.Hour, cfg.Verification.Interval)
	assert.Equal(t, 500, cfg.Verification.BatchSize)
	assert.True(t, cfg.Verification.Incremental)
	assert.False(t, cfg.Audit.KMS.Enabled)
}

// TestLoadOverrides verifies explicit values win over defaults.
func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  mode: production
database:
  url: postgres://localhost:5432/auditchain
  max_conns: 20
audit:
  hmac_key: "c2FtcGxlLWRldi1vbmx5LWtleS1kby1ub3QtdXNlLWluLXByb2Q="
verification:
  interval: 15m
  batch_size: 100
  incremental: false
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Mode)
	assert.EqualValues(t, 20, cfg.Database.MaxConns)
	assert.Equal(t, 15*time.Minute, cfg.Verification.Interval)
	assert.Equal(t, 100, cfg.Verification.BatchSize)
	assert.False(t, cfg.Verification.Incremental)
}

// TestLoadRequiresDatabaseURL verifies the connection string is mandatory.
func TestLoadRequiresDatabaseURL(t *testing.T) {
	path := writeConfig(t, `
audit:
  hmac_key: "c2FtcGxlLWRldi1vbmx5LWtleS1kby1ub3QtdXNlLWluLXByb2Q="
`)

	_, err := config.Load(path)
	require.Error(t, err)
}

// TestLoadRequiresKeySource verifies a key must come from somewhere: the
// local hmac_key, or KMS when enabled.
func TestLoadRequiresKeySource(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost:5432/auditchain
audit:
  kms:
    enabled: false
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hmac_key")
}

// TestLoadKMSRequiresFields verifies enabling KMS demands its settings.
func TestLoadKMSRequiresFields(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost:5432/auditchain
audit:
  kms:
    enabled: true
    region: us-east-1
`)

	_, err := config.Load(path)
	require.Error(t, err)
}
