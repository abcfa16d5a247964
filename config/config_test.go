package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint64(2*1000*1000), cfg.Runtime.MaxRequestBytes())
	assert.Equal(t, 4, cfg.Runtime.MaxLoginFailure)
	assert.Equal(t, "100ms", cfg.Runtime.InputUpdateFrequency)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stellator.yaml")
	doc := `
connection:
  kind: postgres
  host: db.internal
  port: 5432
  dbname: app
runtime:
  max_request_size: 10MB
  max_login_failure: 6
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Connection.Kind)
	assert.Equal(t, "db.internal", cfg.Connection.Host)
	assert.Equal(t, 6, cfg.Runtime.MaxLoginFailure)
	assert.Equal(t, uint64(10*1000*1000), cfg.Runtime.MaxRequestBytes())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STELLATOR_DB_HOST", "override.internal")
	t.Setenv("STELLATOR_DB_PORT", "6543")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "override.internal", cfg.Connection.Host)
	assert.Equal(t, 6543, cfg.Connection.Port)
}

func TestLoadMissingFileIsNoOp(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, uint64(500*1000*1000), cfg.Runtime.MaxFileBytes())
}
