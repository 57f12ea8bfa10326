package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "interproscan.sh", cfg.InterproPath)
	assert.Equal(t, int64(100_000_000), cfg.MaxFileSize)
	assert.Equal(t, 1800, cfg.TimeoutSec)
	assert.Equal(t, 30*time.Minute, cfg.Timeout())
	assert.Equal(t, 24*30*time.Hour, cfg.Retention)
	assert.Empty(t, cfg.BadgerDir)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BIO_MCP_MAX_FILE_SIZE", "1234")
	t.Setenv("BIO_MCP_TIMEOUT_SECONDS", "60")
	t.Setenv("BIO_MCP_INTERPRO_PATH", "/opt/ips/interproscan.sh")
	t.Setenv("BIO_MCP_POOL_SIZE", "4")
	t.Setenv("BIO_MCP_BADGER_DIR", "/var/lib/interprod")

	cfg := Load()
	assert.Equal(t, int64(1234), cfg.MaxFileSize)
	assert.Equal(t, time.Minute, cfg.Timeout())
	assert.Equal(t, "/opt/ips/interproscan.sh", cfg.InterproPath)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.Equal(t, "/var/lib/interprod", cfg.BadgerDir)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("BIO_MCP_TIMEOUT_SECONDS", "soon")
	cfg := Load()
	assert.Equal(t, 1800, cfg.TimeoutSec)
}
