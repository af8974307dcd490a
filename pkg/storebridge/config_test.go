package storebridge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Tiers.Memory)
	assert.Equal(t, 100, cfg.Cache.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "ACCEPT_REMOTE", cfg.Conflict.Strategy)
	assert.Equal(t, 1000, cfg.BatchSize)
	assert.Equal(t, "memory", cfg.Outbox.QueueType)
	require.NoError(t, cfg.validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
tiers:
  local: bridge.db
  async:
    addr: localhost:6379
    key_prefix: bridge
  server:
    host: localhost
    port: 3306
    database: bridge
    username: root
cache:
  max_size: 50
  ttl: 1m
conflict:
  strategy: RETRY_LOCAL
outbox:
  enabled: true
  queue_type: memory
  buffer_size: 64
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "bridge.db", cfg.Tiers.Local)
	require.NotNil(t, cfg.Tiers.Async)
	assert.Equal(t, "localhost:6379", cfg.Tiers.Async.Addr)
	require.NotNil(t, cfg.Tiers.Server)
	assert.Equal(t, 3306, cfg.Tiers.Server.Port)
	assert.Nil(t, cfg.Tiers.Durable)
	assert.Equal(t, 50, cfg.Cache.MaxSize)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "RETRY_LOCAL", cfg.Conflict.Strategy)
	assert.True(t, cfg.Outbox.Enabled)
	assert.Equal(t, 64, cfg.Outbox.BufferSize)

	// Probe order excludes unconfigured tiers.
	assert.Len(t, cfg.factories(), 3)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	write := func(content string) string {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	_, err := LoadConfig(write("conflict:\n  strategy: SHRUG\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid conflict strategy")

	_, err = LoadConfig(write("outbox:\n  queue_type: carrier-pigeon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid outbox queue type")

	_, err = LoadConfig(write("outbox:\n  queue_type: kafka\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one broker")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(write("tiers: [not, a, map]\n"))
	assert.Error(t, err)
}
