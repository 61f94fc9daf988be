package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMatchEngineConfig(t *testing.T) {
	path := writeYAML(t, `
logging:
  level: info
  console: true
redis:
  addr: 127.0.0.1:6379
  db: 0
engine_input_mq:
  order_input_consumer_count: 4
  order_input_batch_size: 100
  event_input_batch_size: 10
engine_output_mq:
  output_task_count: 8
  stream_max_len: 10000
engine:
  max_order_count: 1000000
snapshot_path: /var/lib/predictex/snapshot.json
snapshot_every: 30s
`)

	var cfg MatchEngineConfig
	require.NoError(t, Load(path, "MATCHENGINE", &cfg))
	require.NoError(t, cfg.Check())

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr)
	assert.Equal(t, 4, cfg.EngineInputMQ.OrderInputConsumerCount)
	assert.Equal(t, int64(10000), cfg.EngineOutputMQ.StreamMaxLen)
	assert.Equal(t, 30*time.Second, cfg.SnapshotEvery)
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	path := writeYAML(t, `
logging:
  level: info
redis:
  addr: 127.0.0.1:6379
snapshot_path: /tmp/s.json
`)

	t.Setenv("MATCHENGINE_REDIS_ADDR", "10.0.0.5:6380")

	var cfg MatchEngineConfig
	require.NoError(t, Load(path, "MATCHENGINE", &cfg))
	assert.Equal(t, "10.0.0.5:6380", cfg.Redis.Addr)
}

func TestCheckRejectsMissingLoggingLevel(t *testing.T) {
	cfg := StoreConfig{Redis: RedisConfig{Addr: "x:6379"}}
	assert.Error(t, cfg.Check())
}

func TestCheckRejectsMissingRedisAddr(t *testing.T) {
	cfg := DepthConfig{Logging: LoggingConfig{Level: "info"}}
	assert.Error(t, cfg.Check())
}
