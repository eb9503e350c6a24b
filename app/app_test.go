package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xyths/ticket-market/metadata"
)

func TestLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
  "chain": {"rpc": "http://127.0.0.1:8545", "nft": "0x1111111111111111111111111111111111111111", "marketplace": "0x2222222222222222222222222222222222222222", "revision": "legacy"},
  "http": {"listen": ":5000", "mode": "dev"},
  "storage": {"backend": "redis", "metadata": {"publicUrl": "http://localhost:5000", "timeZone": "Asia/Shanghai"}},
  "redis": {"addr": "localhost:6379", "ttl": "24h"},
  "monitor": {"interval": "30s", "state": "memory", "discord": {"channels": ["123"]}}
}`), 0o600))

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Chain.Revision)
	assert.Equal(t, ":5000", cfg.Http.Listen)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "Asia/Shanghai", cfg.Storage.Metadata.TimeZone)
	assert.Equal(t, "24h", cfg.Redis.TTL)
	assert.Equal(t, "30s", cfg.Monitor.Interval)
	assert.Equal(t, []string{"123"}, cfg.Monitor.Discord.Channels)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestInitStore(t *testing.T) {
	a := New(Config{})
	a.Sugar = zap.NewNop().Sugar()
	require.NoError(t, a.initStore(context.Background()))
	assert.IsType(t, &metadata.MemoryStore{}, a.Store)

	a = New(Config{Storage: StorageConf{Backend: "s3"}})
	a.Sugar = zap.NewNop().Sugar()
	assert.EqualError(t, a.initStore(context.Background()), `unknown storage backend "s3"`)

	a = New(Config{Storage: StorageConf{Backend: BackendRedis}, Redis: metadata.RedisConfig{TTL: "soon"}})
	a.Sugar = zap.NewNop().Sugar()
	assert.Error(t, a.initStore(context.Background()))
}

func TestHandlerWiring(t *testing.T) {
	a := New(Config{})
	a.Sugar = zap.NewNop().Sugar()
	a.Store = metadata.NewMemoryStore()
	h := a.Handler()
	assert.Same(t, a.Store, h.Metadata)
	assert.Same(t, a.Sugar, h.Sugar)
	assert.Nil(t, h.Now)
}
