package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docspasta/internal/config"
)

func resetViper(t *testing.T) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	require.NoError(t, config.Init(""))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 5*time.Second, cfg.Redis.OpTimeout)
	assert.Equal(t, 500, cfg.Crawl.MaxPagesCap)
	assert.Equal(t, 10, cfg.Crawl.MaxDepthCap)
	assert.Equal(t, 20, cfg.Crawl.MaxWorkersCap)
	assert.Equal(t, 30*time.Second, cfg.Crawl.InvocationLimit)
	assert.Equal(t, "json", cfg.Logger.Encoding)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	resetViper(t)

	t.Setenv("DOCSPASTA_REDIS_ADDRESS", "redis.internal:6380")
	t.Setenv("DOCSPASTA_SERVER_ADDRESS", ":9090")
	t.Setenv("DOCSPASTA_LOG_LEVEL", "debug")

	require.NoError(t, config.Init(""))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Address)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "debug", string(cfg.Logger.Level))
}

func TestLoadConfigFile(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  address: \":7070\"\ncrawl:\n  max_pages_cap: 100\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	require.NoError(t, config.Init(path))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 100, cfg.Crawl.MaxPagesCap)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	resetViper(t)

	err := config.Init(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadSections(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"empty server address", "server.address", ""},
		{"empty redis address", "redis.address", ""},
		{"zero pages cap", "crawl.max_pages_cap", 0},
		{"zero invocation limit", "crawl.invocation_limit", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			require.NoError(t, config.Init(""))
			viper.Set(tt.key, tt.value)

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestCrawlCaps(t *testing.T) {
	crawl := config.CrawlConfig{MaxPagesCap: 100, MaxDepthCap: 5, MaxWorkersCap: 8, InvocationLimit: time.Second}

	caps := crawl.Caps()
	assert.Equal(t, 100, caps.MaxPages)
	assert.Equal(t, 5, caps.MaxDepth)
	assert.Equal(t, 8, caps.MaxWorkers)
}
