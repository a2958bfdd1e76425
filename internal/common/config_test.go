package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forge.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data/forge", cfg.Storage.Badger.Path)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "processing:progress", cfg.Redis.Channel)
	assert.Empty(t, cfg.Webhook.Secret)
	assert.False(t, cfg.Monitor.Enabled)
}

func TestLoadFromFiles_OverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
environment = "production"

[server]
port = 9090

[redis]
enabled = true
addr = "redis:6379"

[webhook]
secret = "hunter2"

[stages]
colmap_bundle = "reconstruction"
`)

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Unset keys keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "hunter2", cfg.Webhook.Secret)
	assert.Equal(t, "reconstruction", cfg.Stages["colmap_bundle"])
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	first := writeConfigFile(t, "[server]\nport = 9090\nhost = \"0.0.0.0\"\n")
	second := writeConfigFile(t, "[server]\nport = 7070\n")

	cfg, err := LoadFromFiles(first, second)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFromFiles_BadToml(t *testing.T) {
	path := writeConfigFile(t, "[server\nport = 9090")

	_, err := LoadFromFiles(path)
	assert.Error(t, err)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("FORGE_SERVER_PORT", "6060")
	t.Setenv("FORGE_WEBHOOK_SECRET", "from-env")
	t.Setenv("FORGE_REDIS_ADDR", "redis-prod:6379")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Webhook.Secret)
	assert.Equal(t, "redis-prod:6379", cfg.Redis.Addr)
	// Pointing at a Redis address implies enabling the broadcaster.
	assert.True(t, cfg.Redis.Enabled)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()

	ApplyFlagOverrides(cfg, 5050, "0.0.0.0")
	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Zero values leave the config untouched.
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}
