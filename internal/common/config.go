package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Redis       RedisConfig       `toml:"redis"`
	Logging     LoggingConfig     `toml:"logging"`
	Webhook     WebhookConfig     `toml:"webhook"`
	Admin       AdminConfig       `toml:"admin"`
	Monitor     MonitorConfig     `toml:"monitor"`
	Stages      map[string]string `toml:"stages"` // External stage name -> canonical stage overrides
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// RedisConfig controls the best-effort progress broadcast medium. When
// disabled (or unreachable) the core still stores state durably; viewers just
// lose the live push.
type RedisConfig struct {
	Enabled     bool   `toml:"enabled"`
	Addr        string `toml:"addr"`
	Password    string `toml:"password"`
	DB          int    `toml:"db"`
	Channel     string `toml:"channel"`      // Shared topic for live subscribers
	SnapshotTTL string `toml:"snapshot_ttl"` // Expiry for keyed snapshots, e.g. "1h"
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

// WebhookConfig guards the worker-facing endpoints. An empty secret disables
// the check (the worker fleet runs inside the trusted network in dev).
type WebhookConfig struct {
	Secret string `toml:"secret"`
}

// AdminConfig guards the operator endpoints.
type AdminConfig struct {
	Token string `toml:"token"`
}

// MonitorConfig controls the scheduled stale-job observer. It only reports;
// force-cancelling wedged jobs stays a manual admin action.
type MonitorConfig struct {
	Enabled    bool   `toml:"enabled"`
	Schedule   string `toml:"schedule"`    // Cron expression
	StaleAfter string `toml:"stale_after"` // Heartbeat age before a job counts as stale, e.g. "30m"
}

// NewDefaultConfig returns the built-in defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/forge",
				ResetOnStartup: false,
			},
		},
		Redis: RedisConfig{
			Enabled:     false,
			Addr:        "localhost:6379",
			DB:          0,
			Channel:     "processing:progress",
			SnapshotTTL: "1h",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Monitor: MonitorConfig{
			Enabled:    false,
			Schedule:   "*/5 * * * *",
			StaleAfter: "30m",
		},
		Stages: map[string]string{},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 ->
// file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FORGE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("FORGE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FORGE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("FORGE_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if addr := os.Getenv("FORGE_REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
		config.Redis.Enabled = true
	}
	if password := os.Getenv("FORGE_REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}

	if secret := os.Getenv("FORGE_WEBHOOK_SECRET"); secret != "" {
		config.Webhook.Secret = secret
	}
	if token := os.Getenv("FORGE_ADMIN_TOKEN"); token != "" {
		config.Admin.Token = token
	}

	if level := os.Getenv("FORGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FORGE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
