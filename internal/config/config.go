package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goodtune/breakwatch/internal/breaks"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Registry RegistryConfig `mapstructure:"registry"`
	Breaks   BreaksConfig   `mapstructure:"breaks"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Backup   BackupConfig   `mapstructure:"backup"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	APIPort     int    `mapstructure:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	BindAddress string `mapstructure:"bind_address"`
}

// StorageConfig defines the audit/employee storage backend
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	PoolSize    int    `mapstructure:"pool_size"`
	DialTimeout string `mapstructure:"dial_timeout"`
}

// RegistryConfig defines the active-session snapshot location
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// BreaksConfig defines the per-type limit policy overrides
type BreaksConfig struct {
	Takeout  LimitConfig `mapstructure:"takeout"`
	Smoking  LimitConfig `mapstructure:"smoking"`
	Restroom LimitConfig `mapstructure:"restroom"`
}

// LimitConfig is one break type's policy
type LimitConfig struct {
	MaxPerDay   int    `mapstructure:"max_per_day"`
	MaxDuration string `mapstructure:"max_duration"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BackupConfig defines the startup database backup
type BackupConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	Keep    int    `mapstructure:"keep"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("BREAKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Policies converts the break limit configuration into the engine's
// read-only policy table.
func (c *Config) Policies() (breaks.PolicyTable, error) {
	table := breaks.PolicyTable{}
	for bt, limit := range map[breaks.BreakType]LimitConfig{
		breaks.BreakTakeout:  c.Breaks.Takeout,
		breaks.BreakSmoking:  c.Breaks.Smoking,
		breaks.BreakRestroom: c.Breaks.Restroom,
	} {
		maxDuration, err := time.ParseDuration(limit.MaxDuration)
		if err != nil {
			return nil, fmt.Errorf("invalid max_duration for %s: %w", bt, err)
		}
		table[bt] = breaks.Policy{
			MaxPerDay:   limit.MaxPerDay,
			MaxDuration: maxDuration,
		}
	}
	return table, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.api_port", 5000)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "0.0.0.0")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/breakwatch/breakwatch.bolt")
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.dial_timeout", "5s")

	// Registry defaults
	v.SetDefault("registry.path", "/var/lib/breakwatch/active_sessions.json")

	// Break policy defaults
	v.SetDefault("breaks.takeout.max_per_day", 2)
	v.SetDefault("breaks.takeout.max_duration", "1m")
	v.SetDefault("breaks.smoking.max_per_day", 8)
	v.SetDefault("breaks.smoking.max_duration", "5m")
	v.SetDefault("breaks.restroom.max_per_day", 2)
	v.SetDefault("breaks.restroom.max_duration", "15m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Backup defaults
	v.SetDefault("backup.enabled", true)
	v.SetDefault("backup.dir", "/var/lib/breakwatch/backups")
	v.SetDefault("backup.keep", 14)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %q", cfg.Storage.Type)
	}

	if cfg.Registry.Path == "" {
		return fmt.Errorf("registry path is required")
	}

	for name, limit := range map[string]LimitConfig{
		"takeout":  cfg.Breaks.Takeout,
		"smoking":  cfg.Breaks.Smoking,
		"restroom": cfg.Breaks.Restroom,
	} {
		if limit.MaxPerDay < 0 {
			return fmt.Errorf("breaks.%s.max_per_day must be >= 0", name)
		}
		if _, err := time.ParseDuration(limit.MaxDuration); err != nil {
			return fmt.Errorf("breaks.%s.max_duration is invalid: %w", name, err)
		}
	}

	if cfg.Backup.Enabled && cfg.Backup.Dir == "" {
		return fmt.Errorf("backup dir is required when backups are enabled")
	}

	return nil
}
