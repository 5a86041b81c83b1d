package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
)

// Config holds the cpucaps service and CLI configuration.
type Config struct {
	Listen           string        `mapstructure:"listen"`
	EnableSwagger    bool          `mapstructure:"enable_swagger"`
	DatabasePath     string        `mapstructure:"database"`
	RetentionDays    int           `mapstructure:"retention_days"`
	PurgeInterval    time.Duration `mapstructure:"purge_interval"`
	ApiSecret        string        `mapstructure:"api_secret"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	RequiredVersion  string        `mapstructure:"required_version"`

	required cpucaps.Version
}

// Required returns the parsed required_version.
func (c *Config) Required() cpucaps.Version {
	return c.required
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"listen":           "listen",
	"db":               "database",
	"api-secret":       "api_secret",
	"required-version": "required_version",
	"swagger":          "enable_swagger",
	"interval":         "snapshot_interval",
	"retention-days":   "retention_days",
}

// Load reads configuration from file, environment and any flags the caller
// defines. Flags that were set on the command line take precedence.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("cpucaps")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/cpucaps")
	}

	v.SetDefault("listen", ":9560")
	v.SetDefault("enable_swagger", true)
	v.SetDefault("database", "cpucaps.db")
	v.SetDefault("retention_days", 0)
	v.SetDefault("purge_interval", "24h")
	v.SetDefault("api_secret", "")
	v.SetDefault("snapshot_interval", "0s")
	v.SetDefault("required_version", cpucaps.RequiredVersion().String())

	v.SetEnvPrefix("CPUCAPS")
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	required, err := cpucaps.ParseVersion(cfg.RequiredVersion)
	if err != nil {
		return nil, fmt.Errorf("required_version: %w", err)
	}
	cfg.required = required

	if cfg.RetentionDays < 0 {
		return nil, fmt.Errorf("retention_days must not be negative, got %d", cfg.RetentionDays)
	}
	if cfg.RetentionDays > 0 && cfg.PurgeInterval <= 0 {
		return nil, fmt.Errorf("purge_interval must be positive when retention_days is set, got %s", cfg.PurgeInterval)
	}
	if cfg.SnapshotInterval < 0 {
		return nil, fmt.Errorf("snapshot_interval must not be negative, got %s", cfg.SnapshotInterval)
	}

	return &cfg, nil
}
