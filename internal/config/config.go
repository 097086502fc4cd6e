// Package config loads the session host's settings from defaults, an optional
// config file, AR_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. AR_MAX_HISTORY.
const EnvPrefix = "AR"

// Config keys. Flags use the same names with dashes.
const (
	KeyMaxHistory      = "max_history"
	KeyMaxDomains      = "max_domains"
	KeyTTLMinutes      = "ttl_minutes"
	KeyCleanupInterval = "cleanup_interval"
	KeyListenAddr      = "listen_addr"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
)

// Config holds the host settings.
type Config struct {
	// MaxHistory bounds the entries kept per session.
	MaxHistory int `mapstructure:"max_history"`
	// MaxDomains bounds the number of sessions.
	MaxDomains      int           `mapstructure:"max_domains"`
	TTLMinutes      int           `mapstructure:"ttl_minutes"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
}

// TTL returns the entry time-to-live.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// New returns a viper instance with defaults and environment lookup configured.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyMaxHistory, 100)
	v.SetDefault(KeyMaxDomains, 1000)
	v.SetDefault(KeyTTLMinutes, 60)
	v.SetDefault(KeyCleanupInterval, 5*time.Minute)
	v.SetDefault(KeyListenAddr, ":8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
}

// BindFlags binds every flag in fs whose dashed name matches a config key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range []string{
		KeyMaxHistory, KeyMaxDomains, KeyTTLMinutes, KeyCleanupInterval,
		KeyListenAddr, KeyLogLevel, KeyLogFormat,
	} {
		f := fs.Lookup(strings.ReplaceAll(key, "_", "-"))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	}
	return nil
}

// Load reads configFile when non-empty, then decodes and validates the result.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file at %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []error
	if cfg.MaxHistory <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyMaxHistory, cfg.MaxHistory))
	}
	if cfg.MaxDomains <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyMaxDomains, cfg.MaxDomains))
	}
	if cfg.TTLMinutes <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyTTLMinutes, cfg.TTLMinutes))
	}
	if cfg.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyCleanupInterval, cfg.CleanupInterval))
	}
	if cfg.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyListenAddr))
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("%s must be json or console, got %q", KeyLogFormat, cfg.LogFormat))
	}
	return errors.Join(errs...)
}
