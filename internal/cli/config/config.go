// Package config loads bizobj settings from bizobj.yaml and BIZOBJ_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. BIZOBJ_RULES_ASYNC_WORKERS
const EnvPrefix = "BIZOBJ"

// Config represents the bizobj configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Rules     RulesConfig     `mapstructure:"rules"`
	ViewModel ViewModelConfig `mapstructure:"viewmodel"`
	Policy    PolicyConfig    `mapstructure:"policy"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RulesConfig configures the async rule workers
type RulesConfig struct {
	AsyncWorkers int           `mapstructure:"async_workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ViewModelConfig configures view model saves
type ViewModelConfig struct {
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// PolicyConfig configures authorization
type PolicyConfig struct {
	Roles map[string][]string `mapstructure:"roles"`
	Redis RedisConfig         `mapstructure:"redis"`
	JWT   JWTConfig           `mapstructure:"jwt"`
}

// RedisConfig points at the Redis role store
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// JWTConfig configures principal tokens
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("rules.async_workers", 4)
	v.SetDefault("rules.queue_size", 100)
	v.SetDefault("rules.poll_interval", 10*time.Millisecond)
	v.SetDefault("viewmodel.busy_timeout", 30*time.Second)
	v.SetDefault("policy.redis.enabled", false)
	v.SetDefault("policy.redis.addr", "localhost:6379")
	v.SetDefault("policy.redis.password", "")
	v.SetDefault("policy.redis.db", 0)
	v.SetDefault("policy.redis.key_prefix", "bizobj:role:")
	v.SetDefault("policy.jwt.secret", "")
	v.SetDefault("policy.jwt.ttl", time.Hour)
}

// Load reads the configuration. An empty path searches for bizobj.yaml in
// the working directory; a missing file there means defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bizobj")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got: %s", c.Log.Format)
	}
	if c.Rules.AsyncWorkers < 0 {
		return fmt.Errorf("rules.async_workers must not be negative, got: %d", c.Rules.AsyncWorkers)
	}
	if c.Rules.AsyncWorkers > 0 && c.Rules.QueueSize <= 0 {
		return fmt.Errorf("rules.queue_size must be positive, got: %d", c.Rules.QueueSize)
	}
	if c.Rules.PollInterval <= 0 {
		return fmt.Errorf("rules.poll_interval must be positive, got: %s", c.Rules.PollInterval)
	}
	if c.ViewModel.BusyTimeout <= 0 {
		return fmt.Errorf("viewmodel.busy_timeout must be positive, got: %s", c.ViewModel.BusyTimeout)
	}
	if c.Policy.JWT.TTL <= 0 {
		return fmt.Errorf("policy.jwt.ttl must be positive, got: %s", c.Policy.JWT.TTL)
	}
	return nil
}
