package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml file. Environment variables (prefix TASKDECK_) take
// precedence over values from the config file, which in turn override
// the built-in defaults.
// Returns a populated Config struct or an error if loading or
// validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file present; defaults and environment apply.
	}

	v.SetEnvPrefix("TASKDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers a default for every known key. Keys without a
// sensible default get an empty value so AutomaticEnv can still bind
// them; validation catches the ones that remain unset.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.rate_limit_per_second", 50.0)
	v.SetDefault("server.rate_limit_burst", 100)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.refresh_token_lifetime_minutes", 1440)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("queue.backend", "postgres")
	v.SetDefault("queue.worker_count", 5)
	v.SetDefault("queue.rate_per_second", 100.0)
	v.SetDefault("queue.job_timeout", "60s")
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.retry_base_delay", "2s")
	v.SetDefault("queue.retry_max_delay", "5m")
	v.SetDefault("queue.stale_claim_age", "10m")
	v.SetDefault("queue.stale_check_interval", "1m")
	v.SetDefault("queue.sweep_interval", "10m")
	v.SetDefault("queue.completed_ttl", "1h")
	v.SetDefault("queue.completed_cap", 1000)
	v.SetDefault("queue.failed_ttl", "24h")
	v.SetDefault("queue.overdue_scan_interval", "5m")
	v.SetDefault("queue.overdue_batch_size", 100)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.max_entries", 10000)
}

// validateConfig checks the loaded configuration against the struct
// validation tags.
func validateConfig(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
