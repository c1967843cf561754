package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"    validate:"required"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// Per-client request rate limiting applied by the API middleware.
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" validate:"required,gt=0"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"      validate:"required,gt=0"`

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight requests and workers.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"            validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"omitempty,gte=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"omitempty,gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret"                     validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes"         validate:"required,gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
	BCryptCost                  int    `mapstructure:"bcrypt_cost"                    validate:"omitempty,gte=4,lte=31"`
}

// QueueConfig contains all background job processing settings.
type QueueConfig struct {
	// Backend selects the job store implementation.
	Backend string `mapstructure:"backend" validate:"required,oneof=postgres memory"`

	// WorkerCount is the number of concurrent job executors.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0,lte=128"`

	// RatePerSecond caps dequeue attempts across all executors.
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"required,gt=0"`

	// JobTimeout bounds a single handler execution.
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"required,gt=0"`

	// Retry behavior for transient failures.
	MaxAttempts    int           `mapstructure:"max_attempts"     validate:"required,gt=0"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"required,gt=0"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"  validate:"required,gt=0"`

	// Stale claim recovery: Active jobs older than StaleClaimAge are
	// returned to Pending every StaleCheckInterval.
	StaleClaimAge      time.Duration `mapstructure:"stale_claim_age"      validate:"required,gt=0"`
	StaleCheckInterval time.Duration `mapstructure:"stale_check_interval" validate:"required,gt=0"`

	// Retention sweep of finished jobs.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required,gt=0"`
	CompletedTTL  time.Duration `mapstructure:"completed_ttl"  validate:"required,gt=0"`
	CompletedCap  int           `mapstructure:"completed_cap"  validate:"required,gt=0"`
	FailedTTL     time.Duration `mapstructure:"failed_ttl"     validate:"required,gt=0"`

	// Overdue task scanning.
	OverdueScanInterval time.Duration `mapstructure:"overdue_scan_interval" validate:"required,gt=0"`
	OverdueBatchSize    int           `mapstructure:"overdue_batch_size"    validate:"required,gt=0"`
}

// CacheConfig contains the task read cache settings.
type CacheConfig struct {
	// Backend selects the cache implementation. "none" disables caching.
	Backend    string        `mapstructure:"backend"     validate:"required,oneof=memory redis none"`
	RedisURL   string        `mapstructure:"redis_url"   validate:"omitempty,uri"`
	TTL        time.Duration `mapstructure:"ttl"         validate:"required,gt=0"`
	MaxEntries int           `mapstructure:"max_entries" validate:"required,gt=0"`
}
