// Package config loads fetchkit engine settings from a file, a .env file
// and FETCHKIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/ambiyansyah-risyal/fetchkit"
	"github.com/ambiyansyah-risyal/fetchkit/store"
)

// EnvPrefix prefixes every environment override, e.g. FETCHKIT_RETRY_RETRIES.
const EnvPrefix = "FETCHKIT"

// Config holds all engine settings.
type Config struct {
	Concurrency    int                  `mapstructure:"concurrency" validate:"min=1,max=10000"`
	Timeout        time.Duration        `mapstructure:"timeout" validate:"gt=0"`
	Deduplicate    bool                 `mapstructure:"deduplicate"`
	Debug          bool                 `mapstructure:"debug"`
	Metrics        bool                 `mapstructure:"metrics"`
	Retry          RetryConfig          `mapstructure:"retry"`
	Cache          CacheConfig          `mapstructure:"cache"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Offline        OfflineConfig        `mapstructure:"offline"`
}

type RetryConfig struct {
	Retries        int           `mapstructure:"retries" validate:"min=0,max=100"`
	Backoff        time.Duration `mapstructure:"backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gte=0"`
	Jitter         float64       `mapstructure:"jitter" validate:"gte=0,lte=1"`
	OnServerErrors bool          `mapstructure:"on_server_errors"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" validate:"required_if=Enabled true,gte=0"`
}

// RateLimitConfig is disabled while Limit is zero.
type RateLimitConfig struct {
	Limit    int           `mapstructure:"limit" validate:"gte=0"`
	Interval time.Duration `mapstructure:"interval" validate:"required_with=Limit,gte=0"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"gte=0"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout" validate:"gte=0"`
	SuccessThreshold int           `mapstructure:"success_threshold" validate:"gte=0"`
}

// OfflineConfig selects the offline store: Redis when RedisURL is set,
// process memory otherwise.
type OfflineConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis_url" validate:"omitempty,url"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("concurrency", fetchkit.DefaultConcurrency)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("deduplicate", true)
	v.SetDefault("debug", false)
	v.SetDefault("metrics", false)

	v.SetDefault("retry.retries", 3)
	v.SetDefault("retry.backoff", 300*time.Millisecond)
	v.SetDefault("retry.max_backoff", 0)
	v.SetDefault("retry.jitter", 0.0)
	v.SetDefault("retry.on_server_errors", false)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", fetchkit.DefaultCacheTTL)

	v.SetDefault("rate_limit.limit", 0)
	v.SetDefault("rate_limit.interval", time.Second)

	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.failure_threshold", 5)
	v.SetDefault("circuit_breaker.recovery_timeout", 60*time.Second)
	v.SetDefault("circuit_breaker.success_threshold", 2)

	v.SetDefault("offline.enabled", false)
	v.SetDefault("offline.redis_url", "")
	v.SetDefault("offline.prefix", "fetchkit:offline")
	v.SetDefault("offline.ttl", 0)
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads path (TOML, YAML or JSON by extension), a .env file in the
// working directory if there is one, and FETCHKIT_* variables, in
// increasing order of precedence. An empty path looks for fetchkit.* in
// "." and "./config" and tolerates its absence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("fetchkit")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
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

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Options converts the configuration to engine options. The returned close
// func releases the Redis client when one was created.
func (c *Config) Options() ([]fetchkit.Option, func() error, error) {
	closer := func() error { return nil }

	policy := fetchkit.DefaultRetryPolicy()
	policy.Retries = c.Retry.Retries
	policy.Backoff = c.Retry.Backoff
	policy.MaxBackoff = c.Retry.MaxBackoff
	policy.Jitter = c.Retry.Jitter
	if c.Retry.OnServerErrors {
		policy.RetryOnStatus = fetchkit.RetryOnServerErrors
	}

	opts := []fetchkit.Option{
		fetchkit.WithConcurrency(c.Concurrency),
		fetchkit.WithRetryPolicy(policy),
		fetchkit.WithTimeout(c.Timeout),
	}

	if c.Cache.Enabled {
		opts = append(opts, fetchkit.WithCache(c.Cache.TTL))
	} else {
		opts = append(opts, fetchkit.WithoutCache())
	}

	if !c.Deduplicate {
		opts = append(opts, fetchkit.WithoutDeduplication())
	}

	if c.RateLimit.Limit > 0 {
		opts = append(opts, fetchkit.WithRateLimiter(c.RateLimit.Limit, c.RateLimit.Interval))
	}

	if c.CircuitBreaker.Enabled {
		opts = append(opts, fetchkit.WithCircuitBreaker(fetchkit.CircuitBreakerConfig{
			FailureThreshold: c.CircuitBreaker.FailureThreshold,
			RecoveryTimeout:  c.CircuitBreaker.RecoveryTimeout,
			SuccessThreshold: c.CircuitBreaker.SuccessThreshold,
		}))
	}

	if c.Offline.Enabled {
		if c.Offline.RedisURL != "" {
			redisOpts, err := redis.ParseURL(c.Offline.RedisURL)
			if err != nil {
				return nil, closer, fmt.Errorf("invalid offline.redis_url: %w", err)
			}
			client := redis.NewClient(redisOpts)
			closer = client.Close
			opts = append(opts, fetchkit.WithOfflineStore(store.NewRedisStore(client, c.Offline.Prefix, c.Offline.TTL)))
		} else {
			opts = append(opts, fetchkit.WithOfflineStore(store.NewMemoryStore()))
		}
	}

	if c.Debug {
		opts = append(opts, fetchkit.WithSimpleLogger())
	}
	if c.Metrics {
		opts = append(opts, fetchkit.WithMetrics())
	}

	return opts, closer, nil
}
