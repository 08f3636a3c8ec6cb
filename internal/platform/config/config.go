package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`
	HTTPPort    string `mapstructure:"http_port" validate:"required"`

	StorageDriver string `mapstructure:"storage_driver" validate:"required|in:postgres,sqlite,memory"`
	DatabaseDSN   string `mapstructure:"database_dsn"`
	AutoMigrate   bool   `mapstructure:"auto_migrate"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"min:0"`
	EventBus      string `mapstructure:"event_bus" validate:"required|in:memory,redis"`

	ResultsCache       string        `mapstructure:"results_cache" validate:"required|in:none,local,redis"`
	ResultsCacheSizeMB int           `mapstructure:"results_cache_size_mb" validate:"min:1"`
	ResultsCacheTTL    time.Duration `mapstructure:"results_cache_ttl"`
	ResultsConcurrency int           `mapstructure:"results_concurrency" validate:"min:1"`
	WinnerPolicy       string        `mapstructure:"winner_policy" validate:"required|in:single,shared"`

	VoteRateLimit float64 `mapstructure:"vote_rate_limit"`
	VoteRateBurst int     `mapstructure:"vote_rate_burst" validate:"min:1"`

	// TrustProxyHeaders keys rate limits on X-Forwarded-For. Leave off unless
	// a proxy in front of the API overwrites that header.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`

	IdempotencyTTL     time.Duration `mapstructure:"idempotency_ttl"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size" validate:"min:1"`

	EnableMetrics         bool `mapstructure:"enable_metrics"`
	EnableSwagger         bool `mapstructure:"enable_swagger"`
	EnableLiveResults     bool `mapstructure:"enable_live_results"`
	EnableEmbeddedRelay   bool `mapstructure:"enable_embedded_relay"`
	EnableResultRefresher bool `mapstructure:"enable_result_refresher"`

	LogLevel  string `mapstructure:"log_level" validate:"required|in:debug,info,warn,error"`
	LogFormat string `mapstructure:"log_format" validate:"required|in:text,json"`
}

var defaults = map[string]any{
	"service_name":            "contestvote",
	"http_port":               "8080",
	"storage_driver":          "memory",
	"database_dsn":            "",
	"auto_migrate":            true,
	"redis_addr":              "localhost:6379",
	"redis_password":          "",
	"redis_db":                0,
	"event_bus":               "memory",
	"results_cache":           "local",
	"results_cache_size_mb":   16,
	"results_cache_ttl":       "30s",
	"results_concurrency":     4,
	"winner_policy":           "single",
	"vote_rate_limit":         5.0,
	"vote_rate_burst":         10,
	"trust_proxy_headers":     false,
	"idempotency_ttl":         "24h",
	"outbox_poll_interval":    "2s",
	"outbox_batch_size":       100,
	"enable_metrics":          true,
	"enable_swagger":          true,
	"enable_live_results":     true,
	"enable_embedded_relay":   true,
	"enable_result_refresher": true,
	"log_level":               "info",
	"log_format":              "text",
}

// Load reads defaults, an optional YAML file named by CONFIG_FILE, and
// environment variables (upper-cased keys, e.g. HTTP_PORT), in increasing
// precedence.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.EventBus = strings.ToLower(strings.TrimSpace(c.EventBus))
	c.ResultsCache = strings.ToLower(strings.TrimSpace(c.ResultsCache))
	c.WinnerPolicy = strings.ToLower(strings.TrimSpace(c.WinnerPolicy))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

func (c Config) Validate() error {
	v := validate.Struct(&c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.Error())
	}
	if c.StorageDriver != "memory" && strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("invalid config: database_dsn is required for storage driver %q", c.StorageDriver)
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("invalid config: outbox_poll_interval must be positive")
	}
	if c.ResultsCacheTTL <= 0 && c.ResultsCache != "none" {
		return fmt.Errorf("invalid config: results_cache_ttl must be positive")
	}
	if c.VoteRateLimit < 0 {
		return fmt.Errorf("invalid config: vote_rate_limit must not be negative")
	}
	return nil
}
