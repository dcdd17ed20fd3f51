// Package config loads the aggregator's configuration from the
// environment, with an optional YAML file overlay, matching the
// pattern used across the iaros services.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the complete process configuration.
type Config struct {
	Environment string        `yaml:"environment"`
	Server      ServerConfig  `yaml:"server"`
	Vendors     VendorsConfig `yaml:"vendors"`
	Aggregator  AggregatorConfig `yaml:"aggregator"`
	Breaker     BreakerConfig `yaml:"breaker"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Redis       RedisConfig   `yaml:"redis"`
	Monitoring  MonitoringConfig `yaml:"monitoring"`
	Logging     LoggingConfig `yaml:"logging"`
}

// ServerConfig is the HTTP listener configuration.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// VendorConfig describes one upstream vendor backend.
type VendorConfig struct {
	Name string `yaml:"name"`
	Mode string `yaml:"mode"` // "stub", "http", or "chaos"
	URL  string `yaml:"url"`
}

// VendorsConfig is the set of configured vendor backends.
type VendorsConfig struct {
	Vendors []VendorConfig `yaml:"vendors"`
}

// AggregatorConfig holds the core pipeline's tunables.
type AggregatorConfig struct {
	FreshnessWindow   time.Duration `yaml:"freshness_window"`
	VendorTimeout     time.Duration `yaml:"vendor_timeout"`
	VendorRetries     int           `yaml:"vendor_retries"`
	ProductCacheTTL   time.Duration `yaml:"product_cache_ttl"`
	SelectorSpreadPct float64       `yaml:"selector_spread_pct"`
}

// BreakerConfig holds the circuit breaker's tunables.
type BreakerConfig struct {
	Threshold int           `yaml:"threshold"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// RateLimitConfig holds the rate limiter's tunables.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
}

// RedisConfig is the cache connection configuration.
type RedisConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	DB        int           `yaml:"db"`
	Password  string        `yaml:"password"`
	PoolSize  int           `yaml:"pool_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// MonitoringConfig controls metrics exposure.
type MonitoringConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MetricsPath string `yaml:"metrics_path"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load builds a Config from environment variables, optionally
// overlaid with a YAML file named by CONFIG_FILE.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		},
		Vendors: VendorsConfig{
			Vendors: defaultVendors(),
		},
		Aggregator: AggregatorConfig{
			FreshnessWindow:   getEnvDuration("FRESHNESS_WINDOW_SECONDS", 600*time.Second),
			VendorTimeout:     getEnvDuration("VENDOR_TIMEOUT_SECONDS", 2*time.Second),
			VendorRetries:     getEnvInt("VENDOR_RETRIES", 2),
			ProductCacheTTL:   getEnvDuration("PRODUCT_CACHE_TTL_SECONDS", 120*time.Second),
			SelectorSpreadPct: getEnvFloat("SELECTOR_SPREAD_PCT", 10.0),
		},
		Breaker: BreakerConfig{
			Threshold: getEnvInt("BREAKER_THRESHOLD", 3),
			Cooldown:  getEnvDuration("BREAKER_COOLDOWN_SECONDS", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			DB:       getEnvInt("REDIS_DB", 0),
			Password: getEnv("REDIS_PASSWORD", ""),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
			CacheTTL: getEnvDuration("CACHE_TTL", 60*time.Second),
		},
		Monitoring: MonitoringConfig{
			Enabled:     getEnvBool("METRICS_ENABLED", true),
			MetricsPath: getEnv("METRICS_PATH", "/metrics"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if file := getEnv("CONFIG_FILE", ""); file != "" {
		if err := loadFile(cfg, file); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func defaultVendors() []VendorConfig {
	return []VendorConfig{
		{Name: "VendorA", Mode: getEnv("VENDOR_A_MODE", "stub"), URL: getEnv("VENDOR_A_URL", "")},
		{Name: "VendorB", Mode: getEnv("VENDOR_B_MODE", "stub"), URL: getEnv("VENDOR_B_URL", "")},
		{Name: "VendorC", Mode: getEnv("VENDOR_C_MODE", "stub"), URL: getEnv("VENDOR_C_URL", "")},
	}
}

func loadFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
