package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	Collector   CollectorConfig   `mapstructure:"collector"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	MetricsPort    int           `mapstructure:"metrics_port"`
	CacheSize      int           `mapstructure:"cache_size"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Name              string `mapstructure:"name"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConnections    int    `mapstructure:"max_connections"`
	ConnectionTimeout int    `mapstructure:"connection_timeout"`
}

// DSN renders the lib/pq keyword connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.ConnectionTimeout,
	)
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UpstreamConfig tunes the authority clients.
type UpstreamConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
	Concurrency      int           `mapstructure:"concurrency"`
	UserAgent        string        `mapstructure:"user_agent"`
	ArchiveCacheSize int           `mapstructure:"archive_cache_size"`
	ArchiveCacheTTL  time.Duration `mapstructure:"archive_cache_ttl"`
	// RateLimits holds requests per second by authority code.
	RateLimits map[string]float64 `mapstructure:"rate_limits"`
}

// RateLimit returns the ceiling for one authority, or zero for none.
func (u UpstreamConfig) RateLimit(code string) float64 {
	for k, v := range u.RateLimits {
		if strings.EqualFold(k, code) {
			return v
		}
	}
	return 0
}

type CollectorConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	Schedule      string            `mapstructure:"schedule"`
	Lookback      time.Duration     `mapstructure:"lookback"`
	BootstrapDays int               `mapstructure:"bootstrap_days"`
	Authorities   []CollectorTarget `mapstructure:"authorities"`
}

type CollectorTarget struct {
	Code  string   `mapstructure:"code"`
	Nodes []string `mapstructure:"nodes"`
}

// CredentialsConfig holds upstream API keys.
type CredentialsConfig struct {
	EIA    string `mapstructure:"eia"`
	ENTSOE string `mapstructure:"entsoe"`
	ISONE  string `mapstructure:"isone"`
}

// Map returns the credentials keyed the way adapters look them up.
func (c CredentialsConfig) Map() map[string]string {
	return map[string]string{
		"eia":    c.EIA,
		"entsoe": c.ENTSOE,
		"isone":  c.ISONE,
	}
}

// Load reads configuration from file, expanding environment variables
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Reject anything that is not a YAML mapping before expansion
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}

	expandedData := os.ExpandEnv(string(data))

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewBufferString(expandedData)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if _, err := logrus.ParseLevel(config.Logging.Level); err != nil {
		return nil, fmt.Errorf("invalid logging.level: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 50051)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.cache_size", 1000)
	v.SetDefault("server.cache_ttl", "1m")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.connection_timeout", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.call_timeout", "2m")
	v.SetDefault("upstream.retry_attempts", 3)
	v.SetDefault("upstream.retry_base_delay", "250ms")
	v.SetDefault("upstream.retry_max_delay", "4s")
	v.SetDefault("upstream.archive_cache_size", 256)
	v.SetDefault("upstream.archive_cache_ttl", "6h")

	v.SetDefault("collector.enabled", false)
	v.SetDefault("collector.schedule", "*/5 * * * *")
	v.SetDefault("collector.lookback", "1h")
	v.SetDefault("collector.bootstrap_days", 0)
}
