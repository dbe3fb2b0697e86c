package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the Argus service.
type Config struct {
	Logging struct {
		Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Format string `mapstructure:"format" validate:"oneof=json console"`
	} `mapstructure:"logging"`

	SQLite struct {
		Path string `mapstructure:"path" validate:"required"`
	} `mapstructure:"sqlite"`

	ClickHouse struct {
		Addr        string `mapstructure:"addr" validate:"required,hostname_port"`
		Database    string `mapstructure:"database" validate:"required"`
		Username    string `mapstructure:"username"`
		Password    string `mapstructure:"password"`
		TLS         bool   `mapstructure:"tls"`
		MaxPoolSize int    `mapstructure:"max_pool_size" validate:"min=1,max=100"`
	} `mapstructure:"clickhouse"`

	Redis struct {
		Enabled  bool          `mapstructure:"enabled"`
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db" validate:"min=0,max=15"`
		PoolSize int           `mapstructure:"pool_size" validate:"min=1,max=100"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`

	Embedding struct {
		BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
		APIKey            string        `mapstructure:"api_key"`
		Timeout           time.Duration `mapstructure:"timeout"`
		MaxRetries        int           `mapstructure:"max_retries" validate:"min=0,max=10"`
		RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	} `mapstructure:"embedding"`

	Assess struct {
		// TopK caps gated candidate retrieval per assessment.
		TopK int `mapstructure:"top_k" validate:"min=1,max=500"`
		// MaxMatches caps the reported top_matches list.
		MaxMatches int `mapstructure:"max_matches" validate:"min=1,max=50"`
	} `mapstructure:"assess"`

	Match struct {
		// Limit caps the ungated nearest-neighbor candidate pull.
		Limit int `mapstructure:"limit" validate:"min=1,max=200"`
	} `mapstructure:"match"`

	Reindex struct {
		BatchSize int `mapstructure:"batch_size" validate:"min=1,max=10000"`
	} `mapstructure:"reindex"`
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("sqlite.path", "./data/argus.db")

	viper.SetDefault("clickhouse.addr", "localhost:9000")
	viper.SetDefault("clickhouse.database", "argus")
	viper.SetDefault("clickhouse.username", "default")
	viper.SetDefault("clickhouse.password", "")
	viper.SetDefault("clickhouse.tls", false)
	viper.SetDefault("clickhouse.max_pool_size", 10)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.ttl", 24*time.Hour)

	viper.SetDefault("embedding.base_url", "http://localhost:8100")
	viper.SetDefault("embedding.api_key", "")
	viper.SetDefault("embedding.timeout", 30*time.Second)
	viper.SetDefault("embedding.max_retries", 3)
	viper.SetDefault("embedding.requests_per_second", 10.0)

	viper.SetDefault("assess.top_k", 50)
	viper.SetDefault("assess.max_matches", 10)
	viper.SetDefault("match.limit", 20)
	viper.SetDefault("reindex.batch_size", 200)
}

// loadFromEnv sets up environment variable loading with explicit bindings
// for the settings operators most commonly override.
func loadFromEnv() {
	viper.SetEnvPrefix("ARGUS")
	viper.AutomaticEnv()

	_ = viper.BindEnv("sqlite.path", "ARGUS_SQLITE_PATH")
	_ = viper.BindEnv("clickhouse.addr", "ARGUS_CLICKHOUSE_ADDR")
	_ = viper.BindEnv("clickhouse.password", "ARGUS_CLICKHOUSE_PASSWORD")
	_ = viper.BindEnv("redis.addr", "ARGUS_REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "ARGUS_REDIS_PASSWORD")
	_ = viper.BindEnv("embedding.base_url", "ARGUS_EMBEDDING_URL")
	_ = viper.BindEnv("embedding.api_key", "ARGUS_EMBEDDING_API_KEY")
	_ = viper.BindEnv("logging.level", "ARGUS_LOG_LEVEL")
}

// LoadConfig loads configuration from file and environment variables. The
// config file is optional; defaults plus environment cover every setting.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, defaults and env vars apply.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// Validate checks the structural constraints on every setting.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
