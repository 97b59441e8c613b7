// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// GoogleClientID is the federated sign-in client id baked in at build time:
//
//	go build -ldflags "-X socialfeed/internal/config.GoogleClientID=<id>"
//
// The GOOGLE_CLIENT_ID environment variable overrides it.
var GoogleClientID string

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Host                  string  `mapstructure:"HOST"`
	Port                  string  `mapstructure:"PORT"`
	Env                   string  `mapstructure:"APP_ENV"`
	LogLevel              string  `mapstructure:"LOG_LEVEL"`
	GraphQLEndpoint       string  `mapstructure:"GRAPHQL_ENDPOINT"`
	RequestTimeoutSeconds int     `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	GoogleClientID        string  `mapstructure:"GOOGLE_CLIENT_ID"`
	StorageDriver         string  `mapstructure:"STORAGE_DRIVER"`
	StoragePath           string  `mapstructure:"STORAGE_PATH"`
	DatabaseURL           string  `mapstructure:"DATABASE_URL"`
	RedisURL              string  `mapstructure:"REDIS_URL"`
	FeedPageSize          int     `mapstructure:"FEED_PAGE_SIZE"`
	FeedPollSeconds       int     `mapstructure:"FEED_POLL_INTERVAL_SECONDS"`
	AvatarMaxUploadMB     int     `mapstructure:"AVATAR_MAX_UPLOAD_MB"`
	FeatureFlags          string  `mapstructure:"FEATURE_FLAGS"`
	TracingEnabled        bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter       string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint          string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio    float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("HOST", "127.0.0.1")
	viper.SetDefault("PORT", "8420")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("GRAPHQL_ENDPOINT", "http://localhost:8000/graphql/")
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 15)
	viper.SetDefault("GOOGLE_CLIENT_ID", GoogleClientID)
	viper.SetDefault("STORAGE_DRIVER", StorageFile)
	viper.SetDefault("STORAGE_PATH", "socialfeed-storage.json")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("FEED_PAGE_SIZE", 20)
	viper.SetDefault("FEED_POLL_INTERVAL_SECONDS", 30)
	viper.SetDefault("AVATAR_MAX_UPLOAD_MB", 2)
	viper.SetDefault("FEATURE_FLAGS", "quote_posts=on,reposts=on,google_signin=on")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.StorageDriver = strings.ToLower(strings.TrimSpace(config.StorageDriver))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.GraphQLEndpoint == "" {
		return errors.New("GRAPHQL_ENDPOINT is required")
	}
	u, err := url.Parse(c.GraphQLEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("GRAPHQL_ENDPOINT must be an absolute http(s) URL, got %q", c.GraphQLEndpoint)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if c.FeedPageSize <= 0 {
		return errors.New("FEED_PAGE_SIZE must be positive")
	}
	if c.FeedPollSeconds <= 0 {
		return errors.New("FEED_POLL_INTERVAL_SECONDS must be positive")
	}
	if c.AvatarMaxUploadMB <= 0 {
		return errors.New("AVATAR_MAX_UPLOAD_MB must be positive")
	}

	switch c.StorageDriver {
	case StorageFile, StorageSQLite:
		if c.StoragePath == "" {
			return fmt.Errorf("STORAGE_PATH is required for the %s storage driver", c.StorageDriver)
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres storage driver")
		}
	case StorageRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.TracingEnabled && c.TracingExporter != "stdout" && c.TracingExporter != "otlp" {
		return fmt.Errorf("TRACING_EXPORTER must be stdout or otlp, got %q", c.TracingExporter)
	}

	if c.IsProduction() {
		if u.Scheme != "https" {
			log.Println("WARNING: GRAPHQL_ENDPOINT is not https in production. Tokens will travel in clear text.")
		}
		if c.Host != "127.0.0.1" && c.Host != "localhost" {
			log.Println("WARNING: HOST is not a loopback address. The client UI serves a single signed-in user.")
		}
	}

	return nil
}

// IsProduction reports whether the configured environment is a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Addr is the listen address of the local web UI.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}
