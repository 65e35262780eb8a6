package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Validator *validator.Validate
}

// AppConfig represents the application configuration
type AppConfig struct {
	Port        string `mapstructure:"port" validate:"required,numeric"`
	Environment string `mapstructure:"environment" validate:"required"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error fatal"`
	LogFormat   string `mapstructure:"log_format" validate:"oneof=json console"`

	SQLitePath string `mapstructure:"sqlite_path"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`

	EnableOpenSearch   bool   `mapstructure:"enable_opensearch"`
	OpenSearchURL      string `mapstructure:"opensearch_url" validate:"omitempty,url"`
	OpenSearchUser     string `mapstructure:"opensearch_user"`
	OpenSearchPassword string `mapstructure:"opensearch_password"`

	EnableMetrics bool `mapstructure:"enable_metrics"`

	APIKeys    []string `mapstructure:"api_keys"`
	AllowedIPs []string `mapstructure:"allowed_ips"`
	RateLimit  int      `mapstructure:"rate_limit" validate:"gte=0"`
}

// IsProduction reports whether the service runs in production
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

var (
	instance *Config
	once     sync.Once
)

func App() *Config {
	once.Do(func() {
		instance = &Config{
			Validator: validator.New(),
		}
	})
	return instance
}

var appKeys = []string{
	"port", "environment", "log_level", "log_format", "sqlite_path",
	"redis_addr", "redis_password", "redis_db",
	"enable_opensearch", "opensearch_url", "opensearch_user", "opensearch_password",
	"enable_metrics", "api_keys", "allowed_ips", "rate_limit",
}

// Load reads the application configuration from MULTIPAY_* environment
// variables and an optional config.yaml.
func Load() (*AppConfig, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("MULTIPAY")
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys viper already knows about
	for _, key := range appKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/multipay")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := App().Validator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "9999")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("sqlite_path", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("enable_opensearch", false)
	v.SetDefault("opensearch_url", "http://localhost:9200")
	v.SetDefault("opensearch_user", "")
	v.SetDefault("opensearch_password", "")
	v.SetDefault("enable_metrics", true)
	v.SetDefault("api_keys", []string{})
	v.SetDefault("allowed_ips", []string{})
	v.SetDefault("rate_limit", 100)
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
