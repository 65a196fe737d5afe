package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string           `mapstructure:"environment" validate:"required"`
	LogLevel    string           `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Scheduler   SchedulerConfig  `mapstructure:"scheduler"`
	Provider    ProviderConfig   `mapstructure:"provider"`
	Journal     JournalConfig    `mapstructure:"journal"`
	Monitoring  MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int `mapstructure:"port" validate:"min=0,max=65535"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds" validate:"min=0"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds" validate:"min=0"`
	IdleTimeoutSeconds  int `mapstructure:"idle_timeout_seconds" validate:"min=0"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	Name                   string `mapstructure:"name"`
	SSLMode                string `mapstructure:"ssl_mode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	Password            string `mapstructure:"password"`
	DB                  int    `mapstructure:"db"`
	PoolSize            int    `mapstructure:"pool_size"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `mapstructure:"idle_timeout_seconds"`
}

// SchedulerConfig holds the tick driver timing
type SchedulerConfig struct {
	FrameIntervalMS      int `mapstructure:"frame_interval_ms" validate:"min=1"`
	ConnectivitySettleMS int `mapstructure:"connectivity_settle_ms" validate:"min=0"`
	GeometrySettleMS     int `mapstructure:"geometry_settle_ms" validate:"min=0"`
	RetryIntervalTicks   int `mapstructure:"retry_interval_ticks" validate:"min=1"`
}

// ProviderConfig holds ad provider configuration
type ProviderConfig struct {
	// UnitIDs maps a unit kind to the provider ad-unit identifier
	UnitIDs       map[string]string `mapstructure:"unit_ids"`
	FillRate      float64           `mapstructure:"fill_rate" validate:"min=0,max=1"`
	LoadLatencyMS int               `mapstructure:"load_latency_ms" validate:"min=0"`
	InitLatencyMS int               `mapstructure:"init_latency_ms" validate:"min=0"`
}

// JournalConfig holds lifecycle journal configuration
type JournalConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Channel     string `mapstructure:"channel" validate:"required_if=Enabled true"`
	BufferSize  int    `mapstructure:"buffer_size" validate:"min=1"`
	WorkerCount int    `mapstructure:"worker_count" validate:"min=1"`
	// RetentionHours bounds how long the journal database keeps entries; 0 keeps them forever
	RetentionHours int `mapstructure:"retention_hours" validate:"min=0"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Structured bool   `mapstructure:"structured"`
	Format     string `mapstructure:"format"`
	Level      string `mapstructure:"level"`
	Output     string `mapstructure:"output"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:                8080,
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 10,
			IdleTimeoutSeconds:  60,
		},
		Database: DatabaseConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "postgres",
			Name:                   "adunits",
			SSLMode:                "disable",
			MaxOpenConns:           10,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 30,
		},
		Redis: RedisConfig{
			Host:                "localhost",
			Port:                6379,
			PoolSize:            10,
			ReadTimeoutSeconds:  3,
			WriteTimeoutSeconds: 3,
			IdleTimeoutSeconds:  300,
		},
		Scheduler: SchedulerConfig{
			FrameIntervalMS:      16,
			ConnectivitySettleMS: 500,
			GeometrySettleMS:     200,
			RetryIntervalTicks:   300,
		},
		Provider: ProviderConfig{
			// provider test identifiers
			UnitIDs: map[string]string{
				"app_open":              "ca-app-pub-3940256099942544/3419835294",
				"banner":                "ca-app-pub-3940256099942544/6300978111",
				"interstitial":          "ca-app-pub-3940256099942544/1033173712",
				"rewarded":              "ca-app-pub-3940256099942544/5224354917",
				"rewarded_interstitial": "ca-app-pub-3940256099942544/5354046379",
			},
			FillRate:      0.8,
			LoadLatencyMS: 300,
			InitLatencyMS: 100,
		},
		Journal: JournalConfig{
			Enabled:        false,
			Channel:        "adunit:journal",
			BufferSize:     1024,
			WorkerCount:    2,
			RetentionHours: 168,
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
			Logging: LoggingConfig{Format: "text", Level: "info", Output: "stdout"},
		},
	}
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// FrameInterval returns the host frame interval
func (s SchedulerConfig) FrameInterval() time.Duration {
	return time.Duration(s.FrameIntervalMS) * time.Millisecond
}

// ConnectivitySettle returns the connectivity debounce window
func (s SchedulerConfig) ConnectivitySettle() time.Duration {
	return time.Duration(s.ConnectivitySettleMS) * time.Millisecond
}

// GeometrySettle returns the geometry debounce window
func (s SchedulerConfig) GeometrySettle() time.Duration {
	return time.Duration(s.GeometrySettleMS) * time.Millisecond
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Determine config file name based on environment
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}

	// Set config file path
	configName := "config"
	if env == "production" {
		configName = "production"
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath("/app/configs")

	// Read config file (it's okay if it doesn't exist)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Process the config with environment variable substitution
	processedConfig := make(map[string]interface{})
	if err := viper.Unmarshal(&processedConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}

	// Process {ENV-default} patterns recursively
	processEnvPatterns(processedConfig)

	// Create a new viper instance with processed config
	processedViper := viper.New()
	for key, value := range processedConfig {
		processedViper.Set(key, value)
	}

	return decode(processedViper)
}

// LoadFile loads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	processedConfig := make(map[string]interface{})
	if err := v.Unmarshal(&processedConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}
	processEnvPatterns(processedConfig)

	processedViper := viper.New()
	for key, value := range processedConfig {
		processedViper.Set(key, value)
	}
	return decode(processedViper)
}

// decode unmarshals on top of the defaults and validates the result
func decode(v *viper.Viper) (*Config, error) {
	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal processed config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// processEnvPatterns processes {ENV-default} patterns recursively
func processEnvPatterns(config map[string]interface{}) {
	for key, value := range config {
		config[key] = processValue(value)
	}
}

// processValue processes a single value for environment variable substitution
func processValue(value interface{}) interface{} {
	envPattern := regexp.MustCompile(`\{([A-Z_]+)-([^}]*)\}`)

	switch v := value.(type) {
	case string:
		if matches := envPattern.FindStringSubmatch(v); len(matches) == 3 {
			envVar := matches[1]
			defaultValue := matches[2]

			// Get environment variable value or use default
			if envValue := os.Getenv(envVar); envValue != "" {
				return convertValue(envValue, defaultValue)
			} else {
				return convertValue(defaultValue, defaultValue)
			}
		}
		return v
	case map[string]interface{}:
		processEnvPatterns(v)
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = processValue(item)
		}
		return v
	default:
		return v
	}
}

// convertValue converts string values to appropriate types
func convertValue(value, defaultValue string) interface{} {
	// Special case: if default is empty, always return the value as string (even if empty)
	if defaultValue == "" {
		return value
	}

	// If value is empty and default is not empty, try to convert default
	if value == "" {
		return convertToType(defaultValue)
	}

	// Convert the actual value
	return convertToType(value)
}

// convertToType converts a string to the most appropriate type
func convertToType(value string) interface{} {
	// If value is empty, return empty string
	if value == "" {
		return ""
	}

	// Try boolean conversion first
	if strings.ToLower(value) == "true" {
		return true
	}
	if strings.ToLower(value) == "false" {
		return false
	}

	// Try integer conversion
	if intVal, err := strconv.Atoi(value); err == nil {
		return intVal
	}

	// Try float conversion
	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}

	// Return as string if no conversion is possible
	return value
}
