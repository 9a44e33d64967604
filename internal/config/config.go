package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	DatabaseDriver string   `mapstructure:"database_driver"` // sqlite or postgres
	DatabasePath   string   `mapstructure:"database_path"`   // sqlite file path
	PostgresDSN    string   `mapstructure:"postgres_dsn"`    // used when database_driver=postgres
	LogLevel       string   `mapstructure:"log_level"`
	LogFormat      string   `mapstructure:"log_format"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AI analysis
	AIEnabled         bool   `mapstructure:"ai_enabled"`
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	GeminiModel       string `mapstructure:"gemini_model"`
	AIIntervalMinutes int    `mapstructure:"ai_interval_minutes"` // scheduler tick
	AICooldownMinutes int    `mapstructure:"ai_cooldown_minutes"` // min gap between cycle starts
	AIBatchSize       int    `mapstructure:"ai_batch_size"`       // logs per analysis cycle

	RequestTimeoutSec  int `mapstructure:"request_timeout_sec"`
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/sentinel/")
	viper.AddConfigPath("$HOME/.sentinel")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 4000)
	viper.SetDefault("database_driver", "sqlite")
	viper.SetDefault("database_path", "./sentinel.db")
	viper.SetDefault("postgres_dsn", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("ai_enabled", false)
	viper.SetDefault("gemini_api_key", "")
	viper.SetDefault("gemini_model", "gemini-1.5-flash")
	viper.SetDefault("ai_interval_minutes", 5)
	viper.SetDefault("ai_cooldown_minutes", 2)
	viper.SetDefault("ai_batch_size", 50)
	viper.SetDefault("request_timeout_sec", 15)
	viper.SetDefault("shutdown_timeout_sec", 10)

	// Environment variables
	viper.SetEnvPrefix("SENTINEL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
