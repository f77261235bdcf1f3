// Package config loads and validates the storepulse configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Stores    []string        `mapstructure:"stores"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// OptimizerConfig holds the real-time optimization loop configuration.
type OptimizerConfig struct {
	TickInterval          time.Duration `mapstructure:"tick_interval"`
	MetricsWindow         time.Duration `mapstructure:"metrics_window"`
	MinConversionRate     float64       `mapstructure:"min_conversion_rate"`
	MinAvgOrderValue      float64       `mapstructure:"min_avg_order_value"`
	MaxBounceRate         float64       `mapstructure:"max_bounce_rate"`
	SignificanceThreshold float64       `mapstructure:"significance_threshold"`
	MinSampleSize         int           `mapstructure:"min_sample_size"`
}

// AnalyticsConfig holds thresholds for the forecasting and trend components.
type AnalyticsConfig struct {
	MinDataPoints     int `mapstructure:"min_data_points"`
	SeasonalMinPoints int `mapstructure:"seasonal_min_points"`
	TrendWindow       int `mapstructure:"trend_window"`
	HistoryDays       int `mapstructure:"history_days"`
	TrendDays         int `mapstructure:"trend_days"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	DBPath               string `mapstructure:"db_path"`
	MaxSnapshotsPerStore int    `mapstructure:"max_snapshots_per_store"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("STOREPULSE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("optimizer.tick_interval", "60s")
	v.SetDefault("optimizer.metrics_window", "1h")
	v.SetDefault("optimizer.min_conversion_rate", 0.05)
	v.SetDefault("optimizer.min_avg_order_value", 15.0)
	v.SetDefault("optimizer.max_bounce_rate", 0.7)
	v.SetDefault("optimizer.significance_threshold", 0.95)
	v.SetDefault("optimizer.min_sample_size", 100)

	v.SetDefault("analytics.min_data_points", 10)
	v.SetDefault("analytics.seasonal_min_points", 14)
	v.SetDefault("analytics.trend_window", 14)
	v.SetDefault("analytics.history_days", 90)
	v.SetDefault("analytics.trend_days", 30)

	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "./data/storepulse.db")
	v.SetDefault("storage.max_snapshots_per_store", 10000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if len(c.Stores) == 0 {
		return fmt.Errorf("stores must contain at least one store ID")
	}
	for _, id := range c.Stores {
		if id == "" {
			return fmt.Errorf("store IDs must not be empty")
		}
	}

	if c.Optimizer.TickInterval < 1*time.Second {
		return fmt.Errorf("optimizer.tick_interval must be at least 1 second")
	}
	if c.Optimizer.MetricsWindow < 1*time.Minute {
		return fmt.Errorf("optimizer.metrics_window must be at least 1 minute")
	}
	if c.Optimizer.MinConversionRate < 0 || c.Optimizer.MinConversionRate > 1 {
		return fmt.Errorf("optimizer.min_conversion_rate must be between 0.0 and 1.0")
	}
	if c.Optimizer.MinAvgOrderValue < 0 {
		return fmt.Errorf("optimizer.min_avg_order_value must not be negative")
	}
	if c.Optimizer.MaxBounceRate < 0 || c.Optimizer.MaxBounceRate > 1 {
		return fmt.Errorf("optimizer.max_bounce_rate must be between 0.0 and 1.0")
	}
	if c.Optimizer.SignificanceThreshold < 0.5 || c.Optimizer.SignificanceThreshold > 0.999 {
		return fmt.Errorf("optimizer.significance_threshold must be between 0.5 and 0.999")
	}
	if c.Optimizer.MinSampleSize < 1 {
		return fmt.Errorf("optimizer.min_sample_size must be at least 1")
	}

	if c.Analytics.MinDataPoints < 1 {
		return fmt.Errorf("analytics.min_data_points must be at least 1")
	}
	if c.Analytics.SeasonalMinPoints < c.Analytics.MinDataPoints {
		return fmt.Errorf("analytics.seasonal_min_points must be at least analytics.min_data_points")
	}
	if c.Analytics.TrendWindow < 2 {
		return fmt.Errorf("analytics.trend_window must be at least 2")
	}
	if c.Analytics.HistoryDays < 1 || c.Analytics.TrendDays < 1 {
		return fmt.Errorf("analytics history windows must be at least 1 day")
	}
	if c.Analytics.TrendDays > c.Analytics.HistoryDays {
		return fmt.Errorf("analytics.trend_days must not exceed analytics.history_days")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxSnapshotsPerStore < 100 {
		return fmt.Errorf("storage.max_snapshots_per_store must be at least 100")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
