// Package config handles application configuration management using Viper
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Defaults for optional settings.
const (
	DefaultBaseURL          = "https://api.testnet.aptoslabs.com/decibel/api/v1"
	DefaultPollInterval     = "30s"
	DefaultFetchConcurrency = 8
	DefaultPort             = 3000
	DefaultLogLevel         = "info"
	DefaultRateLimit        = 5.0
	DefaultThresholdPct     = 5.0
	DefaultCooldown         = "5m"
)

// AppConfig holds the application configuration.
type AppConfig struct {
	Telegram TelegramConfig
	Decibel  DecibelConfig
	Monitor  MonitorConfig
	Port     int
	LogLevel string
}

// TelegramConfig holds the Telegram bot configuration.
type TelegramConfig struct {
	Token string
}

// DecibelConfig holds the exchange API configuration.
type DecibelConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit float64
}

// MonitorConfig holds the poll cycle configuration.
type MonitorConfig struct {
	PollInterval     time.Duration
	FetchConcurrency int
	ThresholdPct     float64
	Cooldown         time.Duration
}

// LoadAppConfig loads application configuration from the environment
// using Viper.
func LoadAppConfig() (*AppConfig, error) {
	viper.AutomaticEnv()

	viper.SetDefault("DECIBEL_BASE_URL", DefaultBaseURL)
	viper.SetDefault("POLL_INTERVAL", DefaultPollInterval)
	viper.SetDefault("FETCH_CONCURRENCY", DefaultFetchConcurrency)
	viper.SetDefault("PORT", DefaultPort)
	viper.SetDefault("LOG_LEVEL", DefaultLogLevel)
	viper.SetDefault("RATE_LIMIT", DefaultRateLimit)
	viper.SetDefault("DEFAULT_THRESHOLD", DefaultThresholdPct)
	viper.SetDefault("DEFAULT_COOLDOWN", DefaultCooldown)

	token := viper.GetString("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	pollInterval, err := str2duration.ParseDuration(viper.GetString("POLL_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}

	cooldown, err := str2duration.ParseDuration(viper.GetString("DEFAULT_COOLDOWN"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_COOLDOWN: %w", err)
	}

	config := &AppConfig{
		Telegram: TelegramConfig{
			Token: token,
		},
		Decibel: DecibelConfig{
			BaseURL:   viper.GetString("DECIBEL_BASE_URL"),
			APIKey:    viper.GetString("DECIBEL_API_KEY"),
			RateLimit: viper.GetFloat64("RATE_LIMIT"),
		},
		Monitor: MonitorConfig{
			PollInterval:     pollInterval,
			FetchConcurrency: viper.GetInt("FETCH_CONCURRENCY"),
			ThresholdPct:     viper.GetFloat64("DEFAULT_THRESHOLD"),
			Cooldown:         cooldown,
		},
		Port:     viper.GetInt("PORT"),
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	return config, nil
}
