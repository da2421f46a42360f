// Package config loads application configuration from a yaml file with
// environment-variable overrides.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the tracker.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Currency Currency `mapstructure:"currency"`
	Gemini   Gemini   `mapstructure:"gemini"`
	Telegram Telegram `mapstructure:"telegram"`
	Receipts Receipts `mapstructure:"receipts"`
	Notion   Notion   `mapstructure:"notion"`
	Logger   Logger   `mapstructure:"logger"`
}

// Server holds the webhook/report server settings.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the ledger store settings.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Currency describes the local currency and its parsing/fallback behavior.
type Currency struct {
	Local        string  `mapstructure:"local"`
	PrefixToken  string  `mapstructure:"prefix_token"`
	FallbackRate float64 `mapstructure:"fallback_rate"`
}

// Gemini holds the inference backend settings. Models is the ordered
// primary-then-fallback list.
type Gemini struct {
	Models         []string `mapstructure:"models"`
	RateLimit      float64  `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

// Telegram holds the chat transport settings. AuthorizedChatID is the only
// chat the tracker will answer.
type Telegram struct {
	BotToken         string `mapstructure:"bot_token"`
	AuthorizedChatID string `mapstructure:"authorized_chat_id"`
}

// Receipts configures the optional receipt image archive. An empty bucket
// disables archiving.
type Receipts struct {
	Bucket string `mapstructure:"bucket"`
}

// Notion configures the optional ledger mirror. An empty token disables it.
type Notion struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

// Logger holds the logging settings.
type Logger struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from config.yml in the given path, with
// environment variables overriding file values (SERVER_PORT, DATABASE_DSN,
// TELEGRAM_BOT_TOKEN, ...).
func Load(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "duitku.db")
	viper.SetDefault("currency.local", "IDR")
	viper.SetDefault("currency.prefix_token", "Rp")
	viper.SetDefault("currency.fallback_rate", 16000.0)
	viper.SetDefault("gemini.models", []string{
		"gemini-3-flash",
		"gemini-2.5-flash",
		"gemini-2.5-flash-lite",
	})
	viper.SetDefault("gemini.rate_limit", 1) // requests per second
	viper.SetDefault("gemini.rate_limit_burst", 2)
	viper.SetDefault("logger.level", "info")

	if err = viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover it.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
