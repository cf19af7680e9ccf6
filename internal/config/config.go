// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Osu        OsuConfig        `mapstructure:"osu"`
	Poller     PollerConfig     `mapstructure:"poller"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Whitelist  WhitelistConfig  `mapstructure:"whitelist"`
	Processing ProcessingConfig `mapstructure:"processing"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// OsuConfig holds osu! API v2 client credentials and limits.
type OsuConfig struct {
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	BaseURL           string        `mapstructure:"base_url"`
	TokenURL          string        `mapstructure:"token_url"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxRetries        uint64        `mapstructure:"max_retries"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// PollerConfig controls how often started games are refreshed.
type PollerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	PassTimeout time.Duration `mapstructure:"pass_timeout"`
	MaxParallel int           `mapstructure:"max_parallel"`
}

// NotifyConfig lists the chats that receive game reports.
type NotifyConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// ProcessingConfig holds result pass settings.
type ProcessingConfig struct {
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. BOT_TOKEN, DATABASE_HOST, OSU_CLIENT_SECRET
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.Osu.RequestsPerMinute <= 0 {
		return fmt.Errorf("osu.requests_per_minute must be positive, got %d", c.Osu.RequestsPerMinute)
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive, got %s", c.Poller.Interval)
	}
	if c.Processing.LockTimeout <= 0 {
		return fmt.Errorf("processing.lock_timeout must be positive, got %s", c.Processing.LockTimeout)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.poll_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "royale")
	v.SetDefault("database.name", "royale")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("osu.base_url", "https://osu.ppy.sh/api/v2")
	v.SetDefault("osu.token_url", "https://osu.ppy.sh/oauth/token")
	v.SetDefault("osu.requests_per_minute", 60)
	v.SetDefault("osu.max_retries", 3)
	v.SetDefault("osu.request_timeout", "15s")

	v.SetDefault("poller.interval", "30s")
	v.SetDefault("poller.pass_timeout", "2m")
	v.SetDefault("poller.max_parallel", 4)

	v.SetDefault("processing.lock_timeout", "30s")
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
