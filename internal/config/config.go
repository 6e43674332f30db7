// Package config loads service configuration from an optional yaml file and
// SOULGATE_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type RedisConfig struct {
	// URL selects the redis backend for stores, rate limiting and events.
	// Empty means in-memory everything (single instance).
	URL string `mapstructure:"url"`
}

type AuthConfig struct {
	ChallengeTTL  time.Duration `mapstructure:"challenge_ttl"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RateLimitConfig struct {
	AuthPerMinute   int `mapstructure:"auth_per_minute"`
	StatusPerMinute int `mapstructure:"status_per_minute"`
	APIAuthPerHour  int `mapstructure:"api_auth_per_hour"`
	APIAnonPerHour  int `mapstructure:"api_anon_per_hour"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// Load reads configuration. A missing config file is fine; defaults and
// environment variables cover everything.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SOULGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.mode", "release")

	v.SetDefault("redis.url", "")

	v.SetDefault("auth.challenge_ttl", "5m")
	v.SetDefault("auth.access_ttl", "1h")
	v.SetDefault("auth.refresh_ttl", "168h")
	v.SetDefault("auth.sweep_interval", "1m")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("rate_limit.auth_per_minute", 20)
	v.SetDefault("rate_limit.status_per_minute", 60)
	v.SetDefault("rate_limit.api_auth_per_hour", 100)
	v.SetDefault("rate_limit.api_anon_per_hour", 30)
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
