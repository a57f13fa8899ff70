package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config defines charge point server configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		Channel  string `yaml:"channel" env:"REDIS_TELEMETRY_CHANNEL"`
	} `yaml:"redis"`
	Payments struct {
		BaseURL   string `yaml:"baseUrl" env:"PAYMENTS_BASE_URL"`
		SecretKey string `yaml:"secretKey" env:"PAYMENTS_SECRET_KEY"`
		Currency  string `yaml:"currency" env:"PAYMENTS_CURRENCY"`
	} `yaml:"payments"`
	Admin struct {
		Login        string `yaml:"login" env:"ADMIN_LOGIN"`
		PasswordHash string `yaml:"passwordHash" env:"ADMIN_PASSWORD_HASH"`
		JWTSecret    string `yaml:"jwtSecret" env:"ADMIN_JWT_SECRET"`
		TokenTTLMin  int    `yaml:"tokenTtlMinutes" env:"ADMIN_TOKEN_TTL"`
	} `yaml:"admin"`
	WebSocket struct {
		PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"WS_PING_INTERVAL"`
		WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"WS_WRITE_TIMEOUT"`
	} `yaml:"websocket"`
}

// Load uses the shared loader and validates required fields.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.Redis.Channel = "telemetry:energy"
	cfg.Payments.Currency = "pln"
	cfg.WebSocket.PingIntervalSeconds = 30
	cfg.WebSocket.WriteTimeoutSeconds = 15

	if err := hydrate(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database DSN is required")
	}
	if strings.TrimSpace(cfg.Admin.JWTSecret) == "" {
		return nil, errors.New("config: admin JWT secret is required")
	}

	return cfg, nil
}

// HTTPAddress returns :port style address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// PingInterval returns websocket ping interval.
func (c *Config) PingInterval() time.Duration {
	if c.WebSocket.PingIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.WebSocket.PingIntervalSeconds) * time.Second
}

// WriteTimeout returns websocket write timeout.
func (c *Config) WriteTimeout() time.Duration {
	if c.WebSocket.WriteTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.WebSocket.WriteTimeoutSeconds) * time.Second
}

// TokenTTL returns admin token lifetime.
func (c *Config) TokenTTL() time.Duration {
	if c.Admin.TokenTTLMin <= 0 {
		return time.Hour
	}
	return time.Duration(c.Admin.TokenTTLMin) * time.Minute
}
