package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the daemon settings and the derived engine settings.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("server.environment must be development or production, got %q", c.Server.Environment)
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Identity.URL == "" {
		return errors.New("identity.url is required")
	}
	if c.Identity.AnonKey == "" {
		return errors.New("identity.anon_key is required")
	}
	if len(c.Identity.JWTSecret) < 16 {
		return errors.New("identity.jwt_secret must be at least 16 characters")
	}
	if c.Identity.HTTPTimeout > 0 && c.Identity.HTTPTimeout <= c.Confirmation.ExchangeTimeout {
		return fmt.Errorf("identity.http_timeout (%s) must exceed confirmation.exchange_timeout (%s)",
			c.Identity.HTTPTimeout, c.Confirmation.ExchangeTimeout)
	}
	if c.RateLimit.Enabled && c.RateLimit.Requests <= 0 {
		return errors.New("rate_limit.requests must be > 0 when enabled")
	}

	if c.Server.Environment == "production" {
		for _, origin := range c.Confirmation.AllowedOrigins {
			if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
				return fmt.Errorf("confirmation.allowed_origins must not contain %q in production", origin)
			}
		}
	}

	engine := c.Engine()
	if err := engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}
