// Package config loads the medconfirmd daemon configuration.
//
// Sources are layered: built-in defaults, then an optional YAML file, then
// environment variables. A .env file in the working directory is loaded into
// the environment first.
package config

import (
	"time"

	"github.com/MrEthical07/medconfirm"
	"github.com/MrEthical07/medconfirm/identity"
	"github.com/MrEthical07/medconfirm/internal/database"
	"github.com/MrEthical07/medconfirm/internal/logging"
	"github.com/MrEthical07/medconfirm/internal/rate"
	"github.com/MrEthical07/medconfirm/jwt"
)

// Config is the complete daemon configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	Identity     IdentityConfig     `koanf:"identity"`
	Confirmation ConfirmationConfig `koanf:"confirmation"`
	RateLimit    RateLimitConfig    `koanf:"rate_limit"`
	Audit        AuditConfig        `koanf:"audit"`
	Logging      LoggingConfig      `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// Environment is development or production. Production refuses
	// localhost origins.
	Environment    string   `koanf:"environment"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

type DatabaseConfig struct {
	URL              string        `koanf:"url"`
	MaxConns         int32         `koanf:"max_conns"`
	MinConns         int32         `koanf:"min_conns"`
	MaxConnLifetime  time.Duration `koanf:"max_conn_lifetime"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
	Migrate          bool          `koanf:"migrate"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// IdentityConfig points at the hosted identity provider.
type IdentityConfig struct {
	URL            string        `koanf:"url"`
	AnonKey        string        `koanf:"anon_key"`
	ServiceRoleKey string        `koanf:"service_role_key"`
	JWTSecret      string        `koanf:"jwt_secret"`
	JWTAudience    string        `koanf:"jwt_audience"`
	HTTPTimeout    time.Duration `koanf:"http_timeout"`
}

type ConfirmationConfig struct {
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	DeepLink        string        `koanf:"deep_link"`
	RedirectDelay   time.Duration `koanf:"redirect_delay"`
	ExchangeTimeout time.Duration `koanf:"exchange_timeout"`
	MaxAttempts     int           `koanf:"max_attempts"`
	AttemptWindow   time.Duration `koanf:"attempt_window"`
	LatchTTL        time.Duration `koanf:"latch_ttl"`
}

// RateLimitConfig throttles POST /confirme/run per client IP.
type RateLimitConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Engine translates the daemon settings into the engine configuration.
func (c *Config) Engine() medconfirm.Config {
	cfg := medconfirm.DefaultConfig()
	cfg.ProductionMode = c.Server.Environment == "production"
	cfg.Confirmation.AllowedOrigins = append([]string(nil), c.Confirmation.AllowedOrigins...)
	cfg.Confirmation.DeepLink = c.Confirmation.DeepLink
	cfg.Confirmation.RedirectDelay = c.Confirmation.RedirectDelay
	cfg.Confirmation.ExchangeTimeout = c.Confirmation.ExchangeTimeout
	cfg.Confirmation.LatchTTL = c.Confirmation.LatchTTL
	cfg.Attempts.MaxAttempts = c.Confirmation.MaxAttempts
	cfg.Attempts.Window = c.Confirmation.AttemptWindow
	cfg.Audit.Enabled = c.Audit.Enabled
	if c.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = c.Audit.BufferSize
	}
	return cfg
}

func (c *Config) IdentityClient() identity.Config {
	cfg := identity.DefaultConfig()
	cfg.BaseURL = c.Identity.URL
	cfg.AnonKey = c.Identity.AnonKey
	cfg.ServiceRoleKey = c.Identity.ServiceRoleKey
	if c.Identity.HTTPTimeout > 0 {
		cfg.HTTPTimeout = c.Identity.HTTPTimeout
	}
	return cfg
}

// AdminTokens configures verification of admin bearer tokens.
func (c *Config) AdminTokens() jwt.Config {
	return jwt.Config{
		Secret:   []byte(c.Identity.JWTSecret),
		Audience: c.Identity.JWTAudience,
		Leeway:   30 * time.Second,
	}
}

func (c *Config) Postgres() database.Config {
	return database.Config{
		URL:              c.Database.URL,
		MaxConns:         c.Database.MaxConns,
		MinConns:         c.Database.MinConns,
		MaxConnLifetime:  c.Database.MaxConnLifetime,
		StatementTimeout: c.Database.StatementTimeout,
	}
}

func (c *Config) Throttle() rate.Config {
	return rate.Config{
		Enabled:     c.RateLimit.Enabled,
		MaxRequests: c.RateLimit.Requests,
		Window:      c.RateLimit.Window,
	}
}

func (c *Config) Logger() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.Caller = c.Logging.Caller
	return cfg
}
