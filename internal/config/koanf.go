package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/medconfirm"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/medconfirm/config.yaml",
}

const envPrefix = "MEDCONFIRM_"

func defaultConfig() *Config {
	engine := medconfirm.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			ShutdownTimeout: 20 * time.Second,
			Environment:     "development",
			TrustedProxies:  []string{},
		},
		Database: DatabaseConfig{
			MaxConns:         10,
			MinConns:         1,
			MaxConnLifetime:  time.Hour,
			StatementTimeout: 10 * time.Second,
			Migrate:          true,
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		Identity: IdentityConfig{
			JWTAudience: "authenticated",
			HTTPTimeout: 45 * time.Second,
		},
		Confirmation: ConfirmationConfig{
			AllowedOrigins:  engine.Confirmation.AllowedOrigins,
			DeepLink:        engine.Confirmation.DeepLink,
			RedirectDelay:   engine.Confirmation.RedirectDelay,
			ExchangeTimeout: engine.Confirmation.ExchangeTimeout,
			MaxAttempts:     engine.Attempts.MaxAttempts,
			AttemptWindow:   engine.Attempts.Window,
			LatchTTL:        engine.Confirmation.LatchTTL,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 30,
			Window:   time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: engine.Audit.BufferSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env (if present) and then the layered configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadWithKoanf()
}

// LoadWithKoanf loads defaults, then the config file, then MEDCONFIRM_*
// environment variables, and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"confirmation.allowed_origins",
	"server.trusted_proxies",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"host":             "server.host",
	"port":             "server.port",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",
	"trusted_proxies":  "server.trusted_proxies",

	"database_url":               "database.url",
	"database_max_conns":         "database.max_conns",
	"database_min_conns":         "database.min_conns",
	"database_statement_timeout": "database.statement_timeout",
	"database_migrate":           "database.migrate",

	"redis_addr":     "redis.addr",
	"redis_password": "redis.password",
	"redis_db":       "redis.db",

	"identity_url":              "identity.url",
	"identity_anon_key":         "identity.anon_key",
	"identity_service_role_key": "identity.service_role_key",
	"identity_jwt_secret":       "identity.jwt_secret",
	"identity_jwt_audience":     "identity.jwt_audience",
	"identity_http_timeout":     "identity.http_timeout",

	"allowed_origins":  "confirmation.allowed_origins",
	"deep_link":        "confirmation.deep_link",
	"redirect_delay":   "confirmation.redirect_delay",
	"exchange_timeout": "confirmation.exchange_timeout",
	"max_attempts":     "confirmation.max_attempts",
	"attempt_window":   "confirmation.attempt_window",
	"latch_ttl":        "confirmation.latch_ttl",

	"rate_limit_enabled":  "rate_limit.enabled",
	"rate_limit_requests": "rate_limit.requests",
	"rate_limit_window":   "rate_limit.window",

	"audit_enabled":     "audit.enabled",
	"audit_buffer_size": "audit.buffer_size",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps MEDCONFIRM_DATABASE_URL to database.url and so on.
// Unknown variables are skipped.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return envMappings[key]
}
