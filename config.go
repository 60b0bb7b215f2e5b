package medconfirm

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config is the engine configuration. Build it with [DefaultConfig] and
// override fields before passing it to [Builder.WithConfig].
type Config struct {
	// ProductionMode only affects [Engine.SecurityReport].
	ProductionMode bool

	Confirmation ConfirmationConfig
	Attempts     AttemptConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// ConfirmationConfig controls the confirmation flow itself.
type ConfirmationConfig struct {
	// AllowedOrigins is matched exactly against the reporting origin.
	AllowedOrigins []string

	MinTokenLength  int
	MaxTokenLength  int
	ExchangeTimeout time.Duration

	DeepLink      string
	RedirectDelay time.Duration

	// LatchTTL bounds how long a Redis page latch is held.
	LatchTTL time.Duration
}

// AttemptConfig controls the per-device attempt limiter.
type AttemptConfig struct {
	MaxAttempts int
	Window      time.Duration
	RedisPrefix string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: 5 attempts per hour, tokens
// strictly between 100 and 2000 characters, a 30 second exchange deadline and
// a 3 second deep-link delay.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Confirmation: ConfirmationConfig{
			AllowedOrigins: []string{
				"https://admin.medconfirm.app",
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			},
			MinTokenLength:  100,
			MaxTokenLength:  2000,
			ExchangeTimeout: 30 * time.Second,
			DeepLink:        "app-scheme://auth/confirmed",
			RedirectDelay:   3 * time.Second,
			LatchTTL:        10 * time.Minute,
		},
		Attempts: AttemptConfig{
			MaxAttempts: 5,
			Window:      time.Hour,
			RedisPrefix: "mc:att",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Confirmation.AllowedOrigins = append([]string(nil), cfg.Confirmation.AllowedOrigins...)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if len(c.Confirmation.AllowedOrigins) == 0 {
		return errors.New("Confirmation AllowedOrigins must not be empty")
	}
	for _, origin := range c.Confirmation.AllowedOrigins {
		if strings.TrimSpace(origin) != origin || origin == "" {
			return errors.New("Confirmation AllowedOrigins must not contain blank or padded entries")
		}
		if strings.HasSuffix(origin, "/") {
			return errors.New("Confirmation AllowedOrigins must not end with '/'")
		}
	}
	if c.Confirmation.MinTokenLength < 0 {
		return errors.New("Confirmation MinTokenLength must be >= 0")
	}
	if c.Confirmation.MaxTokenLength <= c.Confirmation.MinTokenLength+1 {
		return errors.New("Confirmation MaxTokenLength must leave room above MinTokenLength")
	}
	if c.Confirmation.ExchangeTimeout <= 0 {
		return errors.New("Confirmation ExchangeTimeout must be > 0")
	}
	if c.Confirmation.RedirectDelay < 0 {
		return errors.New("Confirmation RedirectDelay must be >= 0")
	}
	if c.Confirmation.LatchTTL <= 0 {
		return errors.New("Confirmation LatchTTL must be > 0")
	}
	u, err := url.Parse(c.Confirmation.DeepLink)
	if err != nil || u.Scheme == "" {
		return errors.New("Confirmation DeepLink must be an absolute URL")
	}

	if c.Attempts.MaxAttempts <= 0 {
		return errors.New("Attempts MaxAttempts must be > 0")
	}
	if c.Attempts.Window <= 0 {
		return errors.New("Attempts Window must be > 0")
	}
	if c.Attempts.RedisPrefix == "" {
		return errors.New("Attempts RedisPrefix must not be empty")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
