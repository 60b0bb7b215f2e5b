package medconfirm

import (
	"errors"
	"time"

	"github.com/MrEthical07/medconfirm/internal/limiters"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an [Engine].
//
// Builder instances are configured during initialization and used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	attempts  AttemptStore
	identity  IdentityService
	records   RecordStore
	auditSink AuditSink
	logger    *zerolog.Logger
	clock     func() time.Time

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client used for attempt records and page latches.
// Unless [Builder.WithAttemptStore] is also called, attempts are kept in Redis.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAttemptStore overrides where attempt records are kept.
func (b *Builder) WithAttemptStore(store AttemptStore) *Builder {
	b.attempts = store
	return b
}

func (b *Builder) WithIdentityService(identity IdentityService) *Builder {
	b.identity = identity
	return b
}

func (b *Builder) WithRecordStore(records RecordStore) *Builder {
	b.records = records
	return b
}

// WithAuditSink sets the sink used when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort step failures. The default
// logger discards everything.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithClock overrides time.Now, mainly for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the engine. A builder can be
// built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.identity == nil {
		return nil, errors.New("identity service required")
	}
	if b.records == nil {
		return nil, errors.New("record store required")
	}

	attempts := b.attempts
	if attempts == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or attempt store required")
		}
		attempts = NewRedisAttemptStore(b.redis, cfg.Attempts)
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	engine := &Engine{
		config:   cfg,
		redis:    b.redis,
		attempts: attempts,
		identity: b.identity,
		records:  b.records,
		logger:   logger,
		clock:    clock,
	}
	engine.limiter = limiters.NewConfirmationLimiter(attemptBackend{store: attempts}, limiters.ConfirmationConfig{
		MaxAttempts: cfg.Attempts.MaxAttempts,
		Window:      cfg.Attempts.Window,
	}, clock)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
