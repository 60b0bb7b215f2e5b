package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds throttle tuning parameters.
type Config struct {
	Enabled     bool
	Prefix      string
	MaxRequests int
	Window      time.Duration
}

// Limiter is a fixed-window request throttle keyed by client address, backed
// by Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a throttle [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "mc:ip"
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Allow counts one request for ip and returns [ErrRateLimited] once the
// window budget is spent. Empty addresses are not throttled.
func (l *Limiter) Allow(ctx context.Context, ip string) error {
	if l == nil || !l.config.Enabled || ip == "" || l.config.MaxRequests <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.key(ip), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRequests) {
		return ErrRateLimited
	}
	return nil
}

// Remaining returns how many requests ip may still make in the current window.
func (l *Limiter) Remaining(ctx context.Context, ip string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return l.config.MaxRequests, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	left := int64(l.config.MaxRequests) - count
	if left < 0 {
		return 0, nil
	}
	return int(left), nil
}

func (l *Limiter) key(ip string) string {
	return l.config.Prefix + ":" + ip
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: only the first hit sets the TTL.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
