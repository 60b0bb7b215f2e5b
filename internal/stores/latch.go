package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLatchRedisUnavailable = errors.New("latch redis unavailable")

// PageLatch marks a page instance as started with SET NX. The first Acquire
// for a key wins; later calls see false until the TTL lapses.
type PageLatch struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewPageLatch(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *PageLatch {
	if prefix == "" {
		prefix = "mc:page"
	}
	return &PageLatch{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (l *PageLatch) Acquire(ctx context.Context, pageID string) (bool, error) {
	ok, err := l.redis.SetNX(ctx, l.prefix+":"+pageID, "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLatchRedisUnavailable, err)
	}
	return ok, nil
}
