package medconfirm

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/medconfirm/internal/limiters"
	"github.com/MrEthical07/medconfirm/internal/stores"
	"github.com/redis/go-redis/v9"
)

// RedisAttemptStore keeps attempt records in Redis hashes keyed by device ID.
type RedisAttemptStore struct {
	store *stores.AttemptStore
}

// NewRedisAttemptStore returns an [AttemptStore] whose records expire one
// window after the last write.
func NewRedisAttemptStore(client redis.UniversalClient, cfg AttemptConfig) *RedisAttemptStore {
	return &RedisAttemptStore{
		store: stores.NewAttemptStore(client, cfg.RedisPrefix, cfg.Window),
	}
}

func (s *RedisAttemptStore) Load(ctx context.Context, deviceID string) (AttemptRecord, error) {
	record, err := s.store.Load(ctx, deviceID)
	if err != nil {
		return AttemptRecord{}, err
	}
	return AttemptRecord{Count: record.Count, LastAttempt: record.LastAttempt}, nil
}

func (s *RedisAttemptStore) Save(ctx context.Context, deviceID string, record AttemptRecord) error {
	return s.store.Save(ctx, deviceID, stores.AttemptRecord{Count: record.Count, LastAttempt: record.LastAttempt})
}

func (s *RedisAttemptStore) Clear(ctx context.Context, deviceID string) error {
	return s.store.Clear(ctx, deviceID)
}

// attemptBackend adapts a public AttemptStore to the limiter.
type attemptBackend struct {
	store AttemptStore
}

func (b attemptBackend) Load(ctx context.Context, deviceID string) (limiters.AttemptRecord, error) {
	record, err := b.store.Load(ctx, deviceID)
	if err != nil {
		return limiters.AttemptRecord{}, err
	}
	return limiters.AttemptRecord{Count: record.Count, LastAttempt: record.LastAttempt}, nil
}

func (b attemptBackend) Save(ctx context.Context, deviceID string, record limiters.AttemptRecord) error {
	return b.store.Save(ctx, deviceID, AttemptRecord{Count: record.Count, LastAttempt: record.LastAttempt})
}

func (b attemptBackend) Clear(ctx context.Context, deviceID string) error {
	return b.store.Clear(ctx, deviceID)
}

// localLatch is the in-process latch used when no other latch is supplied.
type localLatch struct {
	started atomic.Bool
}

func (l *localLatch) Acquire(context.Context) (bool, error) {
	return l.started.CompareAndSwap(false, true), nil
}

type redisLatch struct {
	latch  *stores.PageLatch
	pageID string
}

func (l redisLatch) Acquire(ctx context.Context) (bool, error) {
	return l.latch.Acquire(ctx, l.pageID)
}

// PageLatch returns a Redis-backed latch for one page instance, so that a
// page's flow runs once even when its run request is retried or replayed
// against another server.
func (e *Engine) PageLatch(pageID string) (Latch, error) {
	if e == nil || e.redis == nil {
		return nil, ErrEngineNotReady
	}
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil, ErrInvalidPageID
	}
	ttl := e.config.Confirmation.LatchTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return redisLatch{
		latch:  stores.NewPageLatch(e.redis, e.config.Attempts.RedisPrefix+":page", ttl),
		pageID: pageID,
	}, nil
}
