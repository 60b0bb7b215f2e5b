package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Field names are shared with browser-side storage and must not change.
	fieldAttempts    = "confirmation_attempts"
	fieldLastAttempt = "confirmation_last_attempt"
)

var (
	ErrAttemptRedisUnavailable = errors.New("attempt redis unavailable")
	ErrAttemptRecordCorrupt    = errors.New("attempt record corrupt")
)

type AttemptRecord struct {
	Count       int
	LastAttempt int64
}

// AttemptStore keeps one Redis hash per device. Each write refreshes the
// key's TTL so abandoned records disappear after the limiter window.
type AttemptStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewAttemptStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *AttemptStore {
	if prefix == "" {
		prefix = "mc:att"
	}
	return &AttemptStore{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *AttemptStore) key(deviceID string) string {
	return s.prefix + ":" + deviceID
}

func (s *AttemptStore) Load(ctx context.Context, deviceID string) (AttemptRecord, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(deviceID)).Result()
	if err != nil {
		return AttemptRecord{}, fmt.Errorf("%w: %v", ErrAttemptRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return AttemptRecord{}, nil
	}

	var record AttemptRecord
	if raw, ok := fields[fieldAttempts]; ok {
		count, err := strconv.Atoi(raw)
		if err != nil || count < 0 {
			return AttemptRecord{}, fmt.Errorf("%w: %s=%q", ErrAttemptRecordCorrupt, fieldAttempts, raw)
		}
		record.Count = count
	}
	if raw, ok := fields[fieldLastAttempt]; ok {
		last, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || last < 0 {
			return AttemptRecord{}, fmt.Errorf("%w: %s=%q", ErrAttemptRecordCorrupt, fieldLastAttempt, raw)
		}
		record.LastAttempt = last
	}

	return record, nil
}

func (s *AttemptStore) Save(ctx context.Context, deviceID string, record AttemptRecord) error {
	key := s.key(deviceID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldAttempts, strconv.Itoa(record.Count),
			fieldLastAttempt, strconv.FormatInt(record.LastAttempt, 10),
		)
		if s.ttl > 0 {
			pipe.PExpire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAttemptRedisUnavailable, err)
	}
	return nil
}

func (s *AttemptStore) Clear(ctx context.Context, deviceID string) error {
	if err := s.redis.Del(ctx, s.key(deviceID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAttemptRedisUnavailable, err)
	}
	return nil
}
