package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrConfirmationRateLimited = errors.New("confirmation rate limited")
	ErrAttemptStoreUnavailable = errors.New("attempt store unavailable")
)

// AttemptRecord mirrors the persisted per-device counter. LastAttempt is
// epoch milliseconds.
type AttemptRecord struct {
	Count       int
	LastAttempt int64
}

func (r AttemptRecord) empty() bool {
	return r.Count == 0 && r.LastAttempt == 0
}

// AttemptBackend persists attempt records keyed by device.
type AttemptBackend interface {
	Load(ctx context.Context, deviceID string) (AttemptRecord, error)
	Save(ctx context.Context, deviceID string, record AttemptRecord) error
	Clear(ctx context.Context, deviceID string) error
}

type ConfirmationConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// ConfirmationLimiter applies the fixed attempt cap with a sliding reset: a
// record whose last failure is older than Window is discarded on the next
// read. Reads and writes are not atomic; concurrent tabs may lose an update.
type ConfirmationLimiter struct {
	backend AttemptBackend
	config  ConfirmationConfig
	now     func() time.Time
}

func NewConfirmationLimiter(backend AttemptBackend, cfg ConfirmationConfig, now func() time.Time) *ConfirmationLimiter {
	if now == nil {
		now = time.Now
	}
	return &ConfirmationLimiter{
		backend: backend,
		config:  cfg,
		now:     now,
	}
}

// Check returns ErrConfirmationRateLimited once the device reached
// MaxAttempts inside the window. It never records an attempt.
func (l *ConfirmationLimiter) Check(ctx context.Context, deviceID string) (AttemptRecord, error) {
	record, err := l.current(ctx, deviceID)
	if err != nil {
		return AttemptRecord{}, err
	}
	if record.Count >= l.config.MaxAttempts {
		return record, ErrConfirmationRateLimited
	}
	return record, nil
}

// RecordFailure adds exactly one failed attempt stamped with the current time.
func (l *ConfirmationLimiter) RecordFailure(ctx context.Context, deviceID string) (AttemptRecord, error) {
	record, err := l.current(ctx, deviceID)
	if err != nil {
		return AttemptRecord{}, err
	}

	record.Count++
	record.LastAttempt = l.now().UnixMilli()
	if err := l.backend.Save(ctx, deviceID, record); err != nil {
		return AttemptRecord{}, fmt.Errorf("%w: %v", ErrAttemptStoreUnavailable, err)
	}
	return record, nil
}

// Reset removes the device's record.
func (l *ConfirmationLimiter) Reset(ctx context.Context, deviceID string) error {
	if err := l.backend.Clear(ctx, deviceID); err != nil {
		return fmt.Errorf("%w: %v", ErrAttemptStoreUnavailable, err)
	}
	return nil
}

func (l *ConfirmationLimiter) current(ctx context.Context, deviceID string) (AttemptRecord, error) {
	record, err := l.backend.Load(ctx, deviceID)
	if err != nil {
		return AttemptRecord{}, fmt.Errorf("%w: %v", ErrAttemptStoreUnavailable, err)
	}
	if record.empty() {
		return record, nil
	}

	if l.now().UnixMilli()-record.LastAttempt > l.config.Window.Milliseconds() {
		if err := l.backend.Clear(ctx, deviceID); err != nil {
			return AttemptRecord{}, fmt.Errorf("%w: %v", ErrAttemptStoreUnavailable, err)
		}
		return AttemptRecord{}, nil
	}
	return record, nil
}
