package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/logger"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAY LOCKER
// SET NX PX with a random token; release deletes the key only while it still
// holds our token, so an expired holder never frees a successor's lock.
// ══════════════════════════════════════════════════════════════════════════════

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DayLockerConfig configures DayLocker.
type DayLockerConfig struct {
	// TTL bounds how long a crashed holder can block a day.
	TTL time.Duration

	// RetryInterval is the delay between acquire attempts.
	RetryInterval time.Duration

	// MaxWait gives up with shared.ErrDayLockContended. Zero waits until ctx is done.
	MaxWait time.Duration
}

// DefaultDayLockerConfig returns the default locker configuration.
func DefaultDayLockerConfig() DayLockerConfig {
	return DayLockerConfig{
		TTL:           10 * time.Second,
		RetryInterval: 25 * time.Millisecond,
		MaxWait:       5 * time.Second,
	}
}

// DayLocker implements progress.DayLocker on Redis.
type DayLocker struct {
	client *Client
	config DayLockerConfig
	logger *logger.Logger
}

// NewDayLocker creates a new DayLocker.
func NewDayLocker(client *Client, config DayLockerConfig, log *logger.Logger) *DayLocker {
	def := DefaultDayLockerConfig()
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = def.RetryInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DayLocker{
		client: client,
		config: config,
		logger: log.With(logger.Component("day_locker")),
	}
}

// DayLockKey returns the lock key for one (student, day).
func (l *DayLocker) DayLockKey(studentID string, day time.Time) string {
	return l.client.Key(PrefixLock, "day:", studentID, ":", timeutil.FormatDateStr(day))
}

// Lock blocks until the day is held, MaxWait elapses or ctx is done.
func (l *DayLocker) Lock(ctx context.Context, studentID string, day time.Time) (func(), error) {
	key := l.DayLockKey(studentID, day)
	token := uuid.NewString()

	waitCtx := ctx
	if l.config.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.config.MaxWait)
		defer cancel()
	}

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.rdb.SetNX(waitCtx, key, token, l.config.TTL).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, shared.WrapError("progress", "Lock", shared.ErrServiceUnavailable, "redis unavailable", err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, shared.WrapError("progress", "Lock", shared.ErrLockNotAcquired, "lock wait cancelled", err)
			}
			l.logger.Warn("day lock contended", logger.StudentID(studentID), logger.Day(day))
			return nil, shared.ErrDayLockContended
		case <-ticker.C:
		}
	}
}

func (l *DayLocker) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			if err := releaseScript.Run(ctx, l.client.rdb, []string{key}, token).Err(); err != nil {
				l.logger.Warn("failed to release day lock", logger.String("key", key), logger.Err(err))
			}
		})
	}
}
