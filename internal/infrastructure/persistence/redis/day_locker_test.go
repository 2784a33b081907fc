package redis

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

var day = timeutil.Date(2026, 10, 16)

func newLocker(t *testing.T, cfg DayLockerConfig) (*DayLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewDayLocker(Wrap(rdb, "test:"), cfg, nil), mr
}

func TestNewClient_PingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Port = port

	client, err := NewClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "progress:lock:x", client.Key(PrefixLock, "x"))
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 1
	cfg.ConnectAttempts = 1
	cfg.DialTimeout = 100 * time.Millisecond

	_, err := NewClient(context.Background(), cfg, nil)

	assert.ErrorIs(t, err, ErrConnection)
}

func TestDayLocker_AcquireAndRelease(t *testing.T) {
	l, mr := newLocker(t, DayLockerConfig{})
	key := l.DayLockKey("s-1", day)
	assert.Equal(t, "test:lock:day:s-1:2026-10-16", key)

	unlock, err := l.Lock(context.Background(), "s-1", day)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 10*time.Second, mr.TTL(key))

	unlock()
	unlock()
	assert.False(t, mr.Exists(key))
}

func TestDayLocker_Serializes(t *testing.T) {
	l, _ := newLocker(t, DayLockerConfig{RetryInterval: time.Millisecond})

	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "s-1", day)
			if !assert.NoError(t, err) {
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load())
}

func TestDayLocker_ContendedGivesUp(t *testing.T) {
	l, _ := newLocker(t, DayLockerConfig{RetryInterval: time.Millisecond, MaxWait: 20 * time.Millisecond})

	unlock, err := l.Lock(context.Background(), "s-1", day)
	require.NoError(t, err)
	defer unlock()

	_, err = l.Lock(context.Background(), "s-1", day)

	assert.ErrorIs(t, err, shared.ErrDayLockContended)
	assert.ErrorIs(t, err, shared.ErrLockNotAcquired)
	assert.True(t, shared.IsRetryable(err))
}

func TestDayLocker_OtherDaysIndependent(t *testing.T) {
	l, _ := newLocker(t, DayLockerConfig{MaxWait: 20 * time.Millisecond})

	unlock, err := l.Lock(context.Background(), "s-1", day)
	require.NoError(t, err)
	defer unlock()

	other, err := l.Lock(context.Background(), "s-1", timeutil.AddDays(day, 1))
	require.NoError(t, err)
	other()

	other, err = l.Lock(context.Background(), "s-2", day)
	require.NoError(t, err)
	other()
}

func TestDayLocker_StaleReleaseKeepsSuccessorLock(t *testing.T) {
	l, mr := newLocker(t, DayLockerConfig{TTL: time.Second})
	key := l.DayLockKey("s-1", day)

	stale, err := l.Lock(context.Background(), "s-1", day)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := l.Lock(context.Background(), "s-1", day)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists(key))

	fresh()
	assert.False(t, mr.Exists(key))
}
