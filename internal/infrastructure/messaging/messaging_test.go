package messaging

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alem-hub/progress-hub/internal/domain/shared"
	"github.com/alem-hub/progress-hub/pkg/logger"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

func recomputed(valid bool) shared.Event {
	return shared.NewSummaryRecomputedEvent("s-1", timeutil.Date(2026, 10, 16), 52, valid)
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventSummaryRecomputed, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return nil }))

	require.NoError(t, bus.Publish(recomputed(true)))
	require.NoError(t, bus.Publish(shared.NewStudentRegisteredEvent("s-1")))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.HandlerExecutions)
	assert.Zero(t, snap.HandlerFailures)
}

func TestInMemoryEventBus_AsyncCloseWaitsForHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var done atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		done.Add(1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(recomputed(true)))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(5), done.Load())
	assert.ErrorIs(t, bus.Publish(recomputed(true)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})

	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventBadgeUnlocked, nil))
}

func newDispatcher(t *testing.T) (*Dispatcher, *InMemoryEventBus) {
	t.Helper()
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	d := NewDispatcher(DispatcherConfig{
		Bus:         bus,
		RetryConfig: RetryConfig{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	})
	require.NoError(t, d.Start())
	t.Cleanup(d.Stop)
	return d, bus
}

func TestDispatcher_RetriesRetryableErrors(t *testing.T) {
	d, bus := newDispatcher(t)

	var calls int
	require.NoError(t, d.Register(shared.EventSummaryRecomputed, "flaky", func(shared.Event) error {
		calls++
		if calls < 3 {
			return shared.ErrDayLockContended
		}
		return nil
	}))

	require.NoError(t, bus.Publish(recomputed(true)))

	assert.Equal(t, 3, calls)
	assert.Zero(t, d.DeadLetterQueue().Size())
}

func TestDispatcher_PermanentErrorGoesToDeadLetters(t *testing.T) {
	d, _ := newDispatcher(t)

	var calls int
	boom := errors.New("boom")
	require.NoError(t, d.Register(shared.EventSummaryRecomputed, "broken", func(shared.Event) error {
		calls++
		return boom
	}))

	err := d.Dispatch(recomputed(true))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "broken", entries[0].HandlerName)
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d, _ := newDispatcher(t)
	require.NoError(t, d.Register(shared.EventBadgeUnlocked, "panicky", func(shared.Event) error {
		panic("nil map")
	}))

	err := d.Dispatch(shared.NewBadgeUnlockedEvent("s-1", "7 Day Survivor", 7))

	assert.ErrorIs(t, err, ErrHandlerPanic)
}

func TestDispatcher_RegisterValidates(t *testing.T) {
	d, _ := newDispatcher(t)

	assert.Error(t, d.Register(shared.EventBadgeUnlocked, "", func(shared.Event) error { return nil }))
	assert.Error(t, d.Register(shared.EventBadgeUnlocked, "nil", nil))
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mw := LoggingMiddleware(logger.FromZap(zap.New(core)))

	_ = mw(func(shared.Event) error { return nil })(recomputed(true))
	_ = mw(func(shared.Event) error { return errors.New("nope") })(recomputed(false))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "handler completed", logs.All()[0].Message)
	assert.Equal(t, "handler failed", logs.All()[1].Message)
	assert.Equal(t, "s-1", logs.All()[1].ContextMap()["aggregate_id"])
}
