package memory

import (
	"context"
	"sync"
	"time"
)

// DayLocker is an in-process keyed mutex over (student, day).
// Entries are reference counted and removed once nobody holds or waits for them.
type DayLocker struct {
	mu    sync.Mutex
	locks map[dayKey]*dayLock
}

type dayLock struct {
	ch   chan struct{}
	refs int
}

// NewDayLocker creates a DayLocker.
func NewDayLocker() *DayLocker {
	return &DayLocker{locks: make(map[dayKey]*dayLock)}
}

// Lock waits for the (student, day) slot or returns ctx.Err().
func (l *DayLocker) Lock(ctx context.Context, studentID string, day time.Time) (func(), error) {
	key := keyOf(studentID, day)

	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &dayLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.release(key, lk)
		})
	}, nil
}

func (l *DayLocker) release(key dayKey, lk *dayLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

// held returns the number of tracked keys. Used by tests.
func (l *DayLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
