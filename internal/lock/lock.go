// Package lock provides advisory mutual exclusion keyed by resource name.
//
// Holders of different keys never wait on each other. A waiter gives up when
// its context ends or when the locker's bounded wait elapses.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultTimeout is the bounded wait used when none is configured.
const DefaultTimeout = 10 * time.Second

var ErrLockTimeout = errors.New("timed out waiting for lock")

// WaitObserver receives the time spent waiting for each acquisition attempt.
type WaitObserver func(key string, waited time.Duration, acquired bool)

type entry struct {
	slot chan struct{}
	refs int
}

type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
	observe WaitObserver
}

type Option func(*Locker)

// WithObserver installs a wait-time observer.
func WithObserver(o WaitObserver) Option {
	return func(l *Locker) { l.observe = o }
}

func New(timeout time.Duration, opts ...Option) *Locker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	l := &Locker{entries: make(map[string]*entry), timeout: timeout}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Acquire blocks until key is held, ctx ends, or the timeout elapses.
// The returned release func must be called exactly once.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	e := l.ref(key)
	start := time.Now()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case e.slot <- struct{}{}:
		l.report(key, time.Since(start), true)
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.slot
				l.unref(key, e)
			})
		}, nil
	case <-timer.C:
		l.unref(key, e)
		l.report(key, time.Since(start), false)
		return nil, fmt.Errorf("%w %q after %s", ErrLockTimeout, key, l.timeout)
	case <-ctx.Done():
		l.unref(key, e)
		l.report(key, time.Since(start), false)
		return nil, ctx.Err()
	}
}

// WithLock runs fn while holding key.
func (l *Locker) WithLock(ctx context.Context, key string, fn func() error) error {
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// Timeout returns the configured bounded wait.
func (l *Locker) Timeout() time.Duration { return l.timeout }

func (l *Locker) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{slot: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *Locker) report(key string, d time.Duration, ok bool) {
	if l.observe != nil {
		l.observe(key, d, ok)
	}
}

// Key helpers for the resources the services serialize on.

func AttendanceKey(class, section, date string) string {
	return "attendance/" + class + "/" + section + "/" + date
}

func StaffAttendanceKey(date string) string { return "staff-attendance/" + date }

func FeesKey(admissionNo string) string { return "fees/" + admissionNo }

// TableKey serializes writers of a whole table, e.g. for sequential IDs or upserts by scan.
func TableKey(table string) string { return "table/" + table }
