package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSameKeyIsExclusive(t *testing.T) {
	l := New(time.Second)
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), "k", func() error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
	if len(l.entries) != 0 {
		t.Fatalf("entries should be released, got %d", len(l.entries))
	}
}

func TestDifferentKeysDoNotWait(t *testing.T) {
	l := New(50 * time.Millisecond)
	release, err := l.Acquire(context.Background(), AttendanceKey("5", "A", "2024-06-01"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	if err := l.WithLock(context.Background(), AttendanceKey("5", "B", "2024-06-01"), func() error { return nil }); err != nil {
		t.Fatalf("unrelated key should not block: %v", err)
	}
}

func TestTimeout(t *testing.T) {
	var observed atomic.Int32
	l := New(20*time.Millisecond, WithObserver(func(key string, _ time.Duration, ok bool) {
		if !ok {
			observed.Add(1)
		}
	}))
	release, err := l.Acquire(context.Background(), FeesKey("A1"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	_, err = l.Acquire(context.Background(), FeesKey("A1"))
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if observed.Load() != 1 {
		t.Fatalf("observer should see the failed wait")
	}
	release()
	release() // second call is a no-op

	again, err := l.Acquire(context.Background(), FeesKey("A1"))
	if err != nil {
		t.Fatalf("lock should be free after release: %v", err)
	}
	again()
}

func TestContextCancel(t *testing.T) {
	l := New(time.Minute)
	release, _ := l.Acquire(context.Background(), "k")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
