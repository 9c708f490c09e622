package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock advances only when the limiter sleeps.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFake(limit int, period time.Duration) (*FixedWindow, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(limit, period)
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l, clock
}

func TestEleventhCallWaitsForWindow(t *testing.T) {
	l, clock := newFake(10, 60*time.Second)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := l.Acquire(ctx, "reddit"); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		clock.Advance(time.Second)
	}
	if len(clock.slept) != 0 {
		t.Fatalf("first 10 calls should not wait, slept %v", clock.slept)
	}

	// 10s into the window: the 11th call waits out the remaining 50s.
	if err := l.Acquire(ctx, "reddit"); err != nil {
		t.Fatalf("11th call: %v", err)
	}
	if len(clock.slept) != 1 || clock.slept[0] != 50*time.Second {
		t.Fatalf("slept = %v, want [50s]", clock.slept)
	}
	if got := l.Remaining("reddit"); got != 9 {
		t.Errorf("Remaining after rollover = %d, want 9", got)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, clock := newFake(1, time.Minute)
	ctx := context.Background()

	if err := l.Acquire(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := l.Acquire(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if len(clock.slept) != 0 {
		t.Errorf("different keys should not share a window, slept %v", clock.slept)
	}
}

func TestWindowResetsAfterPeriod(t *testing.T) {
	l, clock := newFake(2, time.Minute)
	ctx := context.Background()

	_ = l.Acquire(ctx, "k")
	_ = l.Acquire(ctx, "k")
	clock.Advance(time.Minute)

	if got := l.Remaining("k"); got != 2 {
		t.Errorf("Remaining = %d, want 2", got)
	}
	if err := l.Acquire(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if len(clock.slept) != 0 {
		t.Errorf("call after period should not wait, slept %v", clock.slept)
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	l := New(1, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Acquire(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	err := l.Acquire(ctx, "k")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Acquire did not return promptly on cancellation")
	}
}

func TestDisabledLimiter(t *testing.T) {
	var nilLimiter *FixedWindow
	if err := nilLimiter.Acquire(context.Background(), "k"); err != nil {
		t.Errorf("nil limiter: %v", err)
	}
	if got := nilLimiter.Remaining("k"); got != 0 {
		t.Errorf("nil limiter Remaining = %d, want 0", got)
	}
	l := New(0, time.Minute)
	for i := 0; i < 100; i++ {
		if err := l.Acquire(context.Background(), "k"); err != nil {
			t.Fatal(err)
		}
	}
	if got := l.Remaining("k"); got != 0 {
		t.Errorf("disabled limiter Remaining = %d, want 0", got)
	}
}

func TestConcurrentAcquireNeverExceedsLimit(t *testing.T) {
	l, clock := newFake(10, time.Minute)
	ctx := context.Background()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx, "shared"); err == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != 25 {
		t.Fatalf("admitted %d, want 25", admitted.Load())
	}
	// 25 calls at limit 10 need at least two rollovers.
	if len(clock.slept) < 2 {
		t.Errorf("expected at least 2 waits, got %d", len(clock.slept))
	}
}

func TestOnWaitReportsDelays(t *testing.T) {
	l, _ := newFake(1, time.Minute)
	var waits []string
	l.OnWait(func(key string, d time.Duration) {
		waits = append(waits, key+"="+d.String())
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx, "reddit"); err != nil {
			t.Fatal(err)
		}
	}
	if len(waits) != 1 || waits[0] != "reddit=1m0s" {
		t.Errorf("waits = %v, want [reddit=1m0s]", waits)
	}
}
