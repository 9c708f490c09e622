// Package ratelimit provides a keyed fixed-window limiter for outbound calls
// to upstreams that publish a request quota.
//
// Exhausting a window is not an error: Acquire blocks until the window
// rolls over. Only context cancellation makes it fail.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int
	start time.Time
}

// FixedWindow admits at most limit acquisitions per key in each window.
type FixedWindow struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	windows map[string]*window

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	onWait func(key string, d time.Duration)
}

// New creates a limiter allowing limit calls per key every period.
// A non-positive limit disables limiting.
func New(limit int, period time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// OnWait registers fn to be called each time Acquire has to wait for key's
// window to roll over. It must be set before the limiter is shared.
func (l *FixedWindow) OnWait(fn func(key string, d time.Duration)) {
	l.onWait = fn
}

// Acquire blocks until a request for key fits in the current window.
func (l *FixedWindow) Acquire(ctx context.Context, key string) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := l.reserve(key)
		if wait <= 0 {
			return nil
		}
		if l.onWait != nil {
			l.onWait(key, wait)
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// reserve takes a slot and returns 0, or returns how long until the
// window for key rolls over.
func (l *FixedWindow) reserve(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok {
		w = &window{start: now}
		l.windows[key] = w
	}
	if elapsed := now.Sub(w.start); elapsed >= l.period {
		w.count = 0
		w.start = now
	}
	if w.count < l.limit {
		w.count++
		return 0
	}
	return l.period - now.Sub(w.start)
}

// Remaining reports how many calls key may still make in its current window.
// A nil limiter reports 0, as does one with limiting disabled.
func (l *FixedWindow) Remaining(key string) int {
	if l == nil || l.limit <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().Sub(w.start) >= l.period {
		return l.limit
	}
	return l.limit - w.count
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
