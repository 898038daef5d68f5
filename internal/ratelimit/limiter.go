// Package ratelimit throttles outbound model calls to a configured ceiling.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const window = time.Minute

// Default limits applied when a caller passes non-positive values.
const (
	DefaultMaxPerWindow = 30
	DefaultMinInterval  = time.Second
)

// Limiter enforces two independent constraints on every call: at most
// maxPerWindow calls in any trailing 60-second window, and at least
// minInterval between consecutive calls.
//
// Acquire holds the limiter's lock for the full wait, so concurrent callers
// are serialized: two goroutines can never both observe "under capacity"
// and proceed together. The limiter is the only shared mutable state in the
// pipeline and is safe for concurrent use.
type Limiter struct {
	mu           sync.Mutex
	maxPerWindow int
	minInterval  time.Duration
	lastCall     time.Time
	history      []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a limiter. Non-positive arguments fall back to the package
// defaults.
func New(maxPerWindow int, minInterval time.Duration) *Limiter {
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultMaxPerWindow
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Limiter{
		maxPerWindow: maxPerWindow,
		minInterval:  minInterval,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// SetClock replaces the time source and sleep function (for testing).
func (l *Limiter) SetClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	l.sleep = sleep
}

// Acquire blocks until it is safe to issue one more call, then records the
// call. It never fails on its own; the only error it can return is the
// context's, when the caller is cancelled mid-wait.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Trailing-window constraint: drop entries older than 60s and, at
	// capacity, wait for the oldest entry to exit the window.
	for {
		now := l.now()
		l.prune(now)
		if len(l.history) < l.maxPerWindow {
			break
		}
		wait := window - now.Sub(l.history[0])
		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}

	// Minimum-interval constraint between any two consecutive calls.
	if !l.lastCall.IsZero() {
		if wait := l.minInterval - l.now().Sub(l.lastCall); wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	// Record only after both waits are satisfied.
	stamp := l.now()
	l.lastCall = stamp
	l.history = append(l.history, stamp)
	return nil
}

// Reset clears all recorded call history. Only for explicit resets; the
// limiter never forgets state on its own apart from window expiry.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastCall = time.Time{}
	l.history = nil
}

func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-window)
	idx := 0
	for idx < len(l.history) && !l.history[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.history = append(l.history[:0], l.history[idx:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
