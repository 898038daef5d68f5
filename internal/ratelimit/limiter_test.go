package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bkyoung/review-pipeline/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances simulated time whenever the limiter sleeps, so tests
// run instantly.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
	return nil
}

func TestAcquire_EnforcesMinInterval(t *testing.T) {
	clock := newFakeClock()
	limiter := ratelimit.New(100, time.Second)
	limiter.SetClock(clock.now, clock.sleep)

	ctx := context.Background()
	require.NoError(t, limiter.Acquire(ctx))
	first := clock.now()

	require.NoError(t, limiter.Acquire(ctx))
	second := clock.now()

	assert.GreaterOrEqual(t, second.Sub(first), time.Second)
}

func TestAcquire_EnforcesWindowCeiling(t *testing.T) {
	// maxRequestsPerMinute=2: the third back-to-back call must land at
	// least 60s after the first.
	clock := newFakeClock()
	limiter := ratelimit.New(2, time.Second)
	limiter.SetClock(clock.now, clock.sleep)

	ctx := context.Background()
	require.NoError(t, limiter.Acquire(ctx))
	first := clock.now()
	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))
	third := clock.now()

	assert.GreaterOrEqual(t, third.Sub(first), time.Minute)
}

func TestAcquire_NoWaitWhenUnderLimits(t *testing.T) {
	clock := newFakeClock()
	limiter := ratelimit.New(100, time.Second)
	limiter.SetClock(clock.now, clock.sleep)

	start := clock.now()
	require.NoError(t, limiter.Acquire(context.Background()))
	assert.Equal(t, start, clock.now(), "first acquire should not sleep")
}

func TestAcquire_ContextCancellation(t *testing.T) {
	clock := newFakeClock()
	limiter := ratelimit.New(100, time.Second)
	limiter.SetClock(clock.now, clock.sleep)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, limiter.Acquire(ctx))

	cancel()
	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquire_SerializesConcurrentCallers(t *testing.T) {
	clock := newFakeClock()
	limiter := ratelimit.New(100, time.Second)
	limiter.SetClock(clock.now, clock.sleep)

	start := clock.now()
	const callers = 5

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.Acquire(context.Background())
		}()
	}
	wg.Wait()

	// All five callers went through the critical section one at a time,
	// each paying the minimum interval after the first.
	elapsed := clock.now().Sub(start)
	assert.GreaterOrEqual(t, elapsed, (callers-1)*time.Second)
}

func TestReset(t *testing.T) {
	clock := newFakeClock()
	limiter := ratelimit.New(2, time.Second)
	limiter.SetClock(clock.now, clock.sleep)

	ctx := context.Background()
	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))

	limiter.Reset()
	before := clock.now()
	require.NoError(t, limiter.Acquire(ctx))
	assert.Equal(t, before, clock.now(), "reset limiter should not wait")
}
