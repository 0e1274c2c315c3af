// Package ratelimit enforces the minimum wall-clock spacing between LLM calls.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter serializes callers and guarantees at least minInterval plus a
// uniform random jitter between consecutive Wait returns. Concurrent
// callers queue on the internal mutex, so the spacing holds across the
// whole process.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	jitterMax   time.Duration
	last        time.Time
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a limiter. Defaults are a 60 s floor with up to 5 s jitter.
func New(minInterval, jitterMax time.Duration) *Limiter {
	if minInterval <= 0 {
		minInterval = 60 * time.Second
	}
	if jitterMax < 0 {
		jitterMax = 0
	}
	return &Limiter{
		minInterval: minInterval,
		jitterMax:   jitterMax,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Wait blocks until minInterval (+jitter) has elapsed since the last
// successful Wait return. Returns early only if ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		target := l.minInterval
		if l.jitterMax > 0 {
			target += time.Duration(rand.Int63n(int64(l.jitterMax)))
		}
		if elapsed := l.now().Sub(l.last); elapsed < target {
			if err := l.sleep(ctx, target-elapsed); err != nil {
				return err
			}
		}
	}

	l.last = l.now()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
