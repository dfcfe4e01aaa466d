package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the dual-window ceilings for outbound provider calls. The
// defaults mirror the upstream API contract: 3 requests/second and 100
// requests/minute.
type Config struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// DefaultConfig returns the published upstream limits.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerSecond: 3,
		RequestsPerMinute: 100,
	}
}

// Limiter enforces both ceilings over a sliding window of call timestamps.
// The timestamp list is the single shared mutable resource; every read and
// mutation of it happens under the mutex so two concurrent "is it safe"
// checks cannot race past a ceiling together.
type Limiter struct {
	config *Config
	logger *logrus.Logger

	mu         sync.Mutex
	timestamps []time.Time
	queue      []chan struct{}

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewLimiter creates a limiter with the given ceilings.
func NewLimiter(config *Config, logger *logrus.Logger) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	return &Limiter{
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// AcquireSlot blocks the calling goroutine until one outbound call is safe
// under both ceilings, then records the call timestamp. Waiters are queued
// and admitted strictly in arrival order; a newcomer never slips past an
// earlier waiter when a slot opens, because the fast path requires an empty
// queue. Cancelling the context abandons the wait without leaving a stale
// reservation — the timestamp is only recorded on admission.
func (l *Limiter) AcquireSlot(ctx context.Context) error {
	l.mu.Lock()
	if len(l.queue) == 0 {
		now := l.now()
		l.prune(now)
		if l.waitTime(now) <= 0 {
			l.timestamps = append(l.timestamps, now)
			l.mu.Unlock()
			return nil
		}
	}

	ready := make(chan struct{})
	l.queue = append(l.queue, ready)
	atHead := len(l.queue) == 1
	l.mu.Unlock()

	if atHead {
		close(ready)
	}

	select {
	case <-ready:
	case <-ctx.Done():
		l.abandon(ready)
		return ctx.Err()
	}

	// Head of the queue: sleep until the windows open, then admit and
	// promote the next waiter.
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		wait := l.waitTime(now)
		if wait <= 0 {
			l.timestamps = append(l.timestamps, now)
			l.queue = l.queue[1:]
			if len(l.queue) > 0 {
				close(l.queue[0])
			}
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		l.logger.WithField("wait_ms", wait.Milliseconds()).Debug("Rate limit reached, waiting for slot")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			l.abandon(ready)
			return ctx.Err()
		}
	}
}

// abandon removes a cancelled waiter from the queue. When the head leaves,
// the next waiter is promoted so the queue keeps draining.
func (l *Limiter) abandon(ready chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, ch := range l.queue {
		if ch == ready {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			if i == 0 && len(l.queue) > 0 {
				close(l.queue[0])
			}
			return
		}
	}
}

// prune drops timestamps older than the minute window. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}

// waitTime returns how long the caller must wait before a slot opens, or
// zero if one is free now. Caller holds the lock.
func (l *Limiter) waitTime(now time.Time) time.Duration {
	// Per-minute ceiling: wait for the oldest call to leave the window.
	if len(l.timestamps) >= l.config.RequestsPerMinute {
		oldest := l.timestamps[0]
		return time.Minute - now.Sub(oldest)
	}

	// Per-second ceiling: consecutive calls keep a minimum gap.
	if len(l.timestamps) > 0 {
		minGap := time.Second / time.Duration(l.config.RequestsPerSecond)
		last := l.timestamps[len(l.timestamps)-1]
		if gap := now.Sub(last); gap < minGap {
			return minGap - gap
		}
	}

	return 0
}

// InFlight returns the number of calls recorded in the trailing minute.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.timestamps)
}
