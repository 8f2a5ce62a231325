// Package concurrency bounds how many units the task adapter keeps in
// flight at once and loads suite-wide concurrency settings from the
// environment.
package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks limiter performance metrics
type Metrics struct {
	TotalAcquired   int64
	TotalReleased   int64
	PeakConcurrent  int64
	TotalWaitTimeNs int64
	mu              sync.RWMutex
}

// Limiter provides semaphore-based concurrency control with observability
type Limiter struct {
	sem     chan struct{}
	active  int64
	metrics *Metrics
}

// NewLimiter creates a new limiter with the specified maximum concurrent operations
func NewLimiter(maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &Limiter{
		sem:     make(chan struct{}, maxConcurrent),
		active:  0,
		metrics: &Metrics{},
	}
}

// Acquire attempts to acquire a slot in the limiter with context support.
// Returns an error if the context is cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()

	select {
	case l.sem <- struct{}{}:
		waitTime := time.Since(start)
		atomic.AddInt64(&l.metrics.TotalWaitTimeNs, waitTime.Nanoseconds())
		atomic.AddInt64(&l.metrics.TotalAcquired, 1)

		current := atomic.AddInt64(&l.active, 1)
		l.updatePeak(current)

		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a slot back to the limiter
func (l *Limiter) Release() {
	select {
	case <-l.sem:
		atomic.AddInt64(&l.active, -1)
		atomic.AddInt64(&l.metrics.TotalReleased, 1)
	default:
		// Should not happen in correct usage
	}
}

// CurrentActive returns the current number of active slots
func (l *Limiter) CurrentActive() int64 {
	return atomic.LoadInt64(&l.active)
}

// GetMetrics returns a copy of the current metrics
func (l *Limiter) GetMetrics() Metrics {
	l.metrics.mu.RLock()
	defer l.metrics.mu.RUnlock()

	return Metrics{
		TotalAcquired:   atomic.LoadInt64(&l.metrics.TotalAcquired),
		TotalReleased:   atomic.LoadInt64(&l.metrics.TotalReleased),
		PeakConcurrent:  atomic.LoadInt64(&l.metrics.PeakConcurrent),
		TotalWaitTimeNs: atomic.LoadInt64(&l.metrics.TotalWaitTimeNs),
	}
}

// GetAverageWaitTime calculates the average wait time for acquiring a slot
func (l *Limiter) GetAverageWaitTime() time.Duration {
	metrics := l.GetMetrics()
	if metrics.TotalAcquired == 0 {
		return 0
	}

	avgNs := metrics.TotalWaitTimeNs / metrics.TotalAcquired
	return time.Duration(avgNs)
}

// Reset resets the metrics (useful for testing or periodic resets)
func (l *Limiter) Reset() {
	atomic.StoreInt64(&l.metrics.TotalAcquired, 0)
	atomic.StoreInt64(&l.metrics.TotalReleased, 0)
	atomic.StoreInt64(&l.metrics.PeakConcurrent, 0)
	atomic.StoreInt64(&l.metrics.TotalWaitTimeNs, 0)
}

// updatePeak updates the peak concurrent count if current is higher
func (l *Limiter) updatePeak(current int64) {
	for {
		peak := atomic.LoadInt64(&l.metrics.PeakConcurrent)
		if current <= peak {
			break
		}
		if atomic.CompareAndSwapInt64(&l.metrics.PeakConcurrent, peak, current) {
			break
		}
	}
}
