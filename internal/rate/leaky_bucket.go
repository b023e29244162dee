// Package rate paces workload iterations.
package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// LeakyBucket schedules iterations at a fixed rate.
//
// The bucket tracks when the next iteration may start rather than how many
// tokens are available, so a rate change never releases a burst. When callers
// fall behind schedule, Next returns the current time and they run
// immediately, up to maxBurst iterations back to back.
//
// LeakyBucket is safe for concurrent use.
//
//	lb := rate.NewLeakyBucket(100, clockz.RealClock) // 100 iterations per second
//	for {
//	    if err := lb.Wait(ctx); err != nil {
//	        return err
//	    }
//	    // iteration
//	}
type LeakyBucket struct {
	clock clockz.Clock

	mu          sync.Mutex
	rate        float64 // iterations per second
	lastDrip    time.Time
	accumulated float64
	maxBurst    float64

	scheduled atomic.Int64
	waited    atomic.Int64
}

// NewLeakyBucket creates a bucket releasing rate iterations per second.
// Non-positive rates are raised to 1. The first iteration is released
// immediately.
func NewLeakyBucket(rate float64, clock clockz.Clock) *LeakyBucket {
	if rate <= 0 {
		rate = 1
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	return &LeakyBucket{
		clock:       clock,
		rate:        rate,
		lastDrip:    clock.Now(),
		accumulated: 1,
		maxBurst:    1,
	}
}

// Next reserves the next slot and returns when it starts. The time may be in
// the past if the caller is behind schedule.
func (lb *LeakyBucket) Next() time.Time {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	now := lb.clock.Now()
	if elapsed := now.Sub(lb.lastDrip).Seconds(); elapsed > 0 {
		lb.accumulated += elapsed * lb.rate
	}
	if lb.accumulated > lb.maxBurst {
		lb.accumulated = lb.maxBurst
	}
	lb.scheduled.Add(1)

	if lb.accumulated >= 1 {
		lb.accumulated--
		if now.After(lb.lastDrip) {
			lb.lastDrip = now
		}
		return now
	}

	// lastDrip moves to the reserved slot so waking up there does not
	// accumulate a second iteration.
	start := lb.lastDrip
	if now.After(start) {
		start = now
	}
	next := start.Add(time.Duration((1 - lb.accumulated) / lb.rate * float64(time.Second)))
	lb.accumulated = 0
	lb.lastDrip = next
	lb.waited.Add(int64(next.Sub(now)))
	return next
}

// Wait blocks until the next slot starts or ctx is done.
func (lb *LeakyBucket) Wait(ctx context.Context) error {
	d := lb.Next().Sub(lb.clock.Now())
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetRate changes the rate. Accumulated slack is dropped.
func (lb *LeakyBucket) SetRate(rate float64) {
	if rate <= 0 {
		rate = 1
	}
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.rate = rate
	lb.accumulated = 0
	lb.lastDrip = lb.clock.Now()
}

// Rate returns the current rate in iterations per second.
func (lb *LeakyBucket) Rate() float64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.rate
}

// SetMaxBurst sets how many iterations may run back to back after falling
// behind. Values below 1 are raised to 1.
func (lb *LeakyBucket) SetMaxBurst(burst float64) {
	if burst < 1 {
		burst = 1
	}
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.maxBurst = burst
}

// Stats contains counters about a bucket's operation.
type Stats struct {
	Rate      float64       `json:"rate"`
	Scheduled int64         `json:"scheduled"`
	Waited    time.Duration `json:"waited"`
}

// Stats returns the bucket's counters.
func (lb *LeakyBucket) Stats() Stats {
	return Stats{
		Rate:      lb.Rate(),
		Scheduled: lb.scheduled.Load(),
		Waited:    time.Duration(lb.waited.Load()),
	}
}
