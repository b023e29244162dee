package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// IntervalCounter counts events in fixed-width time buckets.
//
// Each bucket is keyed by its interval floor:
//
//	floor = anchor + floor((now-anchor)/width) * width
//
// Buckets older than the retention horizon (width * maxIntervals) are removed
// by a cooperative cleanup that runs from Increment at most once per cleanup
// interval (horizon / 4). Increment never blocks: bucket creation is a
// LoadOrStore on a sync.Map, so two goroutines racing to create the same floor
// end up adding to the same counter.
//
// Width and maxIntervals are fixed at construction; reconfiguration replaces
// the whole counter.
type IntervalCounter struct {
	clock clockz.Clock

	anchor       int64
	width        int64
	maxIntervals int64
	horizon      int64

	buckets sync.Map // int64 floor -> *atomic.Int64
	live    atomic.Int64
	cleanup *sweepGate
}

// NewIntervalCounter creates a counter with buckets of the given width that
// retains maxIntervals buckets. Non-positive arguments are raised to 1.
func NewIntervalCounter(width time.Duration, maxIntervals int, clock clockz.Clock) *IntervalCounter {
	if width <= 0 {
		width = 1
	}
	if maxIntervals <= 0 {
		maxIntervals = 1
	}
	if clock == nil {
		clock = clockz.RealClock
	}

	now := clock.Now().UnixNano()
	horizon := int64(width) * int64(maxIntervals)
	every := horizon / 4
	if every <= 0 {
		every = 1
	}

	return &IntervalCounter{
		clock:        clock,
		anchor:       now,
		width:        int64(width),
		maxIntervals: int64(maxIntervals),
		horizon:      horizon,
		cleanup:      newSweepGate(now, every),
	}
}

// Increment adds by to the bucket covering the current time.
func (c *IntervalCounter) Increment(by int64) {
	now := c.clock.Now().UnixNano()
	c.bucket(c.floor(now)).Add(by)
	c.maybeCleanup(now)
}

// bucket returns the counter for floor, creating it if needed. When two
// goroutines race to create the same floor exactly one insertion wins and
// both get the winner's counter.
func (c *IntervalCounter) bucket(floor int64) *atomic.Int64 {
	if v, ok := c.buckets.Load(floor); ok {
		return v.(*atomic.Int64)
	}
	v, loaded := c.buckets.LoadOrStore(floor, new(atomic.Int64))
	if !loaded {
		c.live.Add(1)
	}
	return v.(*atomic.Int64)
}

// Count returns the number of events recorded in buckets whose floor lies in
// [now-since, now]. A bucket that straddles the lower bound is counted only if
// its floor is inside the range, so resolution is one bucket width.
func (c *IntervalCounter) Count(since time.Duration) int64 {
	now := c.clock.Now().UnixNano()
	lower := now - int64(since)

	var total int64
	c.buckets.Range(func(k, v any) bool {
		floor := k.(int64)
		if floor >= lower && floor <= now {
			total += v.(*atomic.Int64).Load()
		}
		return true
	})
	return total
}

// Total returns the number of events within the retention horizon.
func (c *IntervalCounter) Total() int64 {
	return c.Count(time.Duration(c.horizon))
}

// Buckets returns the number of live buckets.
func (c *IntervalCounter) Buckets() int {
	return int(c.live.Load())
}

// Width returns the bucket width.
func (c *IntervalCounter) Width() time.Duration {
	return time.Duration(c.width)
}

// MaxIntervals returns the number of buckets retained.
func (c *IntervalCounter) MaxIntervals() int {
	return int(c.maxIntervals)
}

// Horizon returns the retention horizon.
func (c *IntervalCounter) Horizon() time.Duration {
	return time.Duration(c.horizon)
}

func (c *IntervalCounter) floor(now int64) int64 {
	d := now - c.anchor
	q := d / c.width
	if d < 0 && d%c.width != 0 {
		q--
	}
	return c.anchor + q*c.width
}

func (c *IntervalCounter) maybeCleanup(now int64) {
	if !c.cleanup.tryAcquire(now) {
		return
	}
	c.sweep(now)
}

// sweep removes expired buckets smallest floor first. It stops as soon as a
// removal is lost to another goroutine; the next sweep winner resumes.
// At most maxIntervals+1 candidates are considered per sweep.
func (c *IntervalCounter) sweep(now int64) {
	cutoff := now - c.horizon

	var expired []int64
	c.buckets.Range(func(k, _ any) bool {
		if floor := k.(int64); floor < cutoff {
			expired = append(expired, floor)
		}
		return true
	})
	slices.Sort(expired)
	if limit := int(c.maxIntervals) + 1; len(expired) > limit {
		expired = expired[:limit]
	}

	for _, floor := range expired {
		if _, ok := c.buckets.LoadAndDelete(floor); !ok {
			return
		}
		c.live.Add(-1)
	}
}
