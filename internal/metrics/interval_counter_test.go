package metrics

import (
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

func TestIntervalCounter_SingleBucket(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := NewIntervalCounter(time.Second, 60, clock)

	c.Increment(1)
	c.Increment(2)

	assert.Equal(t, int64(3), c.Count(time.Minute))
	assert.Equal(t, 1, c.Buckets())
}

func TestIntervalCounter_ConcurrentIncrements(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := NewIntervalCounter(time.Second, 60, clock)

	const goroutines, perGoroutine = 16, 1000
	var wg conc.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Go(func() {
			for j := 0; j < perGoroutine; j++ {
				c.Increment(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*perGoroutine), c.Count(time.Minute))
	assert.Equal(t, 1, c.Buckets(), "racing creators share one bucket")
}

func TestIntervalCounter_WindowCount(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := NewIntervalCounter(time.Second, 60, clock)

	for i := 0; i < 10; i++ {
		c.Increment(1)
		clock.Advance(time.Second)
	}

	assert.Equal(t, int64(10), c.Count(time.Minute))
	assert.Equal(t, int64(4), c.Count(4*time.Second), "floors in [now-4s, now]")
	assert.Equal(t, int64(0), c.Count(0))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, int64(0), c.Count(time.Minute), "aged out of the window")
}

func TestIntervalCounter_BoundedBuckets(t *testing.T) {
	clock := clockz.NewFakeClock()
	const maxIntervals = 10
	c := NewIntervalCounter(time.Second, maxIntervals, clock)

	for i := 0; i < 1000; i++ {
		c.Increment(1)
		clock.Advance(time.Second)
		// Cleanup runs every horizon/4, so a few extra buckets may exist
		// between sweeps.
		require.LessOrEqual(t, c.Buckets(), maxIntervals+maxIntervals/4+2)
	}

	assert.LessOrEqual(t, c.Total(), int64(maxIntervals+1))
}

func TestIntervalCounter_SparseTraffic(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := NewIntervalCounter(time.Second, 10, clock)

	c.Increment(1)
	clock.Advance(time.Hour)
	c.Increment(1)

	assert.Equal(t, 1, c.Buckets(), "expired bucket removed on the next write")
	assert.Equal(t, int64(1), c.Total())
}

func TestIntervalCounter_Defaults(t *testing.T) {
	c := NewIntervalCounter(0, 0, nil)

	assert.Equal(t, time.Duration(1), c.Width())
	assert.Equal(t, 1, c.MaxIntervals())
	assert.Equal(t, time.Duration(1), c.Horizon())
}

func TestIntervalCounter_Floor(t *testing.T) {
	c := &IntervalCounter{anchor: 100, width: 10}

	tests := []struct {
		now, want int64
	}{
		{100, 100},
		{109, 100},
		{110, 110},
		{99, 90},
		{90, 90},
		{81, 80},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.floor(tt.now), "floor(%d)", tt.now)
	}
}

func TestSweepGate(t *testing.T) {
	g := newSweepGate(0, 10)

	assert.False(t, g.tryAcquire(5))
	assert.False(t, g.tryAcquire(10))
	assert.True(t, g.tryAcquire(11))
	assert.False(t, g.tryAcquire(12), "interval restarts at the winner's time")
	assert.True(t, g.tryAcquire(22))
}
