package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

func TestNewLeakyBucket(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		expected float64
	}{
		{"positive rate", 100, 100},
		{"zero rate defaults to 1", 0, 1},
		{"negative rate defaults to 1", -10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewLeakyBucket(tt.rate, clockz.NewFakeClock()).Rate())
		})
	}
}

func TestLeakyBucket_Schedule(t *testing.T) {
	clock := clockz.NewFakeClock()
	lb := NewLeakyBucket(100, clock) // 10ms apart
	start := clock.Now()

	assert.Equal(t, start, lb.Next(), "first slot is immediate")
	assert.Equal(t, start.Add(10*time.Millisecond), lb.Next())
	assert.Equal(t, start.Add(20*time.Millisecond), lb.Next())

	stats := lb.Stats()
	assert.Equal(t, int64(3), stats.Scheduled)
	assert.Equal(t, 30*time.Millisecond, stats.Waited)
}

func TestLeakyBucket_NoDoubleCountAfterSleep(t *testing.T) {
	clock := clockz.NewFakeClock()
	lb := NewLeakyBucket(100, clock)
	start := clock.Now()

	lb.Next()
	next := lb.Next()
	clock.Advance(next.Sub(clock.Now()))

	assert.Equal(t, start.Add(20*time.Millisecond), lb.Next(), "waking at the slot does not release an extra one")
}

func TestLeakyBucket_BehindSchedule(t *testing.T) {
	clock := clockz.NewFakeClock()
	lb := NewLeakyBucket(10, clock)
	lb.SetMaxBurst(3)
	lb.Next()

	clock.Advance(time.Second)
	now := clock.Now()

	for i := 0; i < 3; i++ {
		assert.Equal(t, now, lb.Next(), "burst slot %d", i)
	}
	assert.True(t, lb.Next().After(now), "burst is capped")
}

func TestLeakyBucket_SetRate(t *testing.T) {
	clock := clockz.NewFakeClock()
	lb := NewLeakyBucket(1, clock)
	lb.Next()

	lb.SetRate(1000)
	assert.Equal(t, 1000.0, lb.Rate())
	assert.Equal(t, clock.Now().Add(time.Millisecond), lb.Next())
}

func TestLeakyBucket_WaitRespectsContext(t *testing.T) {
	lb := NewLeakyBucket(1, nil)
	require.NoError(t, lb.Wait(context.Background()), "first slot is immediate")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	started := time.Now()
	err := lb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
}
