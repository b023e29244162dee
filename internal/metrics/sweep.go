package metrics

import "sync/atomic"

// sweepGate elects at most one goroutine per interval to run a periodic sweep.
// Losers return immediately and never wait for the winner.
type sweepGate struct {
	last  atomic.Int64
	every int64
}

func newSweepGate(now, every int64) *sweepGate {
	g := &sweepGate{every: every}
	g.last.Store(now)
	return g
}

// tryAcquire reports whether the caller won the sweep for the interval ending at now.
func (g *sweepGate) tryAcquire(now int64) bool {
	last := g.last.Load()
	if now <= last+g.every {
		return false
	}
	return g.last.CompareAndSwap(last, now)
}
