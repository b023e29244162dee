package perflog

import (
	"context"
	"time"

	"github.com/wesleyorama2/perflog/internal/metrics"
)

// ForcedFlushThreshold is the local map size above which Start flushes a
// worker's non-in-flight entries.
const ForcedFlushThreshold = 100

// localTimer is one worker-local entry: an in-flight start time and/or a
// partial statistic waiting to be merged into the shared registry.
type localTimer struct {
	start    time.Time
	inFlight bool
	partial  *metrics.Aggregate
}

// Worker is the per-goroutine timer tracker. It maps operation ids to
// in-flight start times so concurrent Start calls on different goroutines
// never interfere.
//
// A Worker must not be shared between goroutines.
type Worker struct {
	engine *Engine
	timers map[string]*localTimer
	active int
}

// Worker returns a new timer tracker bound to e. Create one per goroutine.
func (e *Engine) Worker() *Worker {
	return &Worker{
		engine: e,
		timers: make(map[string]*localTimer),
	}
}

// Start begins timing id, overwriting any in-flight timer for the same id.
// It returns false if the engine is disabled or id is empty.
func (w *Worker) Start(id string) bool {
	if !w.engine.Enabled() || id == "" {
		return false
	}

	t, ok := w.timers[id]
	if !ok {
		t = &localTimer{}
		w.timers[id] = t
	}
	if !t.inFlight {
		t.inFlight = true
		w.active++
	}
	t.start = w.engine.clock.Now()

	if len(w.timers) > ForcedFlushThreshold {
		w.Flush()
	}
	return true
}

// Stop ends timing id and records the elapsed time on the timer aggregate.
// It returns false, recording nothing, if the engine is disabled, id is
// empty, or no timer for id is in flight.
func (w *Worker) Stop(id string) bool {
	if id == "" {
		return false
	}
	t, ok := w.timers[id]
	if !ok || !t.inFlight {
		return false
	}

	elapsed := w.engine.clock.Now().Sub(t.start)
	t.inFlight = false
	w.active--
	if t.partial == nil {
		delete(w.timers, id)
	}

	return w.engine.Observe(id, elapsed, false)
}

// Accumulate folds value into a worker-local partial for the statistic id.
// Nothing is visible in the registry until Flush, or until a forced flush.
func (w *Worker) Accumulate(id string, value int64) bool {
	if !w.engine.Enabled() || id == "" {
		return false
	}

	t, ok := w.timers[id]
	if !ok {
		t = &localTimer{}
		w.timers[id] = t
	}
	if t.partial == nil {
		t.partial = metrics.NewAggregate(metrics.StatisticID(id))
	}
	t.partial.Increase(value, false)
	return true
}

// Flush merges every local partial into the shared registry and drops all
// entries that are not in flight.
func (w *Worker) Flush() {
	for id, t := range w.timers {
		if t.partial != nil {
			w.engine.merge(t.partial)
			t.partial = nil
		}
		if !t.inFlight {
			delete(w.timers, id)
		}
	}
}

// Active returns the number of in-flight timers.
func (w *Worker) Active() int {
	return w.active
}

// Len returns the number of local entries, in flight or not.
func (w *Worker) Len() int {
	return len(w.timers)
}

// InFlight reports whether a timer for id is running.
func (w *Worker) InFlight(id string) bool {
	t, ok := w.timers[id]
	return ok && t.inFlight
}

type workerKey struct{}

// NewContext returns a copy of ctx carrying w.
func NewContext(ctx context.Context, w *Worker) context.Context {
	return context.WithValue(ctx, workerKey{}, w)
}

// WorkerFrom returns the Worker carried by ctx.
func WorkerFrom(ctx context.Context) (*Worker, bool) {
	w, ok := ctx.Value(workerKey{}).(*Worker)
	return w, ok
}

// Start begins timing id on the Worker carried by ctx. It returns false when
// ctx carries no Worker.
func (e *Engine) Start(ctx context.Context, id string) bool {
	w, ok := WorkerFrom(ctx)
	if !ok || w.engine != e {
		return false
	}
	return w.Start(id)
}

// Stop ends timing id on the Worker carried by ctx. It returns false when
// ctx carries no Worker or no timer for id is in flight.
func (e *Engine) Stop(ctx context.Context, id string) bool {
	w, ok := WorkerFrom(ctx)
	if !ok || w.engine != e {
		return false
	}
	return w.Stop(id)
}
