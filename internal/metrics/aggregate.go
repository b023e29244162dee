package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram range in microseconds: 1µs to 1 hour, 3 significant figures.
const (
	histogramMin     = 1
	histogramMax     = 3_600_000_000
	histogramSigFigs = 3
)

// Window is one retention window maintained by an aggregate.
type Window struct {
	Label    string
	Duration time.Duration
	Counter  *IntervalCounter
}

type windowSet struct {
	windows []Window
}

func (ws *windowSet) find(label string) (Window, bool) {
	if ws == nil {
		return Window{}, false
	}
	for _, w := range ws.windows {
		if w.Label == label {
			return w, true
		}
	}
	return Window{}, false
}

// Aggregate is the mutable summary of one named metric.
//
// Increase and Merge are lock-free; min and max are maintained with CAS loops
// so accumulation is commutative and no increment is ever lost. Reads never
// block writers, but a Snapshot taken under concurrent writes may combine
// fields observed at slightly different times.
type Aggregate struct {
	id MetricID

	calls    atomic.Int64
	failures atomic.Int64
	sum      atomic.Int64
	min      atomic.Int64
	max      atomic.Int64

	windows atomic.Pointer[windowSet]

	// Reaper bookkeeping.
	active atomic.Bool
	stale  atomic.Bool

	// External names this aggregate won in the directory, guarded by Registry.regMu.
	exports []export

	latency *latencyHistogram
}

// NewAggregate creates a standalone aggregate without retention windows.
func NewAggregate(id MetricID) *Aggregate {
	a := &Aggregate{id: id}
	a.min.Store(math.MaxInt64)
	a.max.Store(math.MinInt64)
	a.active.Store(true)
	return a
}

// ID returns the aggregate's id.
func (a *Aggregate) ID() MetricID {
	return a.id
}

// Increase records one call. A failed call only bumps the failure count;
// otherwise value is folded into sum, min and max. Every retention window
// receives one event regardless of value.
func (a *Aggregate) Increase(value int64, failed bool) {
	a.calls.Add(1)
	if failed {
		a.failures.Add(1)
	} else {
		a.fold(value, value, value)
	}
	a.active.Store(true)

	if ws := a.windows.Load(); ws != nil {
		for _, w := range ws.windows {
			w.Counter.Increment(1)
		}
	}
}

// Observe records one successful timed call and, when percentiles are
// enabled, feeds the latency histogram.
func (a *Aggregate) Observe(elapsed time.Duration) {
	a.Increase(int64(elapsed), false)
	if a.latency != nil {
		a.latency.record(elapsed)
	}
}

// Merge folds other into a. Merge is associative and commutative; the
// combined calls are also counted as events in a's retention windows.
func (a *Aggregate) Merge(other *Aggregate) {
	calls := other.calls.Load()
	if calls == 0 {
		return
	}
	a.calls.Add(calls)
	a.failures.Add(other.failures.Load())
	if ok := calls - other.failures.Load(); ok > 0 {
		a.fold(other.sum.Load(), other.min.Load(), other.max.Load())
	}
	a.active.Store(true)

	if ws := a.windows.Load(); ws != nil {
		for _, w := range ws.windows {
			w.Counter.Increment(calls)
		}
	}
}

func (a *Aggregate) fold(sum, lo, hi int64) {
	a.sum.Add(sum)
	for {
		cur := a.min.Load()
		if lo >= cur || a.min.CompareAndSwap(cur, lo) {
			break
		}
	}
	for {
		cur := a.max.Load()
		if hi <= cur || a.max.CompareAndSwap(cur, hi) {
			break
		}
	}
}

// CallCount returns the number of recorded calls, failed ones included.
func (a *Aggregate) CallCount() int64 {
	return a.calls.Load()
}

// FailureCount returns the number of failed calls.
func (a *Aggregate) FailureCount() int64 {
	return a.failures.Load()
}

// Sum returns the sum of successful values.
func (a *Aggregate) Sum() int64 {
	return a.sum.Load()
}

// Average returns sum divided by the number of successful calls, or 0.
func (a *Aggregate) Average() float64 {
	ok := a.calls.Load() - a.failures.Load()
	if ok <= 0 {
		return 0
	}
	return float64(a.sum.Load()) / float64(ok)
}

// Minimum returns the smallest successful value, or 0 if there is none.
func (a *Aggregate) Minimum() int64 {
	if v := a.min.Load(); v != math.MaxInt64 {
		return v
	}
	return 0
}

// Maximum returns the largest successful value, or 0 if there is none.
func (a *Aggregate) Maximum() int64 {
	if v := a.max.Load(); v != math.MinInt64 {
		return v
	}
	return 0
}

// Windows returns the aggregate's current retention windows.
func (a *Aggregate) Windows() []Window {
	ws := a.windows.Load()
	if ws == nil {
		return nil
	}
	return append([]Window(nil), ws.windows...)
}

// WindowCount returns the events counted in the window labelled label over
// that window's duration. The second result is false if no such window exists.
func (a *Aggregate) WindowCount(label string) (int64, bool) {
	w, ok := a.windows.Load().find(label)
	if !ok {
		return 0, false
	}
	return w.Counter.Count(w.Duration), true
}

// Snapshot returns a point-in-time view of the aggregate.
func (a *Aggregate) Snapshot() Snapshot {
	s := Snapshot{
		Name:         a.id.Name,
		Type:         a.id.Type.String(),
		CallCount:    a.CallCount(),
		FailureCount: a.FailureCount(),
		Sum:          a.Sum(),
		Average:      a.Average(),
		Minimum:      a.Minimum(),
		Maximum:      a.Maximum(),
	}
	if ws := a.windows.Load(); ws != nil && len(ws.windows) > 0 {
		s.Windows = make(map[string]int64, len(ws.windows))
		for _, w := range ws.windows {
			s.Windows[w.Label] = w.Counter.Count(w.Duration)
		}
	}
	if a.latency != nil {
		p := a.latency.percentiles()
		s.Percentiles = &p
	}
	return s
}

// Attributes implements Source.
func (a *Aggregate) Attributes() []Attribute {
	return []Attribute{
		{Name: "callCount", Value: float64(a.CallCount())},
		{Name: "failureCount", Value: float64(a.FailureCount())},
		{Name: "sum", Value: float64(a.Sum())},
		{Name: "average", Value: a.Average()},
		{Name: "minimum", Value: float64(a.Minimum())},
		{Name: "maximum", Value: float64(a.Maximum())},
	}
}

// windowView exposes one retention window of an aggregate as a Source. It
// resolves the window by label on every read so it stays valid across
// reconfiguration.
type windowView struct {
	agg   *Aggregate
	label string
}

func (v *windowView) Attributes() []Attribute {
	w, ok := v.agg.windows.Load().find(v.label)
	if !ok {
		return []Attribute{{Name: "count", Value: 0}}
	}
	return []Attribute{
		{Name: "count", Value: float64(w.Counter.Count(w.Duration))},
		{Name: "windowSeconds", Value: w.Duration.Seconds()},
	}
}

// latencyHistogram wraps an HDR histogram. HDR RecordValue is not thread-safe,
// so access is serialized.
type latencyHistogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newLatencyHistogram() *latencyHistogram {
	return &latencyHistogram{
		hist: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
	}
}

func (h *latencyHistogram) record(d time.Duration) {
	micros := d.Microseconds()
	if micros < histogramMin {
		micros = histogramMin
	}
	if micros > histogramMax {
		micros = histogramMax
	}

	h.mu.Lock()
	_ = h.hist.RecordValue(micros)
	h.mu.Unlock()
}

func (h *latencyHistogram) percentiles() LatencyPercentiles {
	h.mu.Lock()
	defer h.mu.Unlock()

	return LatencyPercentiles{
		P50: time.Duration(h.hist.ValueAtQuantile(50)) * time.Microsecond,
		P90: time.Duration(h.hist.ValueAtQuantile(90)) * time.Microsecond,
		P95: time.Duration(h.hist.ValueAtQuantile(95)) * time.Microsecond,
		P99: time.Duration(h.hist.ValueAtQuantile(99)) * time.Microsecond,
	}
}
