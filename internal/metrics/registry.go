package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
	"golang.org/x/sync/singleflight"
)

// RegistryConfig contains configuration for a Registry.
type RegistryConfig struct {
	// Domain prefixes every external name (default: "perflog")
	Domain string

	// Intervals are the retention windows every new aggregate maintains
	Intervals []time.Duration

	// BucketsPerWindow is the number of buckets a window is split into (default: 60)
	BucketsPerWindow int

	// ReapHorizon is the minimum spacing between stale-entry passes (default: 60m)
	ReapHorizon time.Duration

	// Percentiles enables HDR latency histograms on timer aggregates
	Percentiles bool

	// Clock drives bucket floors and reaping (default: real clock)
	Clock clockz.Clock

	// Directory receives external registrations (default: a new MemoryDirectory)
	Directory Directory

	// Logger reports registration failures (default: slog.Default())
	Logger *slog.Logger
}

// DefaultRegistryConfig returns the default configuration.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Domain:           DefaultDomain,
		BucketsPerWindow: 60,
		ReapHorizon:      60 * time.Minute,
	}
}

func (c *RegistryConfig) applyDefaults() {
	def := DefaultRegistryConfig()
	if c.Domain == "" {
		c.Domain = def.Domain
	}
	if c.BucketsPerWindow <= 0 {
		c.BucketsPerWindow = def.BucketsPerWindow
	}
	if c.ReapHorizon <= 0 {
		c.ReapHorizon = def.ReapHorizon
	}
	if c.Clock == nil {
		c.Clock = clockz.RealClock
	}
	if c.Directory == nil {
		c.Directory = NewMemoryDirectory()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// export is one directory name an aggregate owns.
type export struct {
	name string
	src  Source
}

// Registry is a concurrent directory of aggregates keyed by MetricID.
//
// GetOrCreate guarantees that concurrent first callers for the same id all
// receive the same instance. Every aggregate is also published in the
// Directory under its external name, and each of its retention windows under
// a per-window name. Aggregates that stay inactive for two consecutive
// maintenance passes are removed from both.
type Registry struct {
	cfg RegistryConfig

	entries  atomic.Pointer[sync.Map] // MetricID -> *Aggregate
	creating singleflight.Group
	regMu    sync.Mutex

	intervals atomic.Pointer[[]time.Duration]
	reap      *sweepGate
}

// NewRegistry creates a registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	cfg.applyDefaults()

	r := &Registry{
		cfg:  cfg,
		reap: newSweepGate(cfg.Clock.Now().UnixNano(), int64(cfg.ReapHorizon)),
	}
	r.entries.Store(new(sync.Map))
	intervals := append([]time.Duration(nil), cfg.Intervals...)
	r.intervals.Store(&intervals)
	return r
}

// Directory returns the directory aggregates are registered in.
func (r *Registry) Directory() Directory {
	return r.cfg.Directory
}

// Domain returns the external name domain.
func (r *Registry) Domain() string {
	return r.cfg.Domain
}

// Intervals returns the currently configured retention windows.
func (r *Registry) Intervals() []time.Duration {
	return append([]time.Duration(nil), (*r.intervals.Load())...)
}

// ExternalName returns the external name for id and, if non-empty, one of its windows.
func (r *Registry) ExternalName(id MetricID, windowLabel string) string {
	return ChannelExternalName(r.cfg.Domain, id, windowLabel)
}

// GetOrCreate returns the aggregate for id, creating and registering it on
// first use. Concurrent first callers for the same id share one creation, and
// the returned aggregate is always the one held by the current map, even
// across a concurrent Clear or eviction.
func (r *Registry) GetOrCreate(id MetricID) (*Aggregate, error) {
	if id.Name == "" {
		return nil, ErrEmptyID
	}
	r.maybeReap()

	for {
		m := r.entries.Load()
		if v, ok := m.Load(id); ok {
			return v.(*Aggregate), nil
		}

		v, _, _ := r.creating.Do(id.String(), func() (any, error) {
			if v, ok := m.Load(id); ok {
				return v, nil
			}
			candidate := r.newAggregate(id)
			actual, loaded := m.LoadOrStore(id, candidate)
			if !loaded {
				r.register(candidate)
			}
			return actual, nil
		})

		// A creation shared with a caller that still saw a cleared map, or
		// an entry evicted right after creation, is retried.
		a := v.(*Aggregate)
		if cur, ok := r.entries.Load().Load(id); ok && cur == a {
			return a, nil
		}
	}
}

// Lookup returns the aggregate for id without creating it.
func (r *Registry) Lookup(id MetricID) (*Aggregate, bool) {
	v, ok := r.entries.Load().Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Aggregate), true
}

// Entries returns a snapshot of the registered aggregates.
func (r *Registry) Entries() map[MetricID]*Aggregate {
	result := make(map[MetricID]*Aggregate)
	r.entries.Load().Range(func(k, v any) bool {
		result[k.(MetricID)] = v.(*Aggregate)
		return true
	})
	return result
}

// Len returns the number of registered aggregates.
func (r *Registry) Len() int {
	n := 0
	r.entries.Load().Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Clear discards every aggregate and its registrations. Writers racing with
// Clear may record into discarded aggregates; those updates are lost.
func (r *Registry) Clear() error {
	r.regMu.Lock()
	defer r.regMu.Unlock()

	old := r.entries.Swap(new(sync.Map))

	var errs []error
	old.Range(func(_, v any) bool {
		if err := r.unregisterLocked(v.(*Aggregate)); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

// SetIntervals replaces the retention windows new aggregates maintain. When
// applyExisting is set, every existing aggregate gets fresh window counters
// and its per-window registrations are replaced.
func (r *Registry) SetIntervals(durations []time.Duration, applyExisting bool) error {
	intervals := make([]time.Duration, 0, len(durations))
	for _, d := range durations {
		if d > 0 {
			intervals = append(intervals, d)
		}
	}
	r.intervals.Store(&intervals)

	if !applyExisting {
		return nil
	}

	var errs []error
	r.entries.Load().Range(func(_, v any) bool {
		if err := r.rewindow(v.(*Aggregate)); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

func (r *Registry) newAggregate(id MetricID) *Aggregate {
	a := NewAggregate(id)
	a.windows.Store(r.newWindowSet())
	if r.cfg.Percentiles && id.Type == TypeTimer {
		a.latency = newLatencyHistogram()
	}
	return a
}

func (r *Registry) newWindowSet() *windowSet {
	intervals := *r.intervals.Load()
	ws := &windowSet{windows: make([]Window, 0, len(intervals))}
	for _, d := range intervals {
		label := WindowLabel(d)
		if _, dup := ws.find(label); dup {
			continue
		}
		width := d / time.Duration(r.cfg.BucketsPerWindow)
		if width <= 0 {
			width = 1
		}
		ws.windows = append(ws.windows, Window{
			Label:    label,
			Duration: d,
			Counter:  NewIntervalCounter(width, r.cfg.BucketsPerWindow, r.cfg.Clock),
		})
	}
	return ws
}

// register publishes a and its windows in the directory. A name already owned
// by another source stays with that source; it is logged, never an error.
// Aggregates no longer held by the current map are not published: they were
// cleared or evicted before registration got the lock.
func (r *Registry) register(a *Aggregate) {
	r.regMu.Lock()
	defer r.regMu.Unlock()

	if cur, ok := r.entries.Load().Load(a.id); !ok || cur != a {
		return
	}

	r.publish(a, r.ExternalName(a.id, ""), a)
	for _, w := range a.windows.Load().windows {
		r.publish(a, r.ExternalName(a.id, w.Label), &windowView{agg: a, label: w.Label})
	}
}

// publish must be called with regMu held.
func (r *Registry) publish(a *Aggregate, name string, src Source) {
	owner, err := r.cfg.Directory.Register(name, src)
	if err != nil {
		r.cfg.Logger.Warn("external registration failed", "name", name, "error", err)
		return
	}
	if owner != src {
		r.cfg.Logger.Debug("external name already registered, reusing existing", "name", name)
		return
	}
	a.exports = append(a.exports, export{name: name, src: src})
}

// unregisterLocked must be called with regMu held.
func (r *Registry) unregisterLocked(a *Aggregate) error {
	var errs []error
	for _, e := range a.exports {
		if err := r.cfg.Directory.Unregister(e.name, e.src); err != nil {
			errs = append(errs, fmt.Errorf("unregister %s: %w", e.name, err))
		}
	}
	a.exports = nil
	return errors.Join(errs...)
}

func (r *Registry) rewindow(a *Aggregate) error {
	ws := r.newWindowSet()

	r.regMu.Lock()
	defer r.regMu.Unlock()

	var errs []error
	kept := a.exports[:0]
	for _, e := range a.exports {
		if _, isWindow := e.src.(*windowView); !isWindow {
			kept = append(kept, e)
			continue
		}
		if err := r.cfg.Directory.Unregister(e.name, e.src); err != nil {
			errs = append(errs, fmt.Errorf("unregister %s: %w", e.name, err))
		}
	}
	a.exports = kept

	a.windows.Store(ws)
	for _, w := range ws.windows {
		r.publish(a, r.ExternalName(a.id, w.Label), &windowView{agg: a, label: w.Label})
	}
	return errors.Join(errs...)
}
