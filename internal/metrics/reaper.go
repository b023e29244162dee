package metrics

import (
	"errors"
	"sync"
)

// maybeReap runs a maintenance pass when more than ReapHorizon has elapsed
// since the previous one. Only the goroutine that wins the CAS on the last
// check time runs the pass; everyone else returns immediately.
func (r *Registry) maybeReap() {
	if !r.reap.tryAcquire(r.cfg.Clock.Now().UnixNano()) {
		return
	}
	if err := r.sweep(); err != nil {
		r.cfg.Logger.Warn("stale entry eviction", "error", err)
	}
}

// Reap runs one maintenance pass immediately, regardless of the horizon.
func (r *Registry) Reap() error {
	r.reap.last.Store(r.cfg.Clock.Now().UnixNano())
	return r.sweep()
}

// sweep applies the two-pass staleness rule. An aggregate written since the
// previous pass is unmarked; an unwritten, unmarked aggregate is marked; an
// unwritten aggregate that was already marked is removed from the map and the
// directory. Removal needs two consecutive inactive passes, so entries
// survive ordinary gaps shorter than one horizon.
func (r *Registry) sweep() error {
	m := r.entries.Load()

	var evict []*Aggregate
	m.Range(func(_, v any) bool {
		a := v.(*Aggregate)
		switch {
		case a.active.Swap(false):
			a.stale.Store(false)
		case a.stale.Load():
			evict = append(evict, a)
		default:
			a.stale.Store(true)
		}
		return true
	})

	return r.evict(m, evict)
}

func (r *Registry) evict(m *sync.Map, stale []*Aggregate) error {
	r.regMu.Lock()
	defer r.regMu.Unlock()

	var errs []error
	for _, a := range stale {
		if !m.CompareAndDelete(a.id, a) {
			continue
		}
		if err := r.unregisterLocked(a); err != nil {
			errs = append(errs, err)
		}
		r.cfg.Logger.Debug("evicted stale metric", "id", a.id.String())
	}
	return errors.Join(errs...)
}
