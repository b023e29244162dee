// Package metrics implements the statistics-collection core of perflog.
//
// It provides:
//   - IntervalCounter: a lock-free, time-bucketed event counter used for rolling windows
//   - Aggregate: one named metric's lifetime summary (count, sum, min, max, failures)
//   - Registry: a concurrent directory of aggregates with get-or-create semantics,
//     per-window counters, external registration and stale-entry reaping
//   - Directory: the exported metrics directory an inspection console reads from
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Writers never take a global
// lock: counters are atomics, maps are sync.Map, and periodic cleanup is gated
// by a single compare-and-swap so exactly one goroutine sweeps per interval.
package metrics
