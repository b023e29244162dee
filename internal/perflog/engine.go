// Package perflog is the engine call-site adapters talk to.
//
// An Engine owns one metrics.Registry and a process-wide enable flag. Timed
// operations go through a Worker, the per-goroutine timer tracker:
//
//	eng := perflog.New(perflog.DefaultConfig())
//	w := eng.Worker()
//	w.Start("db.query")
//	// ... work ...
//	w.Stop("db.query")
//
// Untimed values go straight to the registry with Increase or AddStatistic.
// Hot-path calls never return errors or panic back into the caller: a metrics
// failure must never fail the measured operation.
package perflog

import (
	"bytes"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/wesleyorama2/perflog/internal/config"
	"github.com/wesleyorama2/perflog/internal/metrics"
	"github.com/wesleyorama2/perflog/internal/output"
)

// Config contains configuration for an Engine.
type Config struct {
	// Enabled is the initial state of the enable flag
	Enabled bool

	// Domain prefixes every external name (default: "perflog")
	Domain string

	// Intervals are the retention windows each aggregate maintains
	Intervals []time.Duration

	// BucketsPerWindow is the number of buckets per window (default: 60)
	BucketsPerWindow int

	// ReapHorizon is the spacing between stale-entry passes (default: 60m)
	ReapHorizon time.Duration

	// Percentiles enables HDR latency percentiles for timers
	Percentiles bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Domain:           metrics.DefaultDomain,
		Intervals:        append([]time.Duration(nil), config.DefaultIntervals...),
		BucketsPerWindow: config.DefaultBucketsPerWindow,
		ReapHorizon:      config.DefaultReapHorizon,
	}
}

// ConfigFromFile converts a loaded configuration file.
func ConfigFromFile(f *config.File) Config {
	return Config{
		Enabled:          f.IsEnabled(),
		Domain:           f.Domain,
		Intervals:        f.IntervalDurations(),
		BucketsPerWindow: f.BucketsPerWindow,
		ReapHorizon:      f.ReapHorizon.GetDuration(config.DefaultReapHorizon),
		Percentiles:      f.Percentiles,
	}
}

// Option customizes an Engine.
type Option func(*options)

type options struct {
	clock     clockz.Clock
	logger    *slog.Logger
	directory metrics.Directory
}

// WithClock sets the clock used for timers and windows.
func WithClock(clock clockz.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDirectory sets the exported metrics directory.
func WithDirectory(dir metrics.Directory) Option {
	return func(o *options) { o.directory = dir }
}

// Engine times and counts named operations.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Workers are not: each goroutine that
// times operations needs its own Worker.
type Engine struct {
	enabled  atomic.Bool
	registry *metrics.Registry
	clock    clockz.Clock
	logger   *slog.Logger
}

// New creates an engine.
func New(cfg Config, opts ...Option) *Engine {
	o := options{
		clock:  clockz.RealClock,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		registry: metrics.NewRegistry(metrics.RegistryConfig{
			Domain:           cfg.Domain,
			Intervals:        cfg.Intervals,
			BucketsPerWindow: cfg.BucketsPerWindow,
			ReapHorizon:      cfg.ReapHorizon,
			Percentiles:      cfg.Percentiles,
			Clock:            o.clock,
			Directory:        o.directory,
			Logger:           o.logger,
		}),
		clock:  o.clock,
		logger: o.logger,
	}
	e.enabled.Store(cfg.Enabled)
	return e
}

// Registry returns the underlying registry.
func (e *Engine) Registry() *metrics.Registry {
	return e.registry
}

// Clock returns the clock every timing is taken from.
func (e *Engine) Clock() clockz.Clock {
	return e.clock
}

// Directory returns the exported metrics directory.
func (e *Engine) Directory() metrics.Directory {
	return e.registry.Directory()
}

// SetEnabled flips the process-wide enable flag.
func (e *Engine) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
}

// Enabled reports whether the engine records anything.
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// Increase records one call of value for id. Failed calls only count as
// failures. Disabled engines and empty ids are ignored.
func (e *Engine) Increase(id string, value int64, failed bool, typ metrics.MetricType) {
	if !e.Enabled() || id == "" {
		return
	}
	agg, err := e.registry.GetOrCreate(metrics.MetricID{Name: id, Type: typ})
	if err != nil {
		e.logger.Debug("increase dropped", "id", id, "error", err)
		return
	}
	agg.Increase(value, failed)
}

// AddStatistic records value for the statistic id. It returns false if the
// engine is disabled or id is empty.
func (e *Engine) AddStatistic(id string, value int64) bool {
	if !e.Enabled() || id == "" {
		return false
	}
	e.Increase(id, value, false, metrics.TypeStatistic)
	return true
}

// Observe records one timed call of elapsed on the timer id. Successful
// calls also feed the latency histogram when percentiles are enabled. It
// returns false if the engine is disabled or id is empty.
func (e *Engine) Observe(id string, elapsed time.Duration, failed bool) bool {
	if !e.Enabled() || id == "" {
		return false
	}
	agg, err := e.registry.GetOrCreate(metrics.TimerID(id))
	if err != nil {
		e.logger.Debug("timer dropped", "id", id, "error", err)
		return false
	}
	if failed {
		agg.Increase(int64(elapsed), true)
		return true
	}
	agg.Observe(elapsed)
	return true
}

// merge folds a worker-local partial into the shared aggregate.
func (e *Engine) merge(partial *metrics.Aggregate) {
	agg, err := e.registry.GetOrCreate(partial.ID())
	if err != nil {
		e.logger.Debug("partial dropped", "id", partial.ID().String(), "error", err)
		return
	}
	agg.Merge(partial)
}

// lookupOrder is the type precedence used when a lookup only has a name.
var lookupOrder = []metrics.MetricType{metrics.TypeTimer, metrics.TypeStatistic, metrics.TypeMetric}

// PerformanceLog returns a snapshot of the aggregate named id, preferring a
// timer, then a statistic, then a metric.
func (e *Engine) PerformanceLog(id string) (metrics.Snapshot, bool) {
	for _, typ := range lookupOrder {
		if agg, ok := e.registry.Lookup(metrics.MetricID{Name: id, Type: typ}); ok {
			return agg.Snapshot(), true
		}
	}
	return metrics.Snapshot{}, false
}

// PerformanceLogs returns snapshots of every aggregate. The map is a copy.
func (e *Engine) PerformanceLogs() map[metrics.MetricID]metrics.Snapshot {
	entries := e.registry.Entries()
	result := make(map[metrics.MetricID]metrics.Snapshot, len(entries))
	for id, agg := range entries {
		result[id] = agg.Snapshot()
	}
	return result
}

// CallCount returns the call count of the aggregate named id, or 0.
func (e *Engine) CallCount(id string) int64 {
	s, _ := e.PerformanceLog(id)
	return s.CallCount
}

// Clear discards all aggregates and their external registrations.
func (e *Engine) Clear() error {
	return e.registry.Clear()
}

// SetIntervals reconfigures the retention windows of new and existing aggregates.
func (e *Engine) SetIntervals(durations []time.Duration) error {
	return e.registry.SetIntervals(durations, true)
}

// Apply reloads the runtime-reloadable parts of a configuration: the enable
// flag and the retention windows.
func (e *Engine) Apply(f *config.File) error {
	e.SetEnabled(f.IsEnabled())

	intervals := f.IntervalDurations()
	if slices.Equal(intervals, e.registry.Intervals()) {
		return nil
	}
	return e.SetIntervals(intervals)
}

// ExternalName returns the external name of id's aggregate, or of one of
// its windows when windowLabel is non-empty.
func (e *Engine) ExternalName(id string, windowLabel string, typ metrics.MetricType) string {
	return e.registry.ExternalName(metrics.MetricID{Name: id, Type: typ}, windowLabel)
}

// Snapshots returns snapshots of every aggregate as a slice.
func (e *Engine) Snapshots() []metrics.Snapshot {
	logs := e.PerformanceLogs()
	result := make([]metrics.Snapshot, 0, len(logs))
	for _, s := range logs {
		result = append(result, s)
	}
	return output.Sorted(result)
}

// Document returns the structured dump of the engine.
func (e *Engine) Document() output.Document {
	return output.Document{Enabled: e.Enabled(), Logs: e.Snapshots()}
}

// DumpTable renders every aggregate as a table sorted by name.
func (e *Engine) DumpTable() string {
	return output.TableString(e.Snapshots())
}

// DumpCSV renders every aggregate as CSV sorted by name.
func (e *Engine) DumpCSV() string {
	return output.CSVString(e.Snapshots())
}

// DumpJSON renders the structured dump as JSON.
func (e *Engine) DumpJSON() []byte {
	var buf bytes.Buffer
	_ = output.JSON(&buf, e.Document())
	return buf.Bytes()
}
