// Package export publishes the metrics directory to the outside world: a
// Prometheus collector over every registered source, and an HTTP server that
// serves it next to a structured dump of the engine.
package export

import (
	"strings"
	"sync"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wesleyorama2/perflog/internal/metrics"
)

// ObjectLabel carries the external name of the source a sample came from.
const ObjectLabel = "object"

// Collector exposes every source in a metrics.Directory as Prometheus gauges,
// one metric family per attribute name, labelled with the source's external
// name.
//
// The set of sources changes as aggregates are created and reaped, so
// Collector is an unchecked collector: Describe sends nothing.
type Collector struct {
	dir       metrics.Directory
	namespace string

	mu    sync.Mutex
	descs map[string]*prometheus.Desc
}

// NewCollector creates a collector over dir. Metric names are prefixed with
// namespace, e.g. perflog_call_count. Characters Prometheus does not allow in
// metric names are replaced with underscores.
func NewCollector(dir metrics.Directory, namespace string) *Collector {
	return &Collector{
		dir:       dir,
		namespace: sanitize(namespace),
		descs:     make(map[string]*prometheus.Desc),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.dir.Names() {
		src, ok := c.dir.Lookup(name)
		if !ok {
			// Reaped between Names and Lookup.
			continue
		}
		for _, attr := range src.Attributes() {
			desc := c.desc(attr.Name)
			m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, attr.Value, name)
			if err != nil {
				ch <- prometheus.NewInvalidMetric(desc, err)
				continue
			}
			ch <- m
		}
	}
}

func (c *Collector) desc(attr string) *prometheus.Desc {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.descs[attr]; ok {
		return d
	}
	d := prometheus.NewDesc(
		prometheus.BuildFQName(c.namespace, "", snakeCase(attr)),
		"perflog attribute "+attr+" of the source named by the object label.",
		[]string{ObjectLabel},
		nil,
	)
	c.descs[attr] = d
	return d
}

// NewRegistry returns a Prometheus registry holding a Collector over dir plus
// the standard Go runtime and process collectors.
func NewRegistry(dir metrics.Directory, namespace string) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		NewCollector(dir, namespace),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// snakeCase turns an attribute name such as callCount into call_count.
func snakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, s)
}
