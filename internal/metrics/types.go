package metrics

import (
	"errors"
	"fmt"
	"time"
)

// MetricType tags what kind of measurement an aggregate holds.
type MetricType int

const (
	// TypeTimer aggregates elapsed durations in nanoseconds.
	TypeTimer MetricType = iota

	// TypeStatistic aggregates caller supplied values.
	TypeStatistic

	// TypeMetric aggregates generic counters.
	TypeMetric
)

// String returns the name used in external names and dumps.
func (t MetricType) String() string {
	switch t {
	case TypeTimer:
		return "Timer"
	case TypeStatistic:
		return "Statistic"
	case TypeMetric:
		return "Metric"
	default:
		return fmt.Sprintf("MetricType(%d)", int(t))
	}
}

// MetricID identifies an aggregate. Equal ids denote the same aggregate.
type MetricID struct {
	Name string
	Type MetricType
}

// TimerID returns the id of the timer aggregate called name.
func TimerID(name string) MetricID {
	return MetricID{Name: name, Type: TypeTimer}
}

// StatisticID returns the id of the statistic aggregate called name.
func StatisticID(name string) MetricID {
	return MetricID{Name: name, Type: TypeStatistic}
}

func (id MetricID) String() string {
	return id.Type.String() + "/" + id.Name
}

// ErrEmptyID is returned when an operation is given an id without a name.
var ErrEmptyID = errors.New("metrics: empty metric id")

// Attribute is one named reading exposed through the Directory.
type Attribute struct {
	Name  string
	Value float64
}

// Snapshot is a point-in-time view of an aggregate.
//
// Fields are read individually; under concurrent writes they may reflect
// slightly different points in time.
//
// Average is Sum divided by the successful calls, CallCount - FailureCount,
// because failed calls contribute no value. It is 0 when no call succeeded.
type Snapshot struct {
	Name         string              `json:"name" yaml:"name"`
	Type         string              `json:"type" yaml:"type"`
	CallCount    int64               `json:"numCalls" yaml:"numCalls"`
	FailureCount int64               `json:"failures" yaml:"failures"`
	Sum          int64               `json:"sum" yaml:"sum"`
	Average      float64             `json:"average" yaml:"average"`
	Minimum      int64               `json:"minimum" yaml:"minimum"`
	Maximum      int64               `json:"maximum" yaml:"maximum"`
	Windows      map[string]int64    `json:"windows,omitempty" yaml:"windows,omitempty"`
	Percentiles  *LatencyPercentiles `json:"percentiles,omitempty" yaml:"percentiles,omitempty"`
}

// LatencyPercentiles contains latency percentiles for timer aggregates.
type LatencyPercentiles struct {
	P50 time.Duration `json:"p50" yaml:"p50"`
	P90 time.Duration `json:"p90" yaml:"p90"`
	P95 time.Duration `json:"p95" yaml:"p95"`
	P99 time.Duration `json:"p99" yaml:"p99"`
}
