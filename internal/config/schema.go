// Package config loads perflog engine configuration.
//
// Configuration is read from YAML (or JSON, by extension), validated against
// an embedded JSON Schema and then semantically, and can be watched for
// changes so the enable flag and retention windows are reloaded at runtime.
package config

import (
	"time"
)

// File is the root of a perflog configuration file.
//
// Example YAML:
//
//	enabled: true
//	domain: perflog
//	intervals: "60s,1d"
//	bucketsPerWindow: 60
//	reapHorizon: 60m
//	percentiles: true
//	log:
//	  level: info
//	listen: ":9464"
type File struct {
	// Enabled is the process-wide enable flag (default: true)
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Domain prefixes every external metric name (default: "perflog")
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`

	// Intervals is the retention window list, e.g. "60s,1d". Unset means the defaults.
	Intervals *string `json:"intervals,omitempty" yaml:"intervals,omitempty"`

	// BucketsPerWindow is how many buckets each window is split into (default: 60)
	BucketsPerWindow int `json:"bucketsPerWindow,omitempty" yaml:"bucketsPerWindow,omitempty"`

	// ReapHorizon is the spacing between stale-entry passes (default: 60m)
	ReapHorizon Duration `json:"reapHorizon,omitempty" yaml:"reapHorizon,omitempty"`

	// Percentiles enables HDR latency percentiles for timers
	Percentiles bool `json:"percentiles,omitempty" yaml:"percentiles,omitempty"`

	// Log configures the logger
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Listen is the address the metrics endpoint binds to (default: ":9464")
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is "terminal" for colored output or "text" (default: picked from the terminal)
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// IsEnabled returns the enable flag, defaulting to true.
func (f *File) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// IntervalDurations returns the parsed retention windows.
func (f *File) IntervalDurations() []time.Duration {
	return IntervalsFromProperty(f.Intervals, DefaultIntervals)
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration, or defaultValue if unset.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// documentSchema is the JSON Schema every configuration document must satisfy.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "enabled": {"type": "boolean"},
    "domain": {"type": "string", "pattern": "^[^:,=\"*?]+$"},
    "intervals": {"type": "string"},
    "bucketsPerWindow": {"type": "integer", "minimum": 1, "maximum": 3600},
    "reapHorizon": {"type": "string"},
    "percentiles": {"type": "boolean"},
    "listen": {"type": "string"},
    "log": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "warning", "error"]},
        "format": {"type": "string", "enum": ["terminal", "text"]}
      }
    }
  }
}`
