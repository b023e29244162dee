package config

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultIntervals are the retention windows used when none are configured.
var DefaultIntervals = []time.Duration{
	time.Minute,
	time.Hour,
	24 * time.Hour,
}

// ParseIntervals parses a comma-separated retention window list.
//
// Each token is a bare integer (seconds) or an integer followed by one of the
// suffixes ns, s or d:
//
//	"60"       -> 60s
//	"500ns"    -> 500ns
//	"30s,1d"   -> 30s, 24h
//
// Tokens that are malformed, overflow, or are not positive are skipped
// individually; the remaining durations keep their input order. An empty
// string yields an empty, non-nil list.
func ParseIntervals(s string) []time.Duration {
	result := make([]time.Duration, 0)
	if strings.TrimSpace(s) == "" {
		return result
	}

	for _, token := range strings.Split(s, ",") {
		if d, ok := parseInterval(strings.TrimSpace(token)); ok {
			result = append(result, d)
		}
	}
	return result
}

// IntervalsFromProperty parses value with ParseIntervals. A nil value means
// the property is unset and def is returned unchanged.
func IntervalsFromProperty(value *string, def []time.Duration) []time.Duration {
	if value == nil {
		return def
	}
	return ParseIntervals(*value)
}

func parseInterval(token string) (time.Duration, bool) {
	var (
		digits = token
		unit   = int64(time.Second)
	)
	switch {
	case strings.HasSuffix(token, "ns"):
		digits, unit = strings.TrimSuffix(token, "ns"), 1
	case strings.HasSuffix(token, "s"):
		digits = strings.TrimSuffix(token, "s")
	case strings.HasSuffix(token, "d"):
		digits, unit = strings.TrimSuffix(token, "d"), int64(24*time.Hour)
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > math.MaxInt64/unit {
		return 0, false
	}
	return time.Duration(n * unit), true
}
