package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perflog.yaml")
	content := `
enabled: false
domain: app
intervals: "60s,1d"
bucketsPerWindow: 30
reapHorizon: 10m
percentiles: true
log:
  level: debug
listen: "127.0.0.1:9000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)

	assert.False(t, f.IsEnabled())
	assert.Equal(t, "app", f.Domain)
	assert.Equal(t, []time.Duration{time.Minute, 24 * time.Hour}, f.IntervalDurations())
	assert.Equal(t, 30, f.BucketsPerWindow)
	assert.Equal(t, 10*time.Minute, f.ReapHorizon.GetDuration(0))
	assert.True(t, f.Percentiles)
	assert.Equal(t, "debug", f.Log.Level)
	assert.Equal(t, "127.0.0.1:9000", f.Listen)
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perflog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"intervals": "", "reapHorizon": "5m"}`), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)

	assert.True(t, f.IsEnabled())
	assert.Empty(t, f.IntervalDurations())
	assert.Equal(t, 5*time.Minute, f.ReapHorizon.GetDuration(0))
}

func TestLoadFile_NotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParse_Defaults(t *testing.T) {
	f, err := Parse([]byte(""), "perflog.yaml")
	require.NoError(t, err)

	assert.True(t, f.IsEnabled())
	assert.Nil(t, f.Intervals)
	assert.Equal(t, DefaultIntervals, f.IntervalDurations())
	assert.Equal(t, DefaultDomain, f.Domain)
	assert.Equal(t, DefaultBucketsPerWindow, f.BucketsPerWindow)
	assert.Equal(t, DefaultReapHorizon, f.ReapHorizon.GetDuration(0))
	assert.Equal(t, DefaultListen, f.Listen)
	assert.Equal(t, DefaultLogLevel, f.Log.Level)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown field", content: "colour: red\n"},
		{name: "wrong type", content: "enabled: maybe\n"},
		{name: "buckets out of range", content: "bucketsPerWindow: 0\n"},
		{name: "bad log level", content: "log:\n  level: loud\n"},
		{name: "domain with separator", content: "domain: \"a:b\"\n"},
		{name: "no valid interval", content: "intervals: \"junk,0\"\n"},
		{name: "bad listen address", content: "listen: \"nope\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), "perflog.yaml")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "expected ErrInvalidConfig, got %v", err)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("enabled: [\n"), "perflog.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}

func TestValidationErrors_Error(t *testing.T) {
	errs := &ValidationErrors{}
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("listen", "bad")
	assert.Equal(t, "validation error on field 'listen': bad", errs.Error())

	errs.Add("", "worse")
	assert.Contains(t, errs.Error(), "2 validation errors")
}
