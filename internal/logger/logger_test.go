package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_TextHandler(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "info", Output: &buf})

	log.Info("registered", "name", "perflog:type=Timer,name=a")
	log.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "level=info")
	assert.Contains(t, out, "registered")
	assert.NotContains(t, out, "hidden")
}

func TestSetLevelByName(t *testing.T) {
	defer Level.Set(slog.LevelInfo)

	SetLevelByName("debug")
	assert.Equal(t, slog.LevelDebug, Level.Level())

	SetLevelByName("warning")
	assert.Equal(t, slog.LevelWarn, Level.Level())

	SetLevelByName("nonsense")
	assert.Equal(t, slog.LevelWarn, Level.Level())
}

func TestNew_TerminalFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "info", Format: "terminal", Output: &buf})
	log.Info("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}
