// Package logger builds the slog loggers used by perflog commands.
package logger

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string

	// Format is "terminal" (colored), "text", or empty to pick from Output
	Format string

	// Output defaults to os.Stderr
	Output io.Writer
}

// Level is the process-wide log level; it can be changed at runtime.
var Level = &slog.LevelVar{}

// SetLevelByName sets Level from a level name. Unknown names are ignored.
func SetLevelByName(name string) {
	switch strings.ToLower(name) {
	case "err", "error":
		Level.Set(slog.LevelError)
	case "warn", "warning":
		Level.Set(slog.LevelWarn)
	case "info":
		Level.Set(slog.LevelInfo)
	case "debug":
		Level.Set(slog.LevelDebug)
	}
}

// New creates a logger. Terminals get a tint handler, everything else a
// plain text handler.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Level != "" {
		SetLevelByName(opts.Level)
	}

	format := opts.Format
	if format == "" {
		format = "text"
		if isTerminal(opts.Output) {
			format = "terminal"
		}
	}

	if format == "terminal" {
		return slog.New(newTerminalHandler(opts.Output))
	}
	return slog.New(newTextHandler(opts.Output))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTextHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				return slog.String(a.Key, strings.ToLower(a.Value.String()))
			}
			return a
		},
	})
}

func newTerminalHandler(w io.Writer) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		NoColor:    runtime.GOOS == "windows",
		Level:      Level,
		TimeFormat: "15:04:05.000",
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
