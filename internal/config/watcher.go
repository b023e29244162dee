package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ApplyFunc receives every successfully reloaded configuration.
type ApplyFunc func(*File) error

// Watch reloads the configuration file at path whenever it changes and hands
// the result to apply. It watches the parent directory so editors that replace
// the file via rename are picked up too. A file that fails to load or apply is
// logged and the previous configuration stays in effect.
//
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, logger *slog.Logger, apply ApplyFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			reload(abs, logger, apply)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher", "error", err)
		}
	}
}

func reload(path string, logger *slog.Logger, apply ApplyFunc) {
	file, err := LoadFile(path)
	if err != nil {
		logger.Warn("config reload failed, keeping previous configuration", "path", path, "error", err)
		return
	}
	if err := apply(file); err != nil {
		logger.Warn("config apply failed", "path", path, "error", err)
		return
	}
	logger.Info("configuration reloaded", "path", path, "enabled", file.IsEnabled())
}
