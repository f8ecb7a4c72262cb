package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events one editor save produces.
const reloadDelay = 100 * time.Millisecond

// Change is the part of a reloaded file that differs from the running config.
type Change struct {
	// Config is the file as loaded.
	Config *Config

	LevelChanged  bool
	AlertsChanged bool

	// WindowIgnored is set when the file asks for a window other than the one
	// the tracker was built with. The running window is kept.
	WindowIgnored bool
}

// Empty reports whether nothing applicable or ignored changed.
func (c Change) Empty() bool {
	return !c.LevelChanged && !c.AlertsChanged && !c.WindowIgnored
}

// Diff compares next against running.
func Diff(running, next *Config) Change {
	alerts := !slices.Equal(running.Alerts.Rules, next.Alerts.Rules) ||
		!slices.Equal(running.Alerts.Webhooks, next.Alerts.Webhooks)
	return Change{
		Config:        next,
		LevelChanged:  running.Level() != next.Level(),
		AlertsChanged: alerts,
		WindowIgnored: running.Window != next.Window,
	}
}

// Watch reloads path whenever it is written or replaced and calls onChange
// with the difference from running. Reloads that change nothing, or that
// fail to load, are logged and skipped. Watch returns when ctx is cancelled.
//
// The parent directory is watched so editors that save by renaming a
// temporary file over path are picked up too.
func Watch(ctx context.Context, path string, running *Config, onChange func(Change)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config: watch %s: %w", target, err)
	}
	slog.Info("config: watching for changes", "path", target)

	applied := *running
	debounce := time.NewTimer(reloadDelay)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			debounce.Reset(reloadDelay)

		case <-debounce.C:
			next, err := Load(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config", "path", target, "err", err)
				continue
			}
			change := Diff(&applied, next)
			if change.Empty() {
				slog.Debug("config: reloaded, nothing to apply", "path", target)
				continue
			}
			slog.Info("config: reloaded",
				"path", target,
				"log_level", change.LevelChanged,
				"alerts", change.AlertsChanged,
				"window_ignored", change.WindowIgnored,
			)
			onChange(change)

			// The window is never applied, so keep diffing against the running one.
			applied = *next
			applied.Window = running.Window

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
