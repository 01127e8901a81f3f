package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AaronLay10/SignalGrid/internal/events"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

// WatchPolicy reloads path on every write and hands the policy section to
// apply when it differs from current. Bursts of file events within debounce
// collapse into one reload. An invalid file is reported as config.error and
// the running policy is kept. WatchPolicy blocks until ctx is done.
func WatchPolicy(ctx context.Context, path string, current PolicyConfig, debounce time.Duration, apply func(node.Options), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Editors replace the file on save, so the directory is watched.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	last := current
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		case <-timer.C:
			cfg, err := Load(abs)
			if err != nil {
				logger.Error("config reload failed", "path", abs, "error", err)
				events.Emit("error", "config.error", err.Error(), map[string]interface{}{"path": abs})
				continue
			}
			if samePolicy(cfg.Policy, last) {
				logger.Debug("config changed outside the policy section", "path", abs)
				continue
			}
			last = cfg.Policy
			logger.Info("policy reloaded", "path", abs)
			apply(cfg.Policy.Options())
		}
	}
}

func samePolicy(a, b PolicyConfig) bool {
	da, db := -1, -1
	if a.MaxLinkDistance != nil {
		da = *a.MaxLinkDistance
	}
	if b.MaxLinkDistance != nil {
		db = *b.MaxLinkDistance
	}
	a.MaxLinkDistance, b.MaxLinkDistance = nil, nil
	return a == b && da == db
}
