package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadFunc receives each successfully reloaded config.
type ReloadFunc func(ctx context.Context, cfg Config) error

// Watcher reloads the config file when it changes on disk. Editors
// often replace the file rather than write it, so the parent directory
// is watched and events are filtered by name.
type Watcher struct {
	path     string
	onReload ReloadFunc
	debounce time.Duration
	log      *zap.Logger
}

func NewWatcher(path string, onReload ReloadFunc, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		onReload: onReload,
		debounce: 250 * time.Millisecond,
		log:      log.Named("config"),
	}
}

// Run watches until ctx is done. A config that fails to load or
// validate is logged and the running settings are kept.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.log.Info("watching config", zap.String("path", w.path))

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", zap.Error(err))
		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("config reload rejected, keeping current settings", zap.Error(err))
		return
	}
	if err := w.onReload(ctx, cfg); err != nil {
		w.log.Warn("apply reloaded config", zap.Error(err))
		return
	}
	w.log.Info("config reloaded", zap.String("path", w.path))
}
