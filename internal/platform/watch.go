package platform

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"
)

// configWatcher re-reads log_level from the config file whenever it changes.
type configWatcher struct {
	path    string
	level   *slog.LevelVar
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// watchConfig starts watching path. The parent directory is watched so that
// editors replacing the file atomically are still seen.
func watchConfig(ctx context.Context, path string, level *slog.LevelVar, logger *slog.Logger) (*configWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	w := &configWatcher{
		path:    filepath.Clean(path),
		level:   level,
		logger:  logger,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	w.reload()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(w.done)
		w.run(ctx)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		logger.Error("config watcher panic", "error", err)
	}))
	return w, nil
}

func (w *configWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *configWatcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	if level != w.level.Level() {
		w.level.Set(level)
		w.logger.Info("log level changed", "level", level.String())
	}
}

// Close stops the watcher and waits for its goroutine.
func (w *configWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
