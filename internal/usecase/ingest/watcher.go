package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher re-ingests a seed file whenever it changes on disk.
type Watcher struct {
	path     string
	reload   func(ctx context.Context) error
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a watcher that calls reload after the file at path settles.
func NewWatcher(path string, reload func(ctx context.Context) error, logger *zap.Logger) *Watcher {
	return &Watcher{path: filepath.Clean(path), reload: reload, debounce: defaultDebounce, logger: logger}
}

// WithDebounce sets the quiet period before a reload.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// ForService builds a watcher that re-ingests path through svc.
func ForService(svc *Service, path string, logger *zap.Logger) *Watcher {
	return NewWatcher(path, func(ctx context.Context) error {
		_, err := svc.IngestFile(ctx, path)
		return err
	}, logger)
}

// Run blocks until ctx is done. The parent directory is watched so that editors
// that replace the file by rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("Watching catalog seed", zap.String("path", w.path))

	timer := time.NewTimer(w.debounce)
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
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Seed watcher error", zap.Error(err))
		case <-timer.C:
			if err := w.reload(ctx); err != nil {
				w.logger.Error("Catalog reload failed", zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.logger.Info("Catalog reloaded", zap.String("path", w.path))
		}
	}
}
