package dosage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// TableWatcher reloads an engine's table whenever its YAML file changes. A
// file that fails to load or validate is logged and the engine keeps the
// table it had.
type TableWatcher struct {
	path     string
	engine   *Engine
	watcher  *fsnotify.Watcher
	log      *zap.Logger
	debounce time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// Watch starts watching path for the lifetime of ctx or until Close.
func Watch(ctx context.Context, path string, engine *Engine, log *zap.Logger) (*TableWatcher, error) {
	return watch(ctx, path, engine, log, reloadDebounce)
}

func watch(ctx context.Context, path string, engine *Engine, log *zap.Logger, debounce time.Duration) (*TableWatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving dosage table path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	// Editors replace files by rename, so watch the directory.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	w := &TableWatcher{
		path:     abs,
		engine:   engine,
		watcher:  fsw,
		log:      log,
		debounce: debounce,
		done:     make(chan struct{}),
	}
	go w.loop(ctx)

	log.Info("watching dosage table", zap.String("path", abs))
	return w, nil
}

// Close stops the watcher and waits for it to exit.
func (w *TableWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.watcher.Close() })
	<-w.done
	return err
}

func (w *TableWatcher) loop(ctx context.Context) {
	defer close(w.done)

	var (
		timer   *time.Timer
		reloadC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.closeOnce.Do(func() { _ = w.watcher.Close() })
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			reloadC = timer.C

		case <-reloadC:
			reloadC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("dosage table watcher error", zap.Error(err))
		}
	}
}

func (w *TableWatcher) reload() {
	table, err := LoadTableFile(w.path)
	if err != nil {
		w.log.Warn("dosage table not reloaded", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.engine.SetTable(table)
	w.log.Info("dosage table reloaded", zap.String("path", w.path))
}
