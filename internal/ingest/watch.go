package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch keeps the index in sync with dir until ctx is done. New files and
// writes are re-indexed, removed or renamed files are dropped. Category
// directories created after the watch starts are picked up too.
func (i *Ingester) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := addTree(w, dir); err != nil {
		return err
	}
	i.logger.Info("watching corpus", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			i.handleEvent(ctx, w, event)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			i.logger.Warn("corpus watcher error", "error", err)
		}
	}
}

func (i *Ingester) handleEvent(ctx context.Context, w *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(w, event.Name); err != nil {
				i.logger.Warn("watch new directory failed", "path", event.Name, "error", err)
			}
			if _, err := i.IngestDir(ctx, event.Name); err != nil {
				i.logger.Warn("ingest new directory failed", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !Supported(event.Name) {
		return
	}

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create, event.Op&fsnotify.Write == fsnotify.Write:
		if _, err := i.IngestFile(ctx, event.Name); err != nil {
			i.logger.Warn("reindex file failed", "path", event.Name, "error", err)
		}
	case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
		if err := i.Remove(ctx, event.Name); err != nil {
			i.logger.Warn("remove file failed", "path", event.Name, "error", err)
		}
	}
}

// addTree registers dir and its subdirectories; fsnotify is not recursive.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
