package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/gpuhal"
)

// Watch reloads the file at path whenever it is written or replaced and
// passes the result to fn. A file that fails to load is reported through
// the error argument; the previous configuration stays in effect for the
// caller to decide. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a temporary file are seen as well.
func Watch(ctx context.Context, path string, fn func(Config, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	log := gpuhal.Logger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != abs || !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				log.Warn("config: reload failed", "path", abs, "err", err)
			} else {
				log.Info("config: reloaded", "path", abs)
			}
			fn(cfg, err)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config: watcher error", "err", err)
		}
	}
}
