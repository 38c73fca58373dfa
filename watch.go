package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// watchFile calls onChange after path is written, created or replaced. Bursts
// of events are coalesced. The parent directory is watched so that editors
// replacing the file by rename are noticed.
func watchFile(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	path = filepath.Clean(path)
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		var debouncer *time.Timer
		defer func() {
			if debouncer != nil {
				debouncer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				slog.Debug("source file event", "op", ev.Op.String(), "path", ev.Name)
				if debouncer != nil {
					debouncer.Stop()
				}
				debouncer = time.AfterFunc(watchDebounce, onChange)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("watch error", "error", err, "path", path)
			}
		}
	}()
	return nil
}
