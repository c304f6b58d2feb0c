package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch watches a schema file and calls onChange with a freshly parsed
// registry every time the file is rewritten. A schema that fails to parse is
// logged and skipped; the previous registry stays in effect. Watch returns
// after the watcher is installed; the goroutine stops when ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Registry)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	logger.Info("watching schema for changes", slog.String("path", path))

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("schema watch stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write != fsnotify.Write {
					continue
				}
				logger.Info("schema changed, reloading registry", slog.String("path", event.Name))
				reg, err := Load(path)
				if err != nil {
					logger.Error("failed to reload schema", slog.String("error", err.Error()))
					continue
				}
				onChange(reg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("schema watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}
