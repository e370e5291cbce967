package report

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"cusp/internal/logging"
)

// Watch blocks watching the run directory for stage marker files and calls
// onStage with the stage name each time one is written. It returns when the
// context is cancelled or the watcher fails.
func Watch(ctx context.Context, dir string, onStage func(stage string)) error {
	log := logging.Get(logging.CategoryReport)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info("watching %s for stage markers", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			stage, found := strings.CutSuffix(name, ".done")
			if !found {
				continue
			}
			log.Info("stage marker updated: %s", stage)
			onStage(stage)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error: %v", err)
		}
	}
}
