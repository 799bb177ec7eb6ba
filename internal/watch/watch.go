// Package watch re-triggers the pipeline when files change under its
// input path prefixes (the pipeline definition, the notebook directories,
// the raw data directory). Runs never overlap: events arriving while a
// run is in flight coalesce into a single trailing re-run, mirroring how
// the CI host serializes triggered runs.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"labpipe/internal/ctxlog"
)

// DefaultDebounce batches the burst of events an editor or checkout emits
// for a single logical change.
const DefaultDebounce = 500 * time.Millisecond

// Watcher drives repeated pipeline runs from filesystem events.
type Watcher struct {
	paths    []string
	debounce time.Duration
	run      func(context.Context) error
}

// New returns a Watcher over the given path prefixes. Directories are
// watched recursively as they exist at start time.
func New(paths []string, debounce time.Duration, run func(context.Context) error) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{paths: paths, debounce: debounce, run: run}
}

// Watch runs the pipeline once immediately, then again after each
// debounced batch of changes, until the context is cancelled. A failed
// run is logged and watching continues; the next change gets a fresh run.
func (w *Watcher) Watch(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer notifier.Close()

	for _, path := range w.paths {
		if err := addRecursive(notifier, path); err != nil {
			return err
		}
	}
	logger.Info("Watching for changes.", "paths", w.paths, "debounce", w.debounce)

	w.runOnce(ctx)

	var timer *time.Timer
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("Change detected.", "path", event.Name, "op", event.Op.String())

			// A directory created under a watched tree has to join the
			// watch set itself, or changes inside it go unseen.
			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if addErr := addRecursive(notifier, event.Name); addErr != nil {
						logger.Error("Failed to watch new directory.", "path", event.Name, "error", addErr)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case err, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			logger.Error("Filesystem watcher error.", "error", err)

		case <-pending:
			pending = nil
			w.runOnce(ctx)
		}
	}
}

// runOnce executes one pipeline run, reporting failure without stopping
// the watch loop.
func (w *Watcher) runOnce(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if err := w.run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("Pipeline run failed; still watching.", "error", err)
		return
	}
	logger.Info("Pipeline run succeeded; still watching.")
}

// addRecursive registers a path and, if it is a directory, every
// subdirectory beneath it. Missing paths are skipped: a pipeline may name
// a data directory that appears later.
func addRecursive(notifier *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return nil
			}
			return err
		}
		if d.IsDir() || p == path {
			if err := notifier.Add(p); err != nil {
				return fmt.Errorf("failed to watch %s: %w", p, err)
			}
		}
		return nil
	})
}
