package cli

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dwhelan/sequences/internal/harness"
)

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 150 * time.Millisecond

// watchScenarios calls rerun after scenario or golden files under paths
// change, until ctx is done.
func watchScenarios(ctx context.Context, paths []string, logger *slog.Logger, rerun func()) error {
	dirs, err := watchDirs(paths)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve watch paths", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start file watcher", err)
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to watch %s", dir), err)
		}
	}
	logger.Info("watching scenarios", "dirs", len(dirs))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isWatchedChange(event) {
				continue
			}
			logger.Info("scenario changed", "file", event.Name, "op", event.Op.String())
			debounce = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)
		case <-debounce:
			debounce = nil
			rerun()
		}
	}
}

// watchDirs lists every directory to watch. fsnotify is not recursive, so
// directory arguments contribute all of their subdirectories and file
// arguments contribute their parent.
func watchDirs(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, &harness.ScenarioNotFoundError{Path: path}
		}
		if !info.IsDir() {
			add(filepath.Dir(path))
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return dirs, nil
}

func isWatchedChange(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return harness.IsScenarioFile(event.Name) || strings.EqualFold(filepath.Ext(event.Name), ".golden")
}
